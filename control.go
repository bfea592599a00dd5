package carburetor

import (
	log "github.com/sirupsen/logrus"
	"time"
)

const (
	channelCount = 2

	// standard servo / ESC signalling: 50 Hz, 1500us centre, +-500us travel
	period       = 20 * time.Millisecond
	pulseNeutral = 1500 * time.Microsecond
	pulseDelta   = 500 * time.Microsecond
)

// Channel identifies one of the two hardware outputs.
type Channel uint8

// PulseWidth maps a speed to its pulse width. The speed is clamped first.
func PulseWidth(s Speed) time.Duration {
	return pulseNeutral + time.Duration(float64(s.Clamp())*float64(pulseDelta))
}

// runChannel is the only writer of out. It applies every speed received and
// returns once speeds is closed. Write failures are logged and the next speed
// is applied as usual.
func runChannel(ch Channel, out Output, speeds <-chan Speed) {
	logger := log.WithField("channel", ch)
	logger.Info("control loop started")
	for s := range speeds {
		pulse := PulseWidth(s)
		if err := out.SetPulseWidth(period, pulse); err != nil {
			logger.WithField("err", err).
				WithField("pulse", pulse).
				Error("unable to set pulse width")
			continue
		}
		logger.WithField("speed", s).
			WithField("pulse", pulse).
			Debug("pulse width set")
	}
	logger.Info("control loop stopped")
}
