package pwm

import (
	log "github.com/sirupsen/logrus"
	"sync"
	"time"
)

// Simulated stands in for real hardware when not running on the robot. It
// logs every pulse and remembers the last one.
type Simulated struct {
	Name string

	mu     sync.Mutex
	period time.Duration
	pulse  time.Duration
	writes int
}

// DutyCycle is pulse expressed as a fraction of period.
func DutyCycle(period, pulse time.Duration) float64 {
	if period <= 0 {
		return 0
	}
	return float64(pulse) / float64(period)
}

func NewSimulated(name string) *Simulated {
	return &Simulated{Name: name}
}

func (s *Simulated) SetPulseWidth(period, pulse time.Duration) error {
	s.mu.Lock()
	s.period = period
	s.pulse = pulse
	s.writes++
	s.mu.Unlock()

	log.WithField("output", s.Name).
		WithField("period", period).
		WithField("pulse", pulse).
		WithField("duty", DutyCycle(period, pulse)).
		Info("simulated pwm")
	return nil
}

// Last returns the most recent period and pulse width and how many writes
// were made.
func (s *Simulated) Last() (period, pulse time.Duration, writes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.period, s.pulse, s.writes
}
