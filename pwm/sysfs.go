// Package pwm drives hardware PWM outputs.
package pwm

import (
	"fmt"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gobot.io/x/gobot/v2"
	"gobot.io/x/gobot/v2/system"
	"path"
	"time"
)

var sysfsRoot = "/sys/class/pwm"

// to allow testing
var accesser = system.NewAccesser()

// Sysfs is a PWM channel exposed through the Linux sysfs PWM interface.
type Sysfs struct {
	channel int
	pin     gobot.PWMPinner
	period  time.Duration
	enabled bool
}

// OpenSysfs exports channel on pwmchip<chip>. A channel that is already
// exported is reused.
func OpenSysfs(chip, channel int) (*Sysfs, error) {
	chipPath := path.Join(sysfsRoot, fmt.Sprintf("pwmchip%d", chip))
	log.WithField("chip", chip).
		WithField("channel", channel).
		Info("exporting pwm channel")
	pin := accesser.NewPWMPin(chipPath, channel, "normal", "inversed")
	if err := pin.Export(); err != nil {
		return nil, errors.Wrapf(err, "unable to export pwm channel %d", channel)
	}
	return &Sysfs{
		channel: channel,
		pin:     pin,
	}, nil
}

func (p *Sysfs) SetPulseWidth(period, pulse time.Duration) error {
	if pulse < 0 || pulse > period {
		return errors.Errorf("pulse width %v outside period %v", pulse, period)
	}
	if p.period != period {
		// duty_cycle may not exceed period, so shrink it before changing the period
		if p.period != 0 {
			if err := p.pin.SetDutyCycle(0); err != nil {
				return errors.Wrapf(err, "unable to reset pwm%d duty cycle", p.channel)
			}
		}
		if err := p.pin.SetPeriod(uint32(period.Nanoseconds())); err != nil {
			return errors.Wrapf(err, "unable to set pwm%d period", p.channel)
		}
		p.period = period
	}
	if err := p.pin.SetDutyCycle(uint32(pulse.Nanoseconds())); err != nil {
		return errors.Wrapf(err, "unable to set pwm%d duty cycle", p.channel)
	}
	if !p.enabled {
		if err := p.pin.SetEnabled(true); err != nil {
			return errors.Wrapf(err, "unable to enable pwm%d", p.channel)
		}
		p.enabled = true
	}
	return nil
}

// Close disables the output and unexports the channel.
func (p *Sysfs) Close() error {
	if err := p.pin.SetEnabled(false); err != nil {
		return errors.Wrapf(err, "unable to disable pwm%d", p.channel)
	}
	p.enabled = false
	p.period = 0
	return p.pin.Unexport()
}
