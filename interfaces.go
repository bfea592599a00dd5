package carburetor

import (
	"context"
	"github.com/jd3nn1s/carburetor/bmscan"
	"github.com/jd3nn1s/carburetor/sysstats"
	"time"
)

// Output is a hardware PWM output for a single channel.
type Output interface {
	SetPulseWidth(period, pulse time.Duration) error
}

// SpeedSender is the producer side of a channel's command queue.
type SpeedSender interface {
	Send(Speed)
}

type SystemStats interface {
	Memory() (sysstats.MemInfo, error)
	LoadAverage() (float64, error)
}

type BatteryGauge interface {
	Level() (percent int, ok bool)
}

type CANBus interface {
	Close() error
	Start(context.Context, bmscan.Callbacks) error
}
