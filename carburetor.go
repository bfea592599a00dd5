package carburetor

import (
	"context"
	"fmt"
	"github.com/jd3nn1s/carburetor/pwm"
	"github.com/jd3nn1s/carburetor/sysstats"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"net"
	"runtime"
)

const banner = `
                   _
                  | |                        _
  ____ _____  ____| |__  _   _  ____ _____ _| |_ ___   ____
 / ___|____ |/ ___)  _ \| | | |/ ___) ___ (_   _) _ \ / ___)
( (___/ ___ | |   | |_) ) |_| | |   | ____| | || |_| | |
 \____)_____|_|   |____/|____/|_|   |_____)  \__)___/|_|

             By Koen & Bauke Westendorp, 2023.
`

// to allow testing
var openOutput = func(config *Config, ch Channel) (Output, error) {
	if config.PWM.Simulate {
		return pwm.NewSimulated(fmt.Sprintf("pwm%d", ch)), nil
	}
	out, err := pwm.OpenSysfs(config.PWM.Chip, int(ch))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Carburetor wires the channel queues, control loops, fail-safe and command
// server together.
type Carburetor struct {
	config  *Config
	queues  [channelCount]*Queue
	outputs [channelCount]Output
	stats   SystemStats
	battery BatteryGauge

	batteryMonitor *BatteryMonitor
}

func NewCarburetor(config *Config) (*Carburetor, error) {
	c := &Carburetor{
		config:  config,
		stats:   sysstats.Sysinfo{},
		battery: noBattery{},
	}
	for i := range c.outputs {
		out, err := openOutput(config, Channel(i))
		if err != nil {
			return nil, errors.Wrapf(err, "unable to open output for channel %d", i)
		}
		c.outputs[i] = out
		c.queues[i] = NewQueue()
	}
	if config.Battery.Interface != "" {
		c.batteryMonitor = NewBatteryMonitor(config.Battery.Interface)
		c.battery = c.batteryMonitor
	}
	return c, nil
}

func (c *Carburetor) senders() [channelCount]SpeedSender {
	var senders [channelCount]SpeedSender
	for i, q := range c.queues {
		senders[i] = q
	}
	return senders
}

// FailSafe returns a coordinator holding only the queue senders.
func (c *Carburetor) FailSafe() *FailSafe {
	return NewFailSafe(c.senders())
}

// Start launches one control loop per channel and the battery monitor if
// one is configured. The control loops run until the process exits.
func (c *Carburetor) Start(ctx context.Context) {
	log.Info("spawning device control loops")
	for i := range c.queues {
		go func(ch Channel) {
			// each output keeps a dedicated thread
			runtime.LockOSThread()
			runChannel(ch, c.outputs[ch], c.queues[ch].Receive())
		}(Channel(i))
	}
	if c.batteryMonitor != nil {
		go c.batteryMonitor.Run(ctx)
	}
}

// Serve blocks handling connections on ln.
func (c *Carburetor) Serve(ln net.Listener) error {
	log.Infof("setup completed, listening on %s", ln.Addr())
	return NewServer(c.senders(), c.stats, c.battery).Serve(ln)
}

// Run listens on all interfaces on the configured port.
func (c *Carburetor) Run(ctx context.Context) error {
	log.Info(banner)
	c.FailSafe().Watch()
	c.Start(ctx)
	ln, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", c.config.Port))
	if err != nil {
		return errors.Wrapf(err, "unable to listen on port %d", c.config.Port)
	}
	return c.Serve(ln)
}
