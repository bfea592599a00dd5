package carburetor

import (
	"context"
	"github.com/jd3nn1s/carburetor/bmscan"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"sync/atomic"
)

// to allow testing
var canBusConnect = func(p string) (CANBus, error) {
	c, err := bmscan.Connect(p)
	if err != nil {
		// keep the interface nil rather than holding a nil *Connection
		return nil, err
	}
	return c, nil
}

// BatteryMonitor tracks the state of charge reported by the battery
// management system over CAN.
type BatteryMonitor struct {
	portName string
	c        CANBus
	level    atomic.Int32
}

func NewBatteryMonitor(portName string) *BatteryMonitor {
	m := &BatteryMonitor{
		portName: portName,
	}
	m.level.Store(-1)
	return m
}

// Level returns the last reported state of charge.
func (m *BatteryMonitor) Level() (int, bool) {
	v := m.level.Load()
	return int(v), v >= 0
}

func (m *BatteryMonitor) Name() string {
	return "battery"
}

func (m *BatteryMonitor) Open() error {
	c, err := canBusConnect(m.portName)
	m.c = c
	return err
}

func (m *BatteryMonitor) Close() error {
	if m.c == nil {
		return nil
	}
	c := m.c
	m.c = nil
	return c.Close()
}

func (m *BatteryMonitor) Start(ctx context.Context) error {
	if m.c == nil {
		return errors.New("battery monitor not connected")
	}
	return m.c.Start(ctx, bmscan.Callbacks{
		StateOfCharge: func(v int) {
			if v > 100 {
				log.WithField("level", v).Warn("state of charge out of range")
				return
			}
			m.level.Store(int32(v))
		},
		PackVoltage: func(v int) {
			log.WithField("millivolts", v).Debug("battery pack voltage")
		},
	})
}

func (m *BatteryMonitor) Run(ctx context.Context) {
	if err := retry(ctx, m); err != nil {
		log.Errorf("battery monitor done: %v", err)
	}
}

// noBattery is used when no battery management system is configured.
type noBattery struct{}

func (noBattery) Level() (int, bool) {
	return 0, false
}
