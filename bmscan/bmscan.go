// Package bmscan reads battery management frames from a CAN bus.
package bmscan

import (
	"context"
	"encoding/binary"
	"github.com/brutella/can"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	frameStateOfCharge uint32 = 0x110
	framePackVoltage          = 0x111
)

type IntResultFn func(v int)

type Callbacks struct {
	// StateOfCharge receives the remaining charge in percent.
	StateOfCharge IntResultFn
	// PackVoltage receives the pack voltage in millivolts.
	PackVoltage IntResultFn
}

type CANBus interface {
	SubscribeFunc(can.HandlerFunc)
	ConnectAndPublish() error
	Disconnect() error
}

type Connection struct {
	bus CANBus
	cb  *Callbacks
}

// to allow testing
var newBus = func(portName string) (CANBus, error) {
	return can.NewBusForInterfaceWithName(portName)
}

func Connect(portName string) (*Connection, error) {
	bus, err := newBus(portName)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open can interface %s", portName)
	}

	c := &Connection{
		bus: bus,
	}
	return c, nil
}

// Start subscribes to battery frames and blocks until the bus stops or ctx
// is cancelled.
func (c *Connection) Start(ctx context.Context, cb Callbacks) error {
	c.cb = &cb
	c.bus.SubscribeFunc(c.handleFrame)
	log.Info("bms can bus opened and subscribed")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			log.Infof("stopping bms can bus: %v", ctx.Err())
			if err := c.bus.Disconnect(); err != nil {
				log.WithField("err", err).Warn("unable to disconnect canbus after context")
			}
		case <-done:
		}
	}()

	return c.bus.ConnectAndPublish()
}

func (c *Connection) Close() error {
	if c.bus == nil {
		return errors.New("can bus not connected")
	}
	return c.bus.Disconnect()
}

func (c *Connection) handleFrame(frame can.Frame) {
	log.WithField("canID", frame.ID).
		WithField("length", frame.Length).
		Debug("received canbus frame")

	if c.cb == nil {
		return
	}

	var cb IntResultFn
	switch frame.ID {
	case frameStateOfCharge:
		cb = c.cb.StateOfCharge
	case framePackVoltage:
		cb = c.cb.PackVoltage
	default:
		log.WithField("canID", frame.ID).
			Debug("ignoring frame")
		return
	}

	if cb == nil {
		log.WithField("canID", frame.ID).Debug("no callback registered")
		return
	}

	v, err := uint16Result(frame)
	if err != nil {
		log.WithField("err", err).Error("unable to convert to uint16")
		return
	}
	log.WithField("canID", frame.ID).
		WithField("intValue", v).
		Debug("calling callback function")
	cb(v)
}

func uint16Result(frame can.Frame) (int, error) {
	if frame.Length != 2 {
		return 0, errors.Errorf("incorrect frame size for uint16: %v", frame.Length)
	}
	return int(binary.LittleEndian.Uint16(frame.Data[0:2])), nil
}
