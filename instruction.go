package carburetor

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MessageBytes is a single fixed-size frame as sent by the bridge.
type MessageBytes [8]byte

// String lists the bytes in decimal, e.g. [16, 0, 63, 128, 0, 0, 0, 0].
func (m MessageBytes) String() string {
	parts := make([]string, len(m))
	for i, b := range m {
		parts[i] = strconv.Itoa(int(b))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

const (
	tagQuery   byte = 0x00
	tagMotor   byte = 0x10
	tagBattery byte = 0x20
	tagMemory  byte = 0x21
	tagCpu     byte = 0x22
)

// Speed is a normalized motor command in [-1, 1].
type Speed float32

const Neutral Speed = 0

func (s Speed) Valid() bool {
	f := float64(s)
	return !math.IsNaN(f) && f >= -1 && f <= 1
}

// Clamp bounds s to [-1, 1]. NaN clamps to neutral.
func (s Speed) Clamp() Speed {
	switch {
	case math.IsNaN(float64(s)):
		return Neutral
	case s > 1:
		return 1
	case s < -1:
		return -1
	}
	return s
}

type Kind uint8

const (
	KindQuery Kind = iota
	KindMotor
	KindBattery
	KindMemory
	KindCpu
)

func (k Kind) String() string {
	switch k {
	case KindQuery:
		return "query"
	case KindMotor:
		return "motor"
	case KindBattery:
		return "battery"
	case KindMemory:
		return "memory"
	case KindCpu:
		return "cpu"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Instruction is a decoded frame. Channel and Speed are only meaningful for KindMotor.
type Instruction struct {
	Kind    Kind
	Channel uint8
	Speed   Speed
}

func Motor(channel uint8, speed Speed) Instruction {
	return Instruction{Kind: KindMotor, Channel: channel, Speed: speed}
}

func (i Instruction) String() string {
	if i.Kind == KindMotor {
		return fmt.Sprintf("motor(channel=%d, speed=%g)", i.Channel, i.Speed)
	}
	return i.Kind.String()
}

// Decode parses a frame. ok is false for unknown tags and for motor frames
// naming a channel other than 0 or 1 or carrying a speed outside [-1, 1].
func Decode(buf MessageBytes) (instr Instruction, ok bool) {
	switch buf[0] {
	case tagQuery:
		return Instruction{Kind: KindQuery}, true
	case tagBattery:
		return Instruction{Kind: KindBattery}, true
	case tagMemory:
		return Instruction{Kind: KindMemory}, true
	case tagCpu:
		return Instruction{Kind: KindCpu}, true
	case tagMotor:
		channel := buf[1]
		if int(channel) >= channelCount {
			return Instruction{}, false
		}
		speed := Speed(math.Float32frombits(binary.BigEndian.Uint32(buf[2:6])))
		if !speed.Valid() {
			return Instruction{}, false
		}
		return Motor(channel, speed), true
	}
	return Instruction{}, false
}

// Encode is the inverse of Decode for valid instructions.
func Encode(instr Instruction) MessageBytes {
	var buf MessageBytes
	switch instr.Kind {
	case KindQuery:
		buf[0] = tagQuery
	case KindBattery:
		buf[0] = tagBattery
	case KindMemory:
		buf[0] = tagMemory
	case KindCpu:
		buf[0] = tagCpu
	case KindMotor:
		buf[0] = tagMotor
		buf[1] = instr.Channel
		binary.BigEndian.PutUint32(buf[2:6], math.Float32bits(float32(instr.Speed)))
	}
	return buf
}
