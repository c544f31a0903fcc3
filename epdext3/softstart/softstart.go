// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package softstart decodes and replays the power-on sequence stored in the
// calibration table of medium iTC panels.
//
// The table holds the panel setting register at offset 0 and four stage
// records. A record header with bit 7 set describes a charge pump ramp
// (register 0x51 written with an incrementing phase pair), otherwise it
// describes a toggle of register 0x09 between two values.
package softstart

import (
	"errors"
	"fmt"
	"time"
)

// Register addresses written during replay.
const (
	RegPhase   byte = 0x51
	RegPowerOn byte = 0x09
)

// Stages lists the offsets of the four stage records inside the table.
var Stages = [4]int{0x10, 0x18, 0x20, 0x28}

// ErrTruncated is returned when a record extends past the end of the table.
var ErrTruncated = errors.New("softstart: truncated record")

// Writer writes a panel register.
type Writer interface {
	WriteRegister(reg byte, data ...byte) error
}

// Sleeper pauses the caller. clockwork.Clock satisfies it.
type Sleeper interface {
	Sleep(d time.Duration)
}

// Delay is an encoded pause.
type Delay struct {
	// Value is the 7-bit magnitude.
	Value uint8
	// Millis selects milliseconds, otherwise the unit is 10µs.
	Millis bool
}

func parseDelay(b byte) Delay {
	return Delay{Value: b & 0x7f, Millis: b&0x80 != 0}
}

// Duration returns the pause length.
func (d Delay) Duration() time.Duration {
	if d.Millis {
		return time.Duration(d.Value) * time.Millisecond
	}
	return time.Duration(d.Value) * 10 * time.Microsecond
}

// Step is one decoded stage record. It is implemented by Ramp and Toggle.
type Step interface {
	replay(w Writer, s Sleeper) error
	fmt.Stringer
}

// Ramp writes RegPhase Repeat times with a phase pair incremented by
// (DeltaL, DeltaH) on each iteration.
type Ramp struct {
	Repeat         int
	PHL, PHH       byte
	DeltaL, DeltaH byte
	Delay          Delay
}

func (r *Ramp) replay(w Writer, s Sleeper) error {
	l, h := r.PHL, r.PHH
	for k := 0; k < r.Repeat; k++ {
		if err := w.WriteRegister(RegPhase, l, h); err != nil {
			return err
		}
		s.Sleep(r.Delay.Duration())
		l += r.DeltaL
		h += r.DeltaH
	}
	return nil
}

func (r *Ramp) String() string {
	return fmt.Sprintf("Ramp{%d× %#02x,%#02x +%d,%d %s}", r.Repeat, r.PHL, r.PHH, r.DeltaL, r.DeltaH, r.Delay.Duration())
}

// Toggle writes On then Off to RegPowerOn Repeat times.
type Toggle struct {
	Repeat int
	On     byte
	Delay1 Delay
	Off    byte
	Delay2 Delay
}

func (t *Toggle) replay(w Writer, s Sleeper) error {
	for k := 0; k < t.Repeat; k++ {
		if err := w.WriteRegister(RegPowerOn, t.On); err != nil {
			return err
		}
		s.Sleep(t.Delay1.Duration())
		if err := w.WriteRegister(RegPowerOn, t.Off); err != nil {
			return err
		}
		s.Sleep(t.Delay2.Duration())
	}
	return nil
}

func (t *Toggle) String() string {
	return fmt.Sprintf("Toggle{%d× %#02x %s, %#02x %s}", t.Repeat, t.On, t.Delay1.Duration(), t.Off, t.Delay2.Duration())
}

// Decode decodes the record starting at offset.
func Decode(table []byte, offset int) (Step, error) {
	if offset < 0 || offset >= len(table) {
		return nil, fmt.Errorf("%w: offset %#02x past table of %d bytes", ErrTruncated, offset, len(table))
	}
	hdr := table[offset]
	n := 5
	if hdr&0x80 != 0 {
		n = 6
	}
	if offset+n > len(table) {
		return nil, fmt.Errorf("%w: record at %#02x needs %d bytes", ErrTruncated, offset, n)
	}
	r := table[offset : offset+n]
	repeat := int(hdr & 0x7f)
	if n == 6 {
		return &Ramp{
			Repeat: repeat,
			PHL:    r[1],
			PHH:    r[2],
			DeltaL: r[3],
			DeltaH: r[4],
			Delay:  parseDelay(r[5]),
		}, nil
	}
	return &Toggle{
		Repeat: repeat,
		On:     r[1],
		Delay1: parseDelay(r[2]),
		Off:    r[3],
		Delay2: parseDelay(r[4]),
	}, nil
}

// DecodeAll decodes the four stages of table.
func DecodeAll(table []byte) ([]Step, error) {
	steps := make([]Step, 0, len(Stages))
	for i, off := range Stages {
		st, err := Decode(table, off)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i+1, err)
		}
		steps = append(steps, st)
	}
	return steps, nil
}

// Replay decodes and runs the four stages of table in order. Nothing is
// written when the table cannot be decoded.
func Replay(w Writer, s Sleeper, table []byte) error {
	steps, err := DecodeAll(table)
	if err != nil {
		return err
	}
	for i, st := range steps {
		if err := st.replay(w, s); err != nil {
			return fmt.Errorf("softstart: stage %d: %w", i+1, err)
		}
	}
	return nil
}
