// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package epdext3

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/host/v3/rpi"
)

// Select chooses which controller of a split panel a transfer targets.
type Select uint8

// Valid Select.
const (
	Master Select = 1 << iota
	Slave
	Both = Master | Slave
)

func (s Select) String() string {
	switch s {
	case Master:
		return "master"
	case Slave:
		return "slave"
	case Both:
		return "both"
	default:
		return fmt.Sprintf("Select(%d)", uint8(s))
	}
}

// Transport is the link to the panel controller. It is the only part of the
// driver touching signals.
type Transport interface {
	// Command sends a command byte without data.
	Command(sel Select, cmd byte) error
	// IndexData sends a command byte followed by its data.
	IndexData(sel Select, cmd byte, data []byte) error
	// WaitReady blocks until the busy line reads ready or timeout elapses, in
	// which case it returns ErrBusyTimeout.
	WaitReady(ready gpio.Level, timeout time.Duration) error
	// Reset drives the reset line.
	Reset(l gpio.Level) error
	// BeginRead sends a memory read command and switches to read mode.
	BeginRead(cmd byte) error
	// ReadByte reads one byte in read mode.
	ReadByte() (byte, error)
	// EndRead switches back to command and data mode.
	EndRead() error
	// PowerPin returns the pin switching the panel supply, or nil when the
	// board has none.
	PowerPin() gpio.PinOut
}

// Pins lists the signals of an EXT3 board.
type Pins struct {
	DC    gpio.PinOut
	CS    gpio.PinOut
	Reset gpio.PinOut
	Busy  gpio.PinIn
	// CSSlave selects the second controller of split panels. Optional.
	CSSlave gpio.PinOut
	// Power switches the panel supply. Optional.
	Power gpio.PinOut
}

// HatPins returns the wiring of an EXT3 board plugged on the Raspberry Pi
// header.
func HatPins() Pins {
	return Pins{
		DC:    rpi.P1_22,
		CS:    rpi.P1_24,
		Reset: rpi.P1_11,
		Busy:  rpi.P1_18,
	}
}

// BusyPoll is the period at which the busy line is sampled.
const BusyPoll = 32 * time.Millisecond

// spiTransport implements Transport over a periph SPI port.
type spiTransport struct {
	c         conn.Conn
	maxTxSize int
	pins      Pins
	clock     clockwork.Clock
	reading   bool
}

// NewSPI returns a Transport over the SPI port p. A zero maxHz selects 4MHz.
// A nil clock selects the real clock.
func NewSPI(p spi.Port, pins Pins, maxHz physic.Frequency, clock clockwork.Clock) (Transport, error) {
	if pins.DC == nil || pins.CS == nil || pins.Reset == nil || pins.Busy == nil {
		return nil, errors.New("epdext3: DC, CS, reset and busy pins are required")
	}
	if maxHz == 0 {
		maxHz = 4 * physic.MegaHertz
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	c, err := p.Connect(maxHz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("epdext3: failed to connect over spi: %w", err)
	}

	maxTxSize := 0
	if limits, ok := c.(conn.Limits); ok {
		maxTxSize = limits.MaxTxSize()
	}
	if maxTxSize == 0 {
		maxTxSize = 4096
	}

	if err := pins.Busy.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, err
	}
	t := &spiTransport{c: c, maxTxSize: maxTxSize, pins: pins, clock: clock}
	eh := errorHandler{t: t}
	eh.csOut(Both, gpio.High)
	eh.dcOut(gpio.High)
	if eh.err != nil {
		return nil, eh.err
	}
	return t, nil
}

func (t *spiTransport) String() string {
	return t.c.String()
}

func (t *spiTransport) Command(sel Select, cmd byte) error {
	eh := errorHandler{t: t}
	eh.dcOut(gpio.Low)
	eh.csOut(sel, gpio.Low)
	eh.cTx([]byte{cmd}, nil)
	eh.csOut(sel, gpio.High)
	return eh.err
}

func (t *spiTransport) IndexData(sel Select, cmd byte, data []byte) error {
	eh := errorHandler{t: t}
	eh.dcOut(gpio.Low)
	eh.csOut(sel, gpio.Low)
	eh.cTx([]byte{cmd}, nil)
	eh.csOut(sel, gpio.High)

	eh.dcOut(gpio.High)
	eh.csOut(sel, gpio.Low)
	for len(data) > 0 {
		n := min(len(data), t.maxTxSize)
		eh.cTx(data[:n], nil)
		data = data[n:]
	}
	eh.csOut(sel, gpio.High)
	return eh.err
}

func (t *spiTransport) WaitReady(ready gpio.Level, timeout time.Duration) error {
	start := t.clock.Now()
	for t.pins.Busy.Read() != ready {
		if timeout > 0 && t.clock.Since(start) >= timeout {
			return fmt.Errorf("%w after %s", ErrBusyTimeout, timeout)
		}
		t.clock.Sleep(BusyPoll)
	}
	return nil
}

func (t *spiTransport) Reset(l gpio.Level) error {
	return t.pins.Reset.Out(l)
}

func (t *spiTransport) BeginRead(cmd byte) error {
	eh := errorHandler{t: t}
	eh.dcOut(gpio.Low)
	eh.csOut(Master, gpio.Low)
	eh.cTx([]byte{cmd}, nil)
	eh.csOut(Master, gpio.High)
	eh.dcOut(gpio.High)
	if eh.err == nil {
		t.reading = true
	}
	return eh.err
}

// ReadByte clocks one byte in with its own chip select cycle.
func (t *spiTransport) ReadByte() (byte, error) {
	if !t.reading {
		return 0, errors.New("epdext3: ReadByte called outside of read mode")
	}
	var b [1]byte
	eh := errorHandler{t: t}
	eh.csOut(Master, gpio.Low)
	eh.cTx(nil, b[:])
	eh.csOut(Master, gpio.High)
	return b[0], eh.err
}

func (t *spiTransport) EndRead() error {
	t.reading = false
	eh := errorHandler{t: t}
	eh.csOut(Both, gpio.High)
	eh.dcOut(gpio.High)
	return eh.err
}

func (t *spiTransport) PowerPin() gpio.PinOut {
	if t.pins.Power == nil || t.pins.Power == gpio.INVALID {
		return nil
	}
	return t.pins.Power
}

// errorHandler is a wrapper for error management.
type errorHandler struct {
	t   *spiTransport
	err error
}

func (eh *errorHandler) cTx(w []byte, r []byte) {
	if eh.err != nil {
		return
	}
	eh.err = eh.t.c.Tx(w, r)
}

func (eh *errorHandler) dcOut(l gpio.Level) {
	if eh.err != nil {
		return
	}
	eh.err = eh.t.pins.DC.Out(l)
}

func (eh *errorHandler) csOut(sel Select, l gpio.Level) {
	if eh.err != nil {
		return
	}
	if sel&Master != 0 {
		eh.err = eh.t.pins.CS.Out(l)
	}
	if eh.err == nil && sel&Slave != 0 && eh.t.pins.CSSlave != nil {
		eh.err = eh.t.pins.CSSlave.Out(l)
	}
}
