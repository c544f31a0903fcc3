// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package epdext3

import (
	"fmt"

	"github.com/GermanBionicSystems/pervasive/epdext3/otp"
	"periph.io/x/conn/v3/gpio"
)

// PowerState is the coarse power state of the panel.
type PowerState int

// Valid PowerState.
const (
	Off PowerState = iota
	Sleeping
	On
)

func (s PowerState) String() string {
	switch s {
	case Off:
		return "off"
	case Sleeping:
		return "sleeping"
	case On:
		return "on"
	default:
		return fmt.Sprintf("PowerState(%d)", int(s))
	}
}

// PowerScope selects how deep Suspend goes.
type PowerScope int

const (
	// ScopeNone leaves the supply on.
	ScopeNone PowerScope = iota
	// ScopeGPIOOnly switches the supply off through the power pin. The
	// calibration is read again on the next Resume.
	ScopeGPIOOnly
)

func (s PowerScope) String() string {
	switch s {
	case ScopeNone:
		return "none"
	case ScopeGPIOOnly:
		return "gpio"
	default:
		return fmt.Sprintf("PowerScope(%d)", int(s))
	}
}

// Set sets the PowerScope to a value represented by the string s. Set
// implements the flag.Value interface.
func (s *PowerScope) Set(v string) error {
	switch v {
	case "none":
		*s = ScopeNone
	case "gpio":
		*s = ScopeGPIOOnly
	default:
		return fmt.Errorf("unknown power scope %q: expected none or gpio", v)
	}
	return nil
}

// PowerState returns the current power state.
func (d *Dev) PowerState() PowerState {
	return d.state
}

// Resume powers the panel and resets it. The calibration is read on the
// first call and after the supply was switched off.
func (d *Dev) Resume() error {
	if !d.guard.TryAcquire(1) {
		return ErrBusy
	}
	defer d.guard.Release(1)
	return d.resume()
}

// Suspend lowers the power state. ScopeGPIOOnly without a power pin behaves
// as ScopeNone.
func (d *Dev) Suspend(scope PowerScope) error {
	if !d.guard.TryAcquire(1) {
		return ErrBusy
	}
	defer d.guard.Release(1)
	return d.suspend(scope)
}

func (d *Dev) setState(s PowerState) {
	if d.state != s {
		d.log.Debug().Stringer("from", d.state).Stringer("to", s).Msg("power")
	}
	d.state = s
}

// resume powers the panel up. When it fails after switching the supply on
// from Off, the supply is switched off again.
func (d *Dev) resume() (err error) {
	if d.state == On {
		return nil
	}
	if pin := d.t.PowerPin(); pin != nil {
		if err := pin.Out(gpio.High); err != nil {
			return err
		}
		if d.state == Off {
			defer func() {
				if err == nil {
					return
				}
				d.table = nil
				if lowErr := pin.Out(gpio.Low); lowErr != nil {
					d.log.Warn().Err(lowErr).Msg("switching supply off")
				}
			}()
		}
	}

	ctrl := d.newController()
	pulseReset(ctrl, d.fam.resetTiming())
	if ctrl.err != nil {
		return ctrl.err
	}

	if d.table == nil {
		table, err := d.readCalibration()
		if err != nil {
			return err
		}
		d.table = table
		pulseReset(ctrl, d.fam.resetTiming())
		if ctrl.err != nil {
			return ctrl.err
		}
	}
	d.setState(On)
	return nil
}

func (d *Dev) readCalibration() (*otp.Table, error) {
	if d.profile.OTP == nil {
		d.log.Info().Msg("using embedded calibration")
		return otp.Embedded(nil), nil
	}
	table, err := otp.Read(d.t, d.profile.OTP)
	if endErr := d.t.EndRead(); err == nil {
		err = endErr
	}
	if err != nil {
		return nil, fmt.Errorf("reading calibration: %w", err)
	}
	d.log.Info().
		Int("bank", table.Bank).
		Int("size", len(table.Bytes)).
		Uint8("crc", table.Checksum()).
		Msg("calibration read")
	return table, nil
}

func (d *Dev) suspend(scope PowerScope) error {
	pin := d.t.PowerPin()
	if scope == ScopeGPIOOnly && pin != nil {
		if d.state == Off {
			return nil
		}
		if err := pin.Out(gpio.Low); err != nil {
			return err
		}
		d.setState(Off)
		d.table = nil
		return nil
	}
	if d.state == On {
		d.setState(Sleeping)
	}
	return nil
}
