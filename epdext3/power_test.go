// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package epdext3

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestPowerCycle(t *testing.T) {
	// The second read starts with its own dummy byte.
	mem := append(smallOTP(0xcf, 0x02), 0x00)
	ft := withOTP(append(mem, smallOTP(0xcf, 0x02)...))
	ft.power = &gpiotest.Pin{N: "power"}
	d := newTestDev(t, "213_PS_0E", ft, Opts{})

	steps := []struct {
		name       string
		do         func() error
		wantState  PowerState
		wantLevel  gpio.Level
		wantResets int
		wantReads  int
		wantTable  bool
	}{
		{"resume", d.Resume, On, gpio.High, 6, 1, true},
		{"resume again", d.Resume, On, gpio.High, 6, 1, true},
		{"sleep", func() error { return d.Suspend(ScopeNone) }, Sleeping, gpio.High, 6, 1, true},
		{"wake", d.Resume, On, gpio.High, 9, 1, true},
		{"power off", func() error { return d.Suspend(ScopeGPIOOnly) }, Off, gpio.Low, 9, 1, false},
		{"power off again", func() error { return d.Suspend(ScopeGPIOOnly) }, Off, gpio.Low, 9, 1, false},
		{"sleep while off", func() error { return d.Suspend(ScopeNone) }, Off, gpio.Low, 9, 1, false},
		{"power on", d.Resume, On, gpio.High, 15, 2, true},
	}
	for _, s := range steps {
		if err := s.do(); err != nil {
			t.Fatalf("%s: %v", s.name, err)
		}
		if d.PowerState() != s.wantState {
			t.Errorf("%s: PowerState() = %s, want %s", s.name, d.PowerState(), s.wantState)
		}
		if l := ft.power.Read(); l != s.wantLevel {
			t.Errorf("%s: power pin = %s, want %s", s.name, l, s.wantLevel)
		}
		if len(ft.resets) != s.wantResets {
			t.Errorf("%s: %d reset edges, want %d", s.name, len(ft.resets), s.wantResets)
		}
		if len(ft.reads) != s.wantReads {
			t.Errorf("%s: %d calibration reads, want %d", s.name, len(ft.reads), s.wantReads)
		}
		if (d.Calibration() != nil) != s.wantTable {
			t.Errorf("%s: Calibration() = %v", s.name, d.Calibration())
		}
	}
}

func TestResumeFailureSwitchesSupplyOff(t *testing.T) {
	mem := smallOTP(0xcf, 0x02)
	mem[0] = 0x00
	mem[0x0400] = 0x5a
	ft := withOTP(mem)
	ft.power = &gpiotest.Pin{N: "power"}
	d := newTestDev(t, "213_PS_0E", ft, Opts{})

	if _, err := d.FlushMode(Global); !errors.Is(err, ErrCalibrationMismatch) {
		t.Fatalf("FlushMode() = %v, want %v", err, ErrCalibrationMismatch)
	}
	if d.PowerState() != Off || ft.power.Read() != gpio.Low {
		t.Errorf("after failed update: state %s, power pin %s", d.PowerState(), ft.power.Read())
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if ft.power.Read() != gpio.Low {
		t.Errorf("Halt() left power pin %s", ft.power.Read())
	}
}

func TestSuspendWithoutPowerPin(t *testing.T) {
	d := newTestDev(t, "213_PS_0E", withOTP(smallOTP(0xcf, 0x02)), Opts{})
	if err := d.Resume(); err != nil {
		t.Fatal(err)
	}
	if err := d.Suspend(ScopeGPIOOnly); err != nil {
		t.Fatal(err)
	}
	if d.PowerState() != Sleeping {
		t.Errorf("PowerState() = %s, want sleeping", d.PowerState())
	}
	if d.Calibration() == nil {
		t.Error("calibration dropped while the supply stayed on")
	}
}

func TestAutoSuspend(t *testing.T) {
	for _, tc := range []struct {
		scope PowerScope
		want  PowerState
	}{
		{ScopeNone, Sleeping},
		{ScopeGPIOOnly, Off},
	} {
		t.Run(tc.scope.String(), func(t *testing.T) {
			ft := withOTP(smallOTP(0xcf, 0x02))
			ft.power = &gpiotest.Pin{N: "power"}
			scope := tc.scope
			d := newTestDev(t, "213_PS_0E", ft, Opts{AutoSuspend: &scope})

			if err := d.Flush(); err != nil {
				t.Fatal(err)
			}
			if d.PowerState() != tc.want {
				t.Errorf("PowerState() = %s, want %s", d.PowerState(), tc.want)
			}
		})
	}
}

func TestHalt(t *testing.T) {
	ft := withOTP(smallOTP(0xcf, 0x02))
	ft.power = &gpiotest.Pin{N: "power"}
	d := newTestDev(t, "213_PS_0E", ft, Opts{})
	if err := d.Resume(); err != nil {
		t.Fatal(err)
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if d.PowerState() != Off || ft.power.Read() != gpio.Low {
		t.Errorf("Halt() left the panel %s", d.PowerState())
	}
}

func TestPowerScopeSet(t *testing.T) {
	var s PowerScope
	if err := s.Set("gpio"); err != nil || s != ScopeGPIOOnly {
		t.Errorf("Set(gpio) = %s, %v", s, err)
	}
	if err := s.Set("deep"); err == nil {
		t.Error("Set(deep) succeeded")
	}
}
