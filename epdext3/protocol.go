// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package epdext3

import (
	"fmt"
	"time"

	"github.com/GermanBionicSystems/pervasive/epdext3/frame"
)

// UpdateMode selects how the panel transitions to the next image.
type UpdateMode int

const (
	// Fast drives only the pixels that changed since the previous image.
	Fast UpdateMode = iota
	// Global redraws every pixel, clearing ghosting left by fast updates.
	Global
)

func (m UpdateMode) String() string {
	switch m {
	case Fast:
		return "fast"
	case Global:
		return "global"
	default:
		return fmt.Sprintf("UpdateMode(%d)", int(m))
	}
}

// Set sets the UpdateMode to a value represented by the string s. Set
// implements the flag.Value interface.
func (m *UpdateMode) Set(s string) error {
	switch s {
	case "fast":
		*m = Fast
	case "global":
		*m = Global
	default:
		return fmt.Errorf("unknown update mode %q: expected fast or global", s)
	}
	return nil
}

// Stage is the step an update is at.
type Stage int

// Valid Stage.
const (
	Idle Stage = iota
	Resetting
	Initializing
	LoadingImage
	Refreshing
	PoweringOff
)

func (s Stage) String() string {
	switch s {
	case Idle:
		return "idle"
	case Resetting:
		return "resetting"
	case Initializing:
		return "initializing"
	case LoadingImage:
		return "loading image"
	case Refreshing:
		return "refreshing"
	case PoweringOff:
		return "powering off"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Fast updates are only reliable within this range, in °C.
const (
	minFastTemperature = 0
	maxFastTemperature = 50
)

// regeneratePause is the pause after each update of Regenerate.
const regeneratePause = 100 * time.Millisecond

// Stage returns the step the last update reached; Idle once it completed.
func (d *Dev) Stage() Stage {
	return d.stage
}

// Flush sends the frame buffer to the panel with a fast update, falling back
// to a global update when the panel or the temperature does not allow it.
func (d *Dev) Flush() error {
	_, err := d.FlushMode(Fast)
	return err
}

// FlushMode sends the frame buffer to the panel and returns the mode actually
// used.
//
// Once the image is transferred the buffer's next page is promoted to
// previous, so the following fast update only drives the pixels changed in
// between. An update cannot be cancelled.
func (d *Dev) FlushMode(mode UpdateMode) (UpdateMode, error) {
	if !d.guard.TryAcquire(1) {
		return mode, ErrBusy
	}
	defer d.guard.Release(1)
	return d.flush(mode)
}

// Regenerate flashes the panel black then white to clear ghosting.
func (d *Dev) Regenerate(mode UpdateMode) error {
	if !d.guard.TryAcquire(1) {
		return ErrBusy
	}
	defer d.guard.Release(1)

	for _, c := range []frame.Color{frame.Black, frame.White} {
		d.fb.Clear(c)
		if _, err := d.flush(mode); err != nil {
			return err
		}
		d.clock.Sleep(regeneratePause)
	}
	return nil
}

// updateMode returns the mode used for a requested mode.
func (d *Dev) updateMode(mode UpdateMode) UpdateMode {
	if mode != Fast {
		return mode
	}
	if !d.profile.FastUpdate() {
		d.log.Warn().Msg("fast update not supported, using global update")
		return Global
	}
	if d.temperature < minFastTemperature || d.temperature > maxFastTemperature {
		d.log.Warn().Int8("temperature", d.temperature).Msg("temperature out of fast update range, using global update")
		return Global
	}
	return Fast
}

func (d *Dev) setStage(s Stage) {
	d.stage = s
	d.log.Debug().Stringer("stage", s).Msg("update")
}

func (d *Dev) newController() *panelController {
	return &panelController{t: d.t, clock: d.clock, timeout: d.timeout}
}

func (d *Dev) flush(mode UpdateMode) (UpdateMode, error) {
	mode = d.updateMode(mode)

	d.setStage(Resetting)
	if err := d.resume(); err != nil {
		return mode, fmt.Errorf("epdext3: %s: %w", Resetting, err)
	}

	ctrl := d.newController()
	s := &session{profile: d.profile, table: d.table, temperature: d.temperature, mode: mode}
	run := func(st Stage, f func() error) error {
		d.setStage(st)
		err := f()
		if err == nil {
			err = ctrl.err
		}
		if err != nil {
			return fmt.Errorf("epdext3: %s: %w", st, err)
		}
		return nil
	}

	if err := run(Initializing, func() error {
		return d.fam.initialize(ctrl, s)
	}); err != nil {
		return mode, err
	}
	if err := run(LoadingImage, func() error {
		d.fam.sendImage(ctrl, d.fb, s)
		return nil
	}); err != nil {
		return mode, err
	}
	d.fb.Promote()
	if err := run(Refreshing, func() error {
		return d.fam.refresh(ctrl, s)
	}); err != nil {
		return mode, err
	}
	if err := run(PoweringOff, func() error {
		d.fam.powerOff(ctrl)
		return nil
	}); err != nil {
		return mode, err
	}
	d.setStage(Idle)
	d.log.Info().Stringer("mode", mode).Msg("panel updated")

	if d.autoSuspend != nil {
		return mode, d.suspend(*d.autoSuspend)
	}
	return mode, nil
}
