// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package epdext3

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"github.com/GermanBionicSystems/pervasive/epdext3/frame"
	"github.com/GermanBionicSystems/pervasive/epdext3/otp"
	"github.com/GermanBionicSystems/pervasive/epdext3/panel"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

var (
	// ErrBusyTimeout is returned when the panel stays busy longer than
	// Opts.BusyTimeout.
	ErrBusyTimeout = errors.New("epdext3: timed out waiting for the panel")
	// ErrBusy is returned when an update is requested while another one is
	// running.
	ErrBusy = errors.New("epdext3: update already in progress")
	// ErrUnsupportedPanel is returned by New for unknown panels.
	ErrUnsupportedPanel = panel.ErrUnsupported
	// ErrCalibrationMismatch is returned when the panel calibration cannot be
	// trusted.
	ErrCalibrationMismatch = otp.ErrCalibrationMismatch
)

// DefaultTemperature is the ambient temperature assumed until
// SetTemperature is called, in °C.
const DefaultTemperature = 25

// DefaultBusyTimeout bounds each wait for the busy line.
const DefaultBusyTimeout = 30 * time.Second

// Opts is the driver configuration.
type Opts struct {
	// Panel is the panel code, for example "213_PS_0E".
	Panel string
	// Orientation is the initial rotation.
	Orientation frame.Orientation
	// Invert swaps black and white.
	Invert bool
	// MaxHz is the SPI clock. Zero selects 4MHz.
	MaxHz physic.Frequency
	// BusyTimeout bounds each wait for the panel. Zero selects
	// DefaultBusyTimeout, a negative value waits forever.
	BusyTimeout time.Duration
	// AutoSuspend, when set, suspends the panel with this scope after each
	// update.
	AutoSuspend *PowerScope
	// Clock is used for all delays. Nil selects the real clock.
	Clock clockwork.Clock
	// Logger receives driver events. Nil disables logging.
	Logger *zerolog.Logger
}

// Dev is a handle to an iTC panel on an EXT3 board.
type Dev struct {
	t       Transport
	profile *panel.Profile
	fam     family
	fb      *frame.Buffer

	table       *otp.Table
	temperature int8
	state       PowerState
	stage       Stage

	timeout     time.Duration
	autoSuspend *PowerScope
	clock       sleeper
	log         zerolog.Logger

	// guard rejects overlapping updates.
	guard *semaphore.Weighted
}

// New opens a handle to a panel wired to the SPI port p.
func New(p spi.Port, pins Pins, opts *Opts) (*Dev, error) {
	t, err := NewSPI(p, pins, opts.MaxHz, opts.Clock)
	if err != nil {
		return nil, err
	}
	return NewWithTransport(t, opts)
}

// NewHat opens a handle to a panel on an EXT3 board plugged on the
// Raspberry Pi header.
func NewHat(p spi.Port, opts *Opts) (*Dev, error) {
	return New(p, HatPins(), opts)
}

// NewWithTransport opens a handle to a panel reached through t. Nothing is
// sent to the panel until the first update or Resume.
func NewWithTransport(t Transport, opts *Opts) (*Dev, error) {
	profile, err := panel.ByName(opts.Panel)
	if err != nil {
		return nil, err
	}

	d := &Dev{
		t:           t,
		profile:     profile,
		fam:         familyOf(profile.Family),
		fb:          frame.New(profile.Width, profile.Height, profile.Split),
		temperature: DefaultTemperature,
		state:       Off,
		stage:       Idle,
		timeout:     opts.BusyTimeout,
		autoSuspend: opts.AutoSuspend,
		clock:       opts.Clock,
		log:         zerolog.Nop(),
		guard:       semaphore.NewWeighted(1),
	}
	if d.timeout == 0 {
		d.timeout = DefaultBusyTimeout
	}
	if opts.Clock == nil {
		d.clock = clockwork.NewRealClock()
	}
	if opts.Logger != nil {
		d.log = opts.Logger.With().Str("panel", profile.Name).Logger()
	}
	d.fb.SetOrientation(opts.Orientation)
	d.fb.SetInvert(opts.Invert)
	d.fb.Clear(frame.White)
	return d, nil
}

// Profile returns the description of the panel.
func (d *Dev) Profile() *panel.Profile {
	return d.profile
}

// Buffer returns the frame buffer. Drawing into it takes effect on the next
// update.
func (d *Dev) Buffer() *frame.Buffer {
	return d.fb
}

// Clear fills the frame buffer with c.
func (d *Dev) Clear(c frame.Color) {
	d.fb.Clear(c)
}

// SetPixel sets one pixel of the frame buffer.
func (d *Dev) SetPixel(x, y int, c frame.Color) {
	d.fb.SetPixel(x, y, c)
}

// Pixel returns one pixel of the frame buffer.
func (d *Dev) Pixel(x, y int) frame.Color {
	return d.fb.Pixel(x, y)
}

// SetOrientation rotates subsequent drawing.
func (d *Dev) SetOrientation(o frame.Orientation) {
	d.fb.SetOrientation(o)
}

// Invert swaps black and white for subsequent drawing.
func (d *Dev) Invert(invert bool) {
	d.fb.SetInvert(invert)
}

// SetTemperature sets the ambient temperature in °C sent with each update.
// Fast updates are only run between 0°C and 50°C.
func (d *Dev) SetTemperature(celsius int8) {
	d.temperature = celsius
}

// Temperature returns the ambient temperature used for updates.
func (d *Dev) Temperature() int8 {
	return d.temperature
}

// Calibration returns the calibration table read from the panel, or nil when
// it has not been read yet.
func (d *Dev) Calibration() *otp.Table {
	return d.table
}

// ColorModel implements display.Drawer.
func (d *Dev) ColorModel() color.Model {
	return frame.Model
}

// Bounds implements display.Drawer. It follows the orientation.
func (d *Dev) Bounds() image.Rectangle {
	return d.fb.Bounds()
}

// Draw implements display.Drawer. It renders src into the frame buffer and
// runs a fast update.
func (d *Dev) Draw(dstRect image.Rectangle, src image.Image, sp image.Point) error {
	draw.Draw(d.fb, dstRect, src, sp, draw.Src)
	return d.Flush()
}

// Halt implements conn.Resource. The image stays on the panel while its
// supply is switched off.
func (d *Dev) Halt() error {
	return d.Suspend(ScopeGPIOOnly)
}

// String returns the panel size, for example iTC 2.13".
func (d *Dev) String() string {
	return fmt.Sprintf("iTC %s", d.profile.Inches())
}

var _ display.Drawer = &Dev{}
