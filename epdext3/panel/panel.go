// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package panel lists the iTC monochrome panels supported by the epdext3
// driver.
//
// A panel is identified by the code printed on its flex cable, for example
// 213_PS_0E: a 2.13" panel with film 0x0E. The numeric ID packs the same
// information as extra<<16 | size<<8 | film.
package panel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/GermanBionicSystems/pervasive/epdext3/otp"
)

// ErrUnsupported is returned for panels missing from the catalogue.
var ErrUnsupported = errors.New("panel: unsupported panel")

// ID identifies a panel model.
type ID uint32

// FeatureFast is set in the extra byte of panels driven with fast updates.
const FeatureFast = 0x01

// Size returns the size code of the panel.
func (i ID) Size() byte { return byte(i >> 8) }

// Film returns the film code of the panel.
func (i ID) Film() byte { return byte(i) }

// Extra returns the feature flags of the panel.
func (i ID) Extra() byte { return byte(i >> 16) }

func (i ID) String() string {
	return fmt.Sprintf("%#06x", uint32(i))
}

// Family groups panels sharing the same controller and update sequence.
type Family int

// Valid Family.
const (
	Small Family = iota
	Medium
	Large
)

func (f Family) String() string {
	switch f {
	case Small:
		return "small"
	case Medium:
		return "medium"
	case Large:
		return "large"
	default:
		return fmt.Sprintf("Family(%d)", int(f))
	}
}

// Profile is the static description of one panel model.
type Profile struct {
	ID   ID
	Name string
	// Diagonal is in hundredths of an inch.
	Diagonal int
	// Width is the small side, Height the wide side, both in pixels before
	// any rotation.
	Width  int
	Height int
	Family Family
	// Split panels are driven by two cascaded controllers, each owning half
	// of the width.
	Split bool
	// OTP is nil for panels shipped with embedded calibration.
	OTP *otp.Layout
	// Flag50 enables the VCOM and data interval writes of fast updates.
	Flag50 bool
}

// FastUpdate reports whether the panel supports fast updates.
func (p *Profile) FastUpdate() bool {
	return p.ID.Extra()&FeatureFast != 0
}

// RowBytes returns the number of bytes per buffer row, per half for split
// panels.
func (p *Profile) RowBytes() int {
	if p.Split {
		return p.Width / 16
	}
	return p.Width / 8
}

// PageSize returns the size of one full image in bytes.
func (p *Profile) PageSize() int {
	return p.Height * p.Width / 8
}

// FrameSize returns the size of one image transfer, which is half a page
// on split panels.
func (p *Profile) FrameSize() int {
	if p.Split {
		return p.PageSize() / 2
	}
	return p.PageSize()
}

// Inches returns the diagonal formatted as 2.13".
func (p *Profile) Inches() string {
	return fmt.Sprintf("%d.%02d\"", p.Diagonal/100, p.Diagonal%100)
}

func (p *Profile) String() string {
	return fmt.Sprintf("%s (%dx%d, %s)", p.Name, p.Width, p.Height, p.Family)
}

var (
	smallOTP = otp.Layout{
		Command:   0xa2,
		Signature: 0xa5,
		Banks:     [2]otp.Bank{{OffsetA5: 0x0000, OffsetPSR: 0x0b1b}, {OffsetA5: 0x0400, OffsetPSR: 0x0f1b}},
		Size:      2,
	}
	mediumOTP = otp.Layout{
		Command:   0xb9,
		Signature: 0xa5,
		Banks:     [2]otp.Bank{{OffsetA5: 0x0000, OffsetPSR: 0x0010}, {OffsetA5: 0x0200, OffsetPSR: 0x0210}},
		Size:      128,
	}
)

func id(extra, size, film byte) ID {
	return ID(uint32(extra)<<16 | uint32(size)<<8 | uint32(film))
}

var catalogue = []Profile{
	{ID: id(FeatureFast, 0x15, 0x0c), Name: "154_PS_0C", Diagonal: 154, Width: 152, Height: 152, Family: Small, OTP: &smallOTP, Flag50: true},
	{ID: id(FeatureFast, 0x21, 0x0e), Name: "213_PS_0E", Diagonal: 213, Width: 104, Height: 212, Family: Small, OTP: &smallOTP, Flag50: true},
	{ID: id(FeatureFast, 0x26, 0x0c), Name: "266_PS_0C", Diagonal: 266, Width: 152, Height: 296, Family: Small, OTP: &smallOTP, Flag50: true},
	{ID: id(FeatureFast, 0x27, 0x09), Name: "271_PS_09", Diagonal: 271, Width: 176, Height: 264, Family: Small, OTP: &smallOTP},
	{ID: id(FeatureFast, 0x28, 0x09), Name: "287_PS_09", Diagonal: 287, Width: 128, Height: 296, Family: Small, OTP: &smallOTP},
	{ID: id(FeatureFast, 0x37, 0x0c), Name: "370_PS_0C", Diagonal: 370, Width: 240, Height: 416, Family: Small, OTP: &smallOTP, Flag50: true},
	{ID: id(FeatureFast, 0x41, 0x0d), Name: "417_PS_0D", Diagonal: 417, Width: 400, Height: 300, Family: Small, OTP: &smallOTP},
	{ID: id(FeatureFast, 0x43, 0x0c), Name: "437_PS_0C", Diagonal: 437, Width: 176, Height: 480, Family: Small, OTP: &smallOTP, Flag50: true},
	{ID: id(0, 0x56, 0x0b), Name: "565_PS_0B", Diagonal: 565, Width: 448, Height: 600, Family: Medium, OTP: &mediumOTP},
	{ID: id(0, 0x58, 0x0b), Name: "581_PS_0B", Diagonal: 581, Width: 256, Height: 720, Family: Medium, OTP: &mediumOTP},
	{ID: id(FeatureFast, 0x74, 0x0c), Name: "741_PS_0C", Diagonal: 741, Width: 480, Height: 800, Family: Medium, OTP: &mediumOTP, Flag50: true},
	{ID: id(0, 0x96, 0x0b), Name: "969_PS_0B", Diagonal: 969, Width: 672, Height: 960, Family: Large, Split: true},
	{ID: id(0, 0xb9, 0x0b), Name: "B98_PS_0B", Diagonal: 1198, Width: 768, Height: 960, Family: Large, Split: true},
}

// All returns a copy of the catalogue.
func All() []Profile {
	return append([]Profile(nil), catalogue...)
}

// Lookup returns the profile of the panel identified by i.
func Lookup(i ID) (*Profile, error) {
	for k := range catalogue {
		if catalogue[k].ID == i {
			p := catalogue[k]
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, i)
}

// ByName returns the profile of the panel with the given code, for example
// "213_PS_0E". The comparison ignores case.
func ByName(name string) (*Profile, error) {
	for k := range catalogue {
		if strings.EqualFold(catalogue[k].Name, name) {
			p := catalogue[k]
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupported, name)
}
