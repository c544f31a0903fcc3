// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package frame

import (
	"fmt"
	"image/color"
)

// Color is one of the three logical colours of an iTC monochrome panel.
//
// Accent is never stored: it is dithered into black and white when written.
type Color uint8

// Valid Color.
const (
	White Color = iota
	Black
	Accent
)

// RGBA implements color.Color.
func (c Color) RGBA() (uint32, uint32, uint32, uint32) {
	switch c {
	case Black:
		return 0, 0, 0, 0xffff
	case Accent:
		return 0x8080, 0x8080, 0x8080, 0xffff
	default:
		return 0xffff, 0xffff, 0xffff, 0xffff
	}
}

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	case Accent:
		return "accent"
	default:
		return fmt.Sprintf("Color(%d)", uint8(c))
	}
}

// Set sets the Color to a value represented by the string s. Set implements
// the flag.Value interface.
func (c *Color) Set(s string) error {
	switch s {
	case "white":
		*c = White
	case "black":
		*c = Black
	case "accent", "grey", "gray":
		*c = Accent
	default:
		return fmt.Errorf("unknown color %q: expected white, black or accent", s)
	}
	return nil
}

// Model converts any color to the nearest Color by luminance.
var Model = color.ModelFunc(func(c color.Color) color.Color {
	return convert(c)
})

func convert(c color.Color) Color {
	if v, ok := c.(Color); ok {
		return v
	}
	r, g, b, a := c.RGBA()
	if a == 0 {
		return White
	}
	// ITU-R BT.601 luma, on 16 bits.
	y := (19595*r + 38470*g + 7471*b + 1<<15) >> 16
	switch {
	case y < 0x5555:
		return Black
	case y > 0xaaaa:
		return White
	default:
		return Accent
	}
}
