// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package screenterm implements a 2D display.Drawer that outputs to the
// terminal using ANSI color codes.
//
// It previews what an e-paper panel would show without waiting for its
// refresh, or without the panel at all.
package screenterm

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/display"
)

// Opts represents the options available for this display.
type Opts struct {
	W, H int
	// Scale is the side in pixels of the square averaged into one terminal
	// cell. Zero means 1.
	Scale   int
	Palette *ansi256.Palette
	// Out defaults to stdout.
	Out io.Writer

	_ struct{}
}

// Dev is a monochrome screen emulator that outputs to the console.
type Dev struct {
	w       io.Writer
	scale   int
	palette ansi256.Palette

	img *image.Gray
	buf bytes.Buffer
}

// New returns a Dev that displays at the console.
func New(opts *Opts) *Dev {
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	w := opts.Out
	if w == nil {
		w = colorable.NewColorableStdout()
	}
	scale := max(opts.Scale, 1)
	img := image.NewGray(image.Rect(0, 0, opts.W, opts.H))
	draw.Draw(img, img.Rect, image.White, image.Point{}, draw.Src)
	return &Dev{
		w:       w,
		scale:   scale,
		palette: *p,
		img:     img,
	}
}

func (d *Dev) String() string {
	return fmt.Sprintf("ScreenTerm{%dx%d}", d.img.Rect.Dx(), d.img.Rect.Dy())
}

// Halt implements conn.Resource.
//
// It resets the terminal attributes.
func (d *Dev) Halt() error {
	_, err := io.WriteString(d.w, "\033[0m")
	return err
}

// ColorModel implements display.Drawer.
func (d *Dev) ColorModel() color.Model {
	return color.GrayModel
}

// Bounds implements display.Drawer.
func (d *Dev) Bounds() image.Rectangle {
	return d.img.Rect
}

// Draw implements display.Drawer.
//
// The whole screen is printed again after each call.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	draw.Draw(d.img, r, src, sp, draw.Src)
	return d.refresh()
}

// cell returns the average gray of the square whose top left corner is
// (x, y).
func (d *Dev) cell(x, y int) color.Gray {
	sum, n := 0, 0
	for j := y; j < min(y+d.scale, d.img.Rect.Max.Y); j++ {
		for i := x; i < min(x+d.scale, d.img.Rect.Max.X); i++ {
			sum += int(d.img.GrayAt(i, j).Y)
			n++
		}
	}
	return color.Gray{Y: uint8(sum / n)}
}

func (d *Dev) refresh() error {
	d.buf.Reset()
	_, _ = d.buf.WriteString("\033[0m\n")
	r := d.img.Rect
	for y := r.Min.Y; y < r.Max.Y; y += d.scale {
		for x := r.Min.X; x < r.Max.X; x += d.scale {
			_, _ = io.WriteString(&d.buf, d.palette.Block(color.NRGBAModel.Convert(d.cell(x, y)).(color.NRGBA)))
		}
		_, _ = d.buf.WriteString("\033[0m\n")
	}
	_, err := d.buf.WriteTo(d.w)
	return err
}

var _ display.Drawer = &Dev{}
var _ fmt.Stringer = &Dev{}
