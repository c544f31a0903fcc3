// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"image"
	"image/draw"
	"strings"

	"github.com/GermanBionicSystems/pervasive/epdext3/frame"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// drawDemo renders a test scene exercising the three colours.
func drawDemo(fb *frame.Buffer) error {
	r := fb.Bounds()
	w, h := float64(r.Dx()), float64(r.Dy())
	dc := gg.NewContext(r.Dx(), r.Dy())
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return err
	}
	dc.SetFontFace(truetype.NewFace(f, &truetype.Options{Size: h / 8}))

	// Grey resolves to the accent pattern.
	dc.SetRGB(0.5, 0.5, 0.5)
	dc.DrawRectangle(0, 0, w, h/4)
	dc.Fill()

	dc.SetRGB(0, 0, 0)
	text := "Hello from periph!"
	tw, th := dc.MeasureString(text)
	padding := h / 16
	dc.DrawRoundedRectangle((w-tw)/2-padding, h/2-th-padding, tw+2*padding, th+2*padding, padding)
	dc.Stroke()
	dc.DrawStringAnchored(text, w/2, h/2-th/2, 0.5, 0.5)
	for i := 0; i < 10; i++ {
		x := w * float64(i+1) / 11
		dc.DrawCircle(x, h*3/4, h/24)
		dc.DrawRectangle(x-h/48, h*7/8, h/24, h/24)
	}
	dc.Fill()

	draw.Draw(fb, r, dc.Image(), image.Point{}, draw.Src)
	return nil
}

// drawText writes msg in black on white. A literal `\n` starts a new line.
func drawText(fb *frame.Buffer, msg string) {
	fb.Clear(frame.White)
	f := basicfont.Face7x13
	drawer := font.Drawer{
		Dst:  fb,
		Src:  &image.Uniform{frame.Black},
		Face: f,
	}
	y := f.Ascent + 2
	for _, line := range strings.Split(msg, `\n`) {
		drawer.Dot = fixed.P(2, y)
		drawer.DrawString(line)
		y += f.Height
	}
}
