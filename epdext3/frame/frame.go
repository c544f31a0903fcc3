// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package frame implements the bit-packed frame buffer of iTC monochrome
// panels.
//
// A Buffer keeps two pages: the next image being drawn and the previous
// image last sent to the panel, which fast updates use as their reference.
// Each page stores one bit per pixel, MSB first, one row of bytes per
// physical line along the panel's wide side.
//
// Buffer implements draw.Image in logical (oriented) coordinates, so any
// image/draw compatible library can render into it.
package frame

import (
	"image"
	"image/color"
	"image/draw"
)

// Orientation is the rotation applied to logical coordinates, in quarter
// turns.
type Orientation int

// Valid Orientation.
const (
	Rotate0 Orientation = iota
	Rotate90
	Rotate180
	Rotate270
)

// Buffer is the off-screen frame buffer of one panel.
type Buffer struct {
	next     []byte
	previous []byte

	// Physical geometry: width is the small side, height the wide side.
	width  int
	height int

	stride int
	page   int
	split  bool

	orientation Orientation
	invert      bool
}

// New returns a white Buffer for a panel of the given physical size.
//
// width must be a multiple of 8 (16 for split panels). A split buffer models
// two cascaded controllers each driving half of the width.
func New(width, height int, split bool) *Buffer {
	stride := width / 8
	if split {
		stride = width / 16
	}
	page := height * width / 8
	return &Buffer{
		next:     make([]byte, page),
		previous: make([]byte, page),
		width:    width,
		height:   height,
		stride:   stride,
		page:     page,
		split:    split,
	}
}

// SetOrientation sets the rotation applied to subsequent pixel accesses.
func (b *Buffer) SetOrientation(o Orientation) {
	b.orientation = o % 4
	if b.orientation < 0 {
		b.orientation += 4
	}
}

// Orientation returns the current rotation.
func (b *Buffer) Orientation() Orientation {
	return b.orientation
}

// SetInvert swaps black and white for subsequent writes and reads.
func (b *Buffer) SetInvert(invert bool) {
	b.invert = invert
}

// Inverted reports whether black and white are swapped.
func (b *Buffer) Inverted() bool {
	return b.invert
}

// RowBytes returns the number of bytes per buffer row.
func (b *Buffer) RowBytes() int {
	return b.stride
}

// PageSize returns the size in bytes of one page.
func (b *Buffer) PageSize() int {
	return b.page
}

// Next returns the page holding the image to display next.
func (b *Buffer) Next() []byte {
	return b.next
}

// Previous returns the page holding the image currently on the panel.
func (b *Buffer) Previous() []byte {
	return b.previous
}

// NextHalf returns half i (0 or 1) of the next page of a split buffer.
func (b *Buffer) NextHalf(i int) []byte {
	h := b.page / 2
	return b.next[i*h : (i+1)*h]
}

// PreviousHalf returns half i (0 or 1) of the previous page of a split
// buffer.
func (b *Buffer) PreviousHalf(i int) []byte {
	h := b.page / 2
	return b.previous[i*h : (i+1)*h]
}

// Promote copies the next page into the previous page. It must only be
// called once the next page has been transferred to the panel.
func (b *Buffer) Promote() {
	copy(b.previous, b.next)
}

// Clear fills the next page with c.
//
// Accent produces a checkerboard whose phase alternates with the buffer row
// parity; it ignores the invert setting.
func (b *Buffer) Clear(c Color) {
	if c == Accent {
		for row := 0; row < b.page/b.stride; row++ {
			pattern := byte(0b01010101)
			if row%2 == 1 {
				pattern = 0b10101010
			}
			line := b.next[row*b.stride : (row+1)*b.stride]
			for i := range line {
				line[i] = pattern
			}
		}
		return
	}

	fill := byte(0xFF)
	if (c == White) != b.invert {
		fill = 0x00
	}
	for i := range b.next {
		b.next[i] = fill
	}
}

// SetPixel sets the logical pixel (x, y) of the next page. Coordinates
// outside Bounds() are ignored.
//
// Accent is resolved to black when x+y is even and white otherwise. The
// phase follows logical coordinates, so it does not change with the
// orientation.
func (b *Buffer) SetPixel(x, y int, c Color) {
	if c == Accent {
		if (x+y)%2 == 0 {
			c = Black
		} else {
			c = White
		}
	}

	px, py, ok := b.orient(x, y)
	if !ok {
		return
	}
	z, mask := b.address(px, py)
	if (c == Black) != b.invert {
		b.next[z] |= mask
	} else {
		b.next[z] &^= mask
	}
}

// Pixel returns the logical pixel (x, y) of the next page. Coordinates
// outside Bounds() read as White.
func (b *Buffer) Pixel(x, y int) Color {
	px, py, ok := b.orient(x, y)
	if !ok {
		return White
	}
	z, mask := b.address(px, py)
	if (b.next[z]&mask != 0) != b.invert {
		return Black
	}
	return White
}

// orient maps logical coordinates to buffer coordinates: px indexes rows
// along the wide side and py bits along the small side.
func (b *Buffer) orient(x, y int) (int, int, bool) {
	if x < 0 || y < 0 {
		return 0, 0, false
	}
	w, h := b.width, b.height
	switch b.orientation {
	case Rotate90:
		if x < h && y < w {
			return x, w - 1 - y, true
		}
	case Rotate180:
		if x < w && y < h {
			return h - 1 - y, w - 1 - x, true
		}
	case Rotate270:
		if x < h && y < w {
			return h - 1 - x, y, true
		}
	default:
		if x < w && y < h {
			return y, x, true
		}
	}
	return 0, 0, false
}

// address returns the byte index and bit mask of buffer coordinates.
func (b *Buffer) address(px, py int) (int, byte) {
	base := 0
	if b.split && py >= b.width/2 {
		py -= b.width / 2
		base = b.page / 2
	}
	return base + px*b.stride + py>>3, 0x80 >> uint(py%8)
}

// ColorModel implements image.Image.
func (b *Buffer) ColorModel() color.Model {
	return Model
}

// Bounds implements image.Image. The rectangle is rotated with the
// orientation.
func (b *Buffer) Bounds() image.Rectangle {
	if b.orientation%2 == 1 {
		return image.Rect(0, 0, b.height, b.width)
	}
	return image.Rect(0, 0, b.width, b.height)
}

// At implements image.Image.
func (b *Buffer) At(x, y int) color.Color {
	return b.Pixel(x, y)
}

// Set implements draw.Image.
func (b *Buffer) Set(x, y int, c color.Color) {
	b.SetPixel(x, y, convert(c))
}

var _ draw.Image = &Buffer{}
