// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package frame

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"
)

func TestPropertySetGetRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		split := rapid.Bool().Draw(t, "split")
		w := 8 * rapid.IntRange(1, 12).Draw(t, "w8")
		if split {
			w = 16 * rapid.IntRange(1, 6).Draw(t, "w16")
		}
		h := rapid.IntRange(1, 64).Draw(t, "h")
		b := New(w, h, split)
		b.SetOrientation(Orientation(rapid.IntRange(0, 3).Draw(t, "orientation")))
		b.SetInvert(rapid.Bool().Draw(t, "invert"))
		b.Clear(rapid.SampledFrom([]Color{White, Black, Accent}).Draw(t, "background"))

		r := b.Bounds()
		x := rapid.IntRange(0, r.Dx()-1).Draw(t, "x")
		y := rapid.IntRange(0, r.Dy()-1).Draw(t, "y")
		c := rapid.SampledFrom([]Color{White, Black}).Draw(t, "color")

		b.SetPixel(x, y, c)
		if got := b.Pixel(x, y); got != c {
			t.Fatalf("Pixel(%d, %d) = %v after SetPixel(%v)", x, y, got, c)
		}

		b.SetPixel(x, y, Accent)
		want := White
		if (x+y)%2 == 0 {
			want = Black
		}
		if got := b.Pixel(x, y); got != want {
			t.Fatalf("Pixel(%d, %d) = %v after SetPixel(accent), want %v", x, y, got, want)
		}
	})
}

func TestPropertySetPixelTouchesOneBit(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := New(104, 212, false)
		b.SetOrientation(Orientation(rapid.IntRange(0, 3).Draw(t, "orientation")))
		r := b.Bounds()
		x := rapid.IntRange(0, r.Dx()-1).Draw(t, "x")
		y := rapid.IntRange(0, r.Dy()-1).Draw(t, "y")

		b.SetPixel(x, y, Black)

		ones := 0
		for _, v := range b.Next() {
			for ; v != 0; v &= v - 1 {
				ones++
			}
		}
		if ones != 1 {
			t.Fatalf("SetPixel(%d, %d) set %d bits", x, y, ones)
		}
	})
}

func TestClearAccentCheckerboard(t *testing.T) {
	b := New(104, 212, false)
	b.Clear(Accent)

	for row := 0; row < 212; row++ {
		want := byte(0x55)
		if row%2 == 1 {
			want = 0xaa
		}
		line := b.Next()[row*b.RowBytes() : (row+1)*b.RowBytes()]
		if diff := cmp.Diff(line, bytes.Repeat([]byte{want}, 13)); diff != "" {
			t.Fatalf("row %d difference (-got +want):\n%s", row, diff)
		}
	}

	// With no rotation, logical x walks bits and logical y walks rows.
	for y := 0; y < 212; y++ {
		for x := 0; x < 104; x++ {
			want := White
			if (x+y)%2 == 1 {
				want = Black
			}
			if got := b.Pixel(x, y); got != want {
				t.Fatalf("Pixel(%d, %d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestClearAccentIgnoresInvert(t *testing.T) {
	a := New(16, 4, false)
	a.Clear(Accent)
	b := New(16, 4, false)
	b.SetInvert(true)
	b.Clear(Accent)
	if diff := cmp.Diff(a.Next(), b.Next()); diff != "" {
		t.Errorf("Clear(Accent) difference (-plain +inverted):\n%s", diff)
	}
}

func TestClear(t *testing.T) {
	for _, tc := range []struct {
		name   string
		invert bool
		color  Color
		want   byte
	}{
		{name: "white", color: White, want: 0x00},
		{name: "black", color: Black, want: 0xff},
		{name: "white inverted", invert: true, color: White, want: 0xff},
		{name: "black inverted", invert: true, color: Black, want: 0x00},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := New(104, 212, false)
			b.SetInvert(tc.invert)
			b.Clear(tc.color)

			if diff := cmp.Diff(b.Next(), bytes.Repeat([]byte{tc.want}, 2756)); diff != "" {
				t.Errorf("Clear() difference (-got +want):\n%s", diff)
			}
			if got := b.Pixel(50, 100); got != tc.color {
				t.Errorf("Pixel() = %v, want %v", got, tc.color)
			}
		})
	}
}

func TestAddressing(t *testing.T) {
	for _, tc := range []struct {
		name      string
		width     int
		height    int
		split     bool
		x, y      int
		wantIndex int
		wantByte  byte
	}{
		{name: "origin", width: 104, height: 212, x: 0, y: 0, wantIndex: 0, wantByte: 0x80},
		{name: "bit 7", width: 104, height: 212, x: 7, y: 0, wantIndex: 0, wantByte: 0x01},
		{name: "next byte", width: 104, height: 212, x: 8, y: 0, wantIndex: 1, wantByte: 0x80},
		{name: "row", width: 104, height: 212, x: 9, y: 3, wantIndex: 3*13 + 1, wantByte: 0x40},
		{name: "split lower half", width: 672, height: 960, split: true, x: 335, y: 2, wantIndex: 2*42 + 41, wantByte: 0x01},
		{name: "split upper half", width: 672, height: 960, split: true, x: 336, y: 2, wantIndex: 672*960/16 + 2*42, wantByte: 0x80},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := New(tc.width, tc.height, tc.split)
			b.SetPixel(tc.x, tc.y, Black)

			for i, v := range b.Next() {
				want := byte(0)
				if i == tc.wantIndex {
					want = tc.wantByte
				}
				if v != want {
					t.Fatalf("Next()[%d] = %#02x, want %#02x", i, v, want)
				}
			}
		})
	}
}

func TestOutOfBounds(t *testing.T) {
	for o := Rotate0; o <= Rotate270; o++ {
		b := New(104, 212, false)
		b.SetOrientation(o)
		r := b.Bounds()
		for _, p := range []image.Point{
			{-1, 0}, {0, -1}, {r.Dx(), 0}, {0, r.Dy()}, {r.Dx(), r.Dy()},
		} {
			b.SetPixel(p.X, p.Y, Black)
			if got := b.Pixel(p.X, p.Y); got != White {
				t.Errorf("orientation %d: Pixel(%v) = %v, want white", o, p, got)
			}
		}
		if diff := cmp.Diff(b.Next(), make([]byte, 2756)); diff != "" {
			t.Errorf("orientation %d: buffer modified (-got +want):\n%s", o, diff)
		}
	}
}

func TestBounds(t *testing.T) {
	b := New(104, 212, false)
	want := []image.Rectangle{
		image.Rect(0, 0, 104, 212),
		image.Rect(0, 0, 212, 104),
		image.Rect(0, 0, 104, 212),
		image.Rect(0, 0, 212, 104),
	}
	for o := Rotate0; o <= Rotate270; o++ {
		b.SetOrientation(o)
		if diff := cmp.Diff(b.Bounds(), want[o]); diff != "" {
			t.Errorf("orientation %d: Bounds() difference (-got +want):\n%s", o, diff)
		}
	}
	b.SetOrientation(-1)
	if b.Orientation() != Rotate270 {
		t.Errorf("SetOrientation(-1) = %d, want %d", b.Orientation(), Rotate270)
	}
}

func TestRotationsAgree(t *testing.T) {
	// The same physical pixel is addressed by each orientation.
	b := New(104, 212, false)
	b.SetOrientation(Rotate0)
	b.SetPixel(0, 0, Black)

	for _, tc := range []struct {
		o    Orientation
		x, y int
	}{
		{Rotate90, 0, 103},
		{Rotate180, 103, 211},
		{Rotate270, 211, 0},
	} {
		b.SetOrientation(tc.o)
		if got := b.Pixel(tc.x, tc.y); got != Black {
			t.Errorf("orientation %d: Pixel(%d, %d) = %v, want black", tc.o, tc.x, tc.y, got)
		}
	}
}

func TestPromote(t *testing.T) {
	b := New(16, 8, false)
	b.Clear(Black)
	if bytes.Equal(b.Next(), b.Previous()) {
		t.Fatal("pages equal before Promote()")
	}
	b.Promote()
	if diff := cmp.Diff(b.Previous(), b.Next()); diff != "" {
		t.Errorf("Promote() difference (-previous +next):\n%s", diff)
	}
	b.SetPixel(0, 0, White)
	if b.Previous()[0] != 0xff {
		t.Error("Promote() aliased the pages")
	}
}

func TestHalves(t *testing.T) {
	b := New(32, 2, true)
	b.SetPixel(16, 0, Black)
	if diff := cmp.Diff(b.NextHalf(0), make([]byte, 4)); diff != "" {
		t.Errorf("NextHalf(0) difference (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(b.NextHalf(1), []byte{0x80, 0, 0, 0}); diff != "" {
		t.Errorf("NextHalf(1) difference (-got +want):\n%s", diff)
	}
	if len(b.PreviousHalf(1)) != 4 {
		t.Errorf("len(PreviousHalf(1)) = %d, want 4", len(b.PreviousHalf(1)))
	}
}

func TestDraw(t *testing.T) {
	b := New(16, 16, false)
	draw.Draw(b, image.Rect(0, 0, 8, 16), &image.Uniform{color.Black}, image.Point{}, draw.Src)
	draw.Draw(b, image.Rect(8, 0, 16, 16), &image.Uniform{color.Gray{0x80}}, image.Point{}, draw.Src)

	for _, tc := range []struct {
		x, y int
		want Color
	}{
		{0, 0, Black},
		{7, 15, Black},
		{8, 0, Black},
		{9, 0, White},
		{9, 1, Black},
	} {
		if got := b.At(tc.x, tc.y); got != tc.want {
			t.Errorf("At(%d, %d) = %v, want %v", tc.x, tc.y, got, tc.want)
		}
	}
}

func TestModel(t *testing.T) {
	for _, tc := range []struct {
		in   color.Color
		want Color
	}{
		{color.White, White},
		{color.Black, Black},
		{color.Gray{0x80}, Accent},
		{color.Transparent, White},
		{Accent, Accent},
		{color.RGBA{0xff, 0, 0, 0xff}, Black},
		{color.RGBA{0xff, 0xff, 0, 0xff}, White},
	} {
		if got := Model.Convert(tc.in); got != tc.want {
			t.Errorf("Model.Convert(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestColorSet(t *testing.T) {
	var c Color
	if err := c.Set("accent"); err != nil || c != Accent {
		t.Errorf("Set(accent) = %v, %v", c, err)
	}
	if err := c.Set("red"); err == nil {
		t.Error("Set(red) succeeded")
	}
}
