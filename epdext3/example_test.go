// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package epdext3_test

import (
	"image"
	"image/color"
	"log"

	"github.com/GermanBionicSystems/pervasive/epdext3"
	"github.com/GermanBionicSystems/pervasive/epdext3/frame"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

func Example() {
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}

	b, err := spireg.Open("")
	if err != nil {
		log.Fatal(err)
	}
	defer b.Close()

	dev, err := epdext3.NewHat(b, &epdext3.Opts{Panel: "213_PS_0E", Orientation: frame.Rotate90})
	if err != nil {
		log.Fatal(err)
	}

	r := dev.Bounds()
	img := image.NewGray(r)
	for x := r.Min.X; x < r.Max.X; x++ {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			if (x/8+y/8)%2 == 0 {
				img.SetGray(x, y, color.Gray{})
			} else {
				img.SetGray(x, y, color.Gray{Y: 0xff})
			}
		}
	}
	if err := dev.Draw(r, img, image.Point{}); err != nil {
		log.Fatal(err)
	}

	dev.SetTemperature(18)
	if _, err := dev.FlushMode(epdext3.Global); err != nil {
		log.Fatal(err)
	}
	if err := dev.Halt(); err != nil {
		log.Fatal(err)
	}
}
