// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package epdext3 controls Pervasive Displays iTC e-paper panels through an
// EXT3 extension board.
//
// Panels come in three families. Small panels are driven with a fixed reset
// timing and take their panel settings from the calibration memory. Medium
// panels additionally replay a soft-start table stored in that memory when
// powering the charge pumps. Large panels are split between two controllers,
// each receiving one half of the image, and ship with a fixed calibration.
//
// An update resets the panel, initializes it for the ambient temperature,
// sends both the previous and the next image, refreshes and then powers the
// charge pumps off. Fast updates only drive the pixels that changed and are
// only available on some panels within 0 to 50°C; Flush silently falls back
// to a global update otherwise.
//
// Datasheets
//
// https://www.pervasivedisplays.com/products/
//
// https://www.pervasivedisplays.com/product/epd-extension-kit-gen-3-ext3/
package epdext3
