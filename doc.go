// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pervasive is a container for the Pervasive Displays e-paper driver
// and its tools.
//
// The driver lives in epdext3, the epdext3 command in cmd/epdext3 and a
// terminal preview usable without hardware in screenterm.
package pervasive
