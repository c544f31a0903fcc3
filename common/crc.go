// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package common contains functions used across multiple packages.
package common

// CRC8 returns the CRC-8 of bytes, with polynomial 0x31 and initial value
// 0xff. It fingerprints panel calibration tables.
func CRC8(bytes []byte) byte {
	var crc byte = 0xff
	for _, val := range bytes {
		crc ^= val
		for range 8 {
			if (crc & 0x80) == 0 {
				crc <<= 1
			} else {
				crc = (byte)((crc << 1) ^ 0x31)
			}
		}
	}
	return crc
}
