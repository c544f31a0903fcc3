// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package otp reads the factory calibration table stored in the
// one-time-programmable memory of iTC panels.
//
// The memory is organised in two banks. The first byte read tells which bank
// is active: the signature byte when bank 0 is active, anything else when the
// panel has been reprogrammed into bank 1. In the latter case the signature
// must also be found at the start of bank 1, otherwise the calibration cannot
// be trusted and driving the panel with it could damage it.
package otp

import (
	"errors"
	"fmt"
	"io"

	"github.com/GermanBionicSystems/pervasive/common"
)

// MaxSize is the largest calibration table a panel stores.
const MaxSize = 128

// ErrCalibrationMismatch is returned when the signature of the active bank is
// not found where expected.
var ErrCalibrationMismatch = errors.New("otp: calibration signature mismatch")

// Bus is the transport used to read the memory.
//
// BeginRead sends the memory read command and switches the bus to its read
// direction. Switching back is left to the caller.
type Bus interface {
	BeginRead(cmd byte) error
	io.ByteReader
}

// Bank locates the calibration data inside one memory bank.
type Bank struct {
	// OffsetA5 is the address of the bank signature.
	OffsetA5 uint16
	// OffsetPSR is the address of the first calibration byte.
	OffsetPSR uint16
}

// Layout describes how a panel family stores its calibration.
type Layout struct {
	// Command is the memory read command.
	Command byte
	// Signature is the expected first byte of the active bank.
	Signature byte
	// Banks lists the offsets for bank 0 and bank 1.
	Banks [2]Bank
	// Size is the number of calibration bytes to read.
	Size int
}

// Table is a calibration table read from a panel.
type Table struct {
	// Bytes holds the calibration data.
	Bytes []byte
	// Valid reports whether the signature was verified.
	Valid bool
	// Bank is the memory bank the table was read from.
	Bank int
	// Embedded is set when the panel has no readable memory and ships with
	// fixed calibration.
	Embedded bool
}

// Checksum returns the CRC8 of the table, handy to fingerprint a panel.
func (t *Table) Checksum() byte {
	return common.CRC8(t.Bytes)
}

func (t *Table) String() string {
	if t.Embedded {
		return "otp.Table{embedded}"
	}
	return fmt.Sprintf("otp.Table{bank: %d, size: %d, crc: %#02x}", t.Bank, len(t.Bytes), t.Checksum())
}

// Embedded returns the table of a panel with fixed calibration.
func Embedded(data []byte) *Table {
	return &Table{
		Bytes:    append([]byte(nil), data...),
		Valid:    true,
		Embedded: true,
	}
}

// Read reads the calibration table described by l.
func Read(bus Bus, l *Layout) (*Table, error) {
	if l.Size <= 0 || l.Size > MaxSize {
		return nil, fmt.Errorf("otp: invalid table size %d", l.Size)
	}

	if err := bus.BeginRead(l.Command); err != nil {
		return nil, err
	}

	// The first byte clocked out after the command is a dummy.
	if _, err := bus.ReadByte(); err != nil {
		return nil, err
	}
	first, err := bus.ReadByte()
	if err != nil {
		return nil, err
	}

	bank := 1
	if first == l.Signature {
		bank = 0
	}
	offsets := l.Banks[bank]

	// index is the address of the next byte to be read.
	index := uint16(1)
	if bank > 0 {
		if offsets.OffsetA5 < index {
			return nil, fmt.Errorf("%w: bank 1 signature expected, read %#02x", ErrCalibrationMismatch, first)
		}
		if err := skip(bus, offsets.OffsetA5-index); err != nil {
			return nil, err
		}
		sig, err := bus.ReadByte()
		if err != nil {
			return nil, err
		}
		if sig != l.Signature {
			return nil, fmt.Errorf("%w: bank 1 at %#04x reads %#02x, expected %#02x", ErrCalibrationMismatch, offsets.OffsetA5, sig, l.Signature)
		}
		index = offsets.OffsetA5 + 1
	}

	if offsets.OffsetPSR < index {
		return nil, fmt.Errorf("otp: calibration offset %#04x precedes signature", offsets.OffsetPSR)
	}
	if err := skip(bus, offsets.OffsetPSR-index); err != nil {
		return nil, err
	}

	t := &Table{Bytes: make([]byte, l.Size), Valid: true, Bank: bank}
	for i := range t.Bytes {
		if t.Bytes[i], err = bus.ReadByte(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func skip(bus io.ByteReader, n uint16) error {
	for ; n > 0; n-- {
		if _, err := bus.ReadByte(); err != nil {
			return err
		}
	}
	return nil
}
