// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package logging configures the global zerolog logger of the epdext3
// command.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits of the log file.
const (
	MaxSizeMB  = 1
	MaxBackups = 2
)

// Init sends the global logger to console, pretty printed, and to file when
// not empty, rotated. level is a zerolog level name.
func Init(level, file string, console io.Writer) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	writers := []io.Writer{zerolog.ConsoleWriter{Out: console, TimeFormat: "15:04:05"}}
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o750); err != nil {
			return err
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    MaxSizeMB,
			MaxBackups: MaxBackups,
		})
	}

	log.Logger = zerolog.New(io.MultiWriter(writers...)).
		Level(lvl).
		With().Timestamp().Logger()
	return nil
}
