// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config loads the YAML configuration of the epdext3 command.
//
// The first Load creates the file with the default configuration, so the
// user has something to edit.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/GermanBionicSystems/pervasive/epdext3"
	"github.com/GermanBionicSystems/pervasive/epdext3/frame"
	"github.com/GermanBionicSystems/pervasive/epdext3/panel"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"
)

// SPIConfig selects the SPI port.
type SPIConfig struct {
	// Port is the spireg name; empty selects the first port.
	Port string `yaml:"port"`
	// MaxHz is the clock; zero selects the driver default.
	MaxHz int64 `yaml:"max_hz" validate:"gte=0,lte=20000000"`
}

// PinsConfig names the board signals as known to gpioreg. Empty CSSlave and
// Power mean the board lacks them.
type PinsConfig struct {
	DC      string `yaml:"dc" validate:"required"`
	CS      string `yaml:"cs" validate:"required"`
	CSSlave string `yaml:"cs_slave,omitempty"`
	Reset   string `yaml:"reset" validate:"required"`
	Busy    string `yaml:"busy" validate:"required"`
	Power   string `yaml:"power,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=trace debug info warn error"`
	// File, when set, receives the log in addition to the console.
	File string `yaml:"file,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	// Panel is the panel code printed on its flex cable, e.g. "213_PS_0E".
	Panel string `yaml:"panel" validate:"required,panel"`
	// Orientation is the rotation in degrees.
	Orientation int  `yaml:"orientation" validate:"oneof=0 90 180 270"`
	Invert      bool `yaml:"invert"`
	// Temperature is the ambient temperature in °C.
	Temperature int `yaml:"temperature" validate:"gte=-40,lte=85"`
	// BusyTimeout is a Go duration; "0s" waits forever.
	BusyTimeout string `yaml:"busy_timeout" validate:"duration"`
	// AutoSuspend is "none" or "gpio"; empty keeps the panel on.
	AutoSuspend string `yaml:"auto_suspend,omitempty" validate:"omitempty,oneof=none gpio"`

	SPI  SPIConfig  `yaml:"spi"`
	Pins PinsConfig `yaml:"pins"`
	Log  LogConfig  `yaml:"log"`
}

// DefaultConfig returns the configuration of a 2.13" panel on an EXT3 board
// plugged on the Raspberry Pi header.
func DefaultConfig() *Config {
	return &Config{
		Panel:       "213_PS_0E",
		Orientation: 0,
		Temperature: epdext3.DefaultTemperature,
		BusyTimeout: epdext3.DefaultBusyTimeout.String(),
		Pins: PinsConfig{
			DC:    "GPIO25",
			CS:    "GPIO8",
			Reset: "GPIO17",
			Busy:  "GPIO24",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Normalize fills in values left empty by older or hand-written files.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Panel == "" {
		c.Panel = d.Panel
	}
	if c.BusyTimeout == "" {
		c.BusyTimeout = d.BusyTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	p := &c.Pins
	if p.DC == "" && p.CS == "" && p.Reset == "" && p.Busy == "" {
		*p = d.Pins
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("panel", validatePanel)
	_ = v.RegisterValidation("duration", validateDuration)
	return v
}

// validatePanel checks the panel is in the catalogue.
func validatePanel(fl validator.FieldLevel) bool {
	_, err := panel.ByName(fl.Field().String())
	return err == nil
}

func validateDuration(fl validator.FieldLevel) bool {
	_, err := time.ParseDuration(fl.Field().String())
	return err == nil
}

// Validate returns an error listing the invalid fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("invalid configuration: %w", verrs)
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// Opts returns the driver options. The temperature is applied separately
// with Dev.SetTemperature.
func (c *Config) Opts() (*epdext3.Opts, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	timeout, _ := time.ParseDuration(c.BusyTimeout)
	if timeout == 0 {
		timeout = -1
	}
	opts := &epdext3.Opts{
		Panel:       c.Panel,
		Orientation: frame.Orientation(c.Orientation / 90),
		Invert:      c.Invert,
		MaxHz:       physic.Frequency(c.SPI.MaxHz) * physic.Hertz,
		BusyTimeout: timeout,
	}
	if c.AutoSuspend != "" {
		var scope epdext3.PowerScope
		if err := scope.Set(c.AutoSuspend); err != nil {
			return nil, err
		}
		opts.AutoSuspend = &scope
	}
	return opts, nil
}

// Load loads configuration from the YAML file at path.
//
// When the file does not exist, the default configuration is written there
// and returned. Keys missing from the file keep their default value.
func Load(fsys afero.Fs, path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(fsys, path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path atomically, with 0600 permissions.
func Save(fsys afero.Fs, path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := afero.TempFile(fsys, dir, ".epdext3-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = fsys.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := fsys.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return fsys.Rename(tmpName, path)
}
