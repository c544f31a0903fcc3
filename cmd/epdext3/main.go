// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// epdext3 draws on a Pervasive Displays iTC panel wired to an EXT3 board.
//
// Usage:
//
//	epdext3 [flags] clear [white|black|accent]
//	epdext3 [flags] demo
//	epdext3 [flags] text <message>
//	epdext3 [flags] regenerate
//	epdext3 [flags] otp
//	epdext3 [flags] info
//
// The board and panel are described in a YAML file created with defaults on
// first run. With -preview the image is printed to the terminal instead.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/GermanBionicSystems/pervasive/epdext3"
	"github.com/GermanBionicSystems/pervasive/epdext3/frame"
	"github.com/GermanBionicSystems/pervasive/epdext3/panel"
	"github.com/GermanBionicSystems/pervasive/internal/config"
	"github.com/GermanBionicSystems/pervasive/internal/logging"
	"github.com/GermanBionicSystems/pervasive/screenterm"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// screen is what the commands draw on: a panel or its terminal preview.
type screen interface {
	Buffer() *frame.Buffer
	FlushMode(mode epdext3.UpdateMode) (epdext3.UpdateMode, error)
	Regenerate(mode epdext3.UpdateMode) error
	Halt() error
}

// preview renders the frame buffer to the terminal.
type preview struct {
	fb   *frame.Buffer
	term *screenterm.Dev
}

func newPreview(p *panel.Profile, opts *epdext3.Opts, out io.Writer) *preview {
	fb := frame.New(p.Width, p.Height, p.Split)
	fb.SetOrientation(opts.Orientation)
	fb.SetInvert(opts.Invert)
	fb.Clear(frame.White)
	r := fb.Bounds()
	return &preview{
		fb:   fb,
		term: screenterm.New(&screenterm.Opts{W: r.Dx(), H: r.Dy(), Scale: 2, Out: out}),
	}
}

func (p *preview) Buffer() *frame.Buffer {
	return p.fb
}

func (p *preview) FlushMode(mode epdext3.UpdateMode) (epdext3.UpdateMode, error) {
	err := p.term.Draw(p.fb.Bounds(), p.fb, image.Point{})
	p.fb.Promote()
	return mode, err
}

func (p *preview) Regenerate(mode epdext3.UpdateMode) error {
	for _, c := range []frame.Color{frame.Black, frame.White} {
		p.fb.Clear(c)
		if _, err := p.FlushMode(mode); err != nil {
			return err
		}
	}
	return nil
}

func (p *preview) Halt() error {
	return p.term.Halt()
}

// pin resolves a gpioreg name; an empty optional name gives nil.
func pin(name string, required bool) (gpio.PinIO, error) {
	if name == "" {
		if required {
			return nil, errors.New("missing pin name")
		}
		return nil, nil
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("unknown pin %q", name)
	}
	return p, nil
}

func openPanel(cfg *config.Config, opts *epdext3.Opts) (*epdext3.Dev, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	var pins epdext3.Pins
	for _, p := range []struct {
		name     string
		required bool
		set      func(gpio.PinIO)
	}{
		{cfg.Pins.DC, true, func(p gpio.PinIO) { pins.DC = p }},
		{cfg.Pins.CS, true, func(p gpio.PinIO) { pins.CS = p }},
		{cfg.Pins.Reset, true, func(p gpio.PinIO) { pins.Reset = p }},
		{cfg.Pins.Busy, true, func(p gpio.PinIO) { pins.Busy = p }},
		{cfg.Pins.CSSlave, false, func(p gpio.PinIO) { pins.CSSlave = p }},
		{cfg.Pins.Power, false, func(p gpio.PinIO) { pins.Power = p }},
	} {
		gp, err := pin(p.name, p.required)
		if err != nil {
			return nil, err
		}
		if gp != nil {
			p.set(gp)
		}
	}

	port, err := spireg.Open(cfg.SPI.Port)
	if err != nil {
		return nil, err
	}
	logger := log.Logger
	opts.Logger = &logger
	dev, err := epdext3.New(port, pins, opts)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	dev.SetTemperature(int8(cfg.Temperature))
	return dev, nil
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "epdext3", "config.yaml")
}

func run(args []string, stdout io.Writer, fsys afero.Fs) error {
	fs := flag.NewFlagSet("epdext3", flag.ContinueOnError)
	fs.SetOutput(stdout)
	configPath := fs.String("config", defaultConfigPath(), "path to the YAML configuration")
	panelName := fs.String("panel", "", "panel code overriding the configuration, e.g. 266_PS_0C")
	mode := epdext3.Fast
	fs.Var(&mode, "mode", "update mode: fast or global")
	previewFlag := fs.Bool("preview", false, "print to the terminal instead of driving the panel")
	verbose := fs.Bool("v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("missing command: clear, demo, text, regenerate, otp or info")
	}

	cfg, err := config.Load(fsys, *configPath)
	if err != nil {
		return err
	}
	if *panelName != "" {
		cfg.Panel = *panelName
	}
	level := cfg.Log.Level
	if *verbose {
		level = "debug"
	}
	if err := logging.Init(level, cfg.Log.File, os.Stderr); err != nil {
		return err
	}
	opts, err := cfg.Opts()
	if err != nil {
		return err
	}
	profile, err := panel.ByName(cfg.Panel)
	if err != nil {
		return err
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	if cmd == "info" {
		return info(stdout, profile, cfg)
	}

	var s screen
	var dev *epdext3.Dev
	if *previewFlag {
		if cmd == "otp" {
			return errors.New("otp needs the panel, drop -preview")
		}
		s = newPreview(profile, opts, stdout)
	} else {
		if dev, err = openPanel(cfg, opts); err != nil {
			return err
		}
		s = dev
	}
	defer func() {
		if err := s.Halt(); err != nil {
			log.Warn().Err(err).Msg("halt")
		}
	}()

	switch cmd {
	case "clear":
		c := frame.White
		if len(rest) > 0 {
			if err := c.Set(rest[0]); err != nil {
				return err
			}
		}
		s.Buffer().Clear(c)
	case "demo":
		if err := drawDemo(s.Buffer()); err != nil {
			return err
		}
	case "text":
		if len(rest) == 0 {
			return errors.New("text: missing message")
		}
		drawText(s.Buffer(), strings.Join(rest, " "))
	case "regenerate":
		return s.Regenerate(mode)
	case "otp":
		return dumpOTP(stdout, dev)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	used, err := s.FlushMode(mode)
	if err != nil {
		return err
	}
	log.Info().Stringer("mode", used).Str("command", cmd).Msg("done")
	return nil
}

func info(w io.Writer, p *panel.Profile, cfg *config.Config) error {
	_, err := fmt.Fprintf(w, "iTC %s %s\n  id:          %s\n  fast update: %t\n  frame:       %d bytes\n  temperature: %d°C\n",
		p.Inches(), p, p.ID, p.FastUpdate(), p.FrameSize(), cfg.Temperature)
	return err
}

func dumpOTP(w io.Writer, dev *epdext3.Dev) error {
	if err := dev.Resume(); err != nil {
		return err
	}
	t := dev.Calibration()
	if _, err := fmt.Fprintln(w, t); err != nil {
		return err
	}
	for i := 0; i < len(t.Bytes); i += 16 {
		if _, err := fmt.Fprintf(w, "%04x  % x\n", i, t.Bytes[i:min(i+16, len(t.Bytes))]); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout, afero.NewOsFs()); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Error().Err(err).Msg("epdext3")
		os.Exit(1)
	}
}
