// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package epdext3

import (
	"errors"
	"time"

	"github.com/GermanBionicSystems/pervasive/epdext3/frame"
	"github.com/GermanBionicSystems/pervasive/epdext3/otp"
	"github.com/GermanBionicSystems/pervasive/epdext3/panel"
	"github.com/GermanBionicSystems/pervasive/epdext3/softstart"
	"periph.io/x/conn/v3/gpio"
)

// Commands
const (
	panelSetting        byte = 0x00
	powerOff            byte = 0x02
	powerOn             byte = 0x04
	dataStartPrevious   byte = 0x10
	displayRefresh      byte = 0x12
	dataStartNext       byte = 0x13
	vcomDataInterval    byte = 0x50
	activateTemperature byte = 0xe0
	inputTemperature    byte = 0xe5
)

const (
	softReset       byte = 0x0e
	fastTemperature byte = 0x40
	fastPSR0        byte = 0x10
	fastPSR1        byte = 0x02
	vcomFastInit    byte = 0x27
	vcomFastUpdate  byte = 0x07
)

// controller issues the logical operations of an update sequence.
type controller interface {
	command(sel Select, cmd byte)
	indexData(sel Select, cmd byte, data []byte)
	waitReady()
	resetLine(l gpio.Level)
	Sleep(d time.Duration)
}

// sleeper pauses the caller. clockwork.Clock satisfies it.
type sleeper interface {
	Sleep(d time.Duration)
}

// session holds what a family needs to run one update.
type session struct {
	profile     *panel.Profile
	table       *otp.Table
	temperature int8
	mode        UpdateMode
}

// fast reports whether the fast variants of the registers are used.
func (s *session) fast() bool {
	return s.mode == Fast && s.profile.FastUpdate()
}

func (s *session) psr() ([2]byte, error) {
	if s.table == nil || len(s.table.Bytes) < 2 {
		return [2]byte{}, errors.New("calibration table lacks panel settings")
	}
	return [2]byte{s.table.Bytes[0], s.table.Bytes[1]}, nil
}

// family drives the controller of one group of panels.
type family interface {
	resetTiming() [5]time.Duration
	initialize(ctrl controller, s *session) error
	sendImage(ctrl controller, fb *frame.Buffer, s *session)
	refresh(ctrl controller, s *session) error
	powerOff(ctrl controller)
}

func familyOf(f panel.Family) family {
	switch f {
	case panel.Medium:
		return mediumFamily{}
	case panel.Large:
		return largeFamily{}
	default:
		return smallFamily{}
	}
}

func ms(n time.Duration) time.Duration {
	return n * time.Millisecond
}

// pulseReset toggles the reset line with the given pauses around each edge.
// The last pause covers t[3] and t[4]: chip select is already high between
// transfers.
func pulseReset(ctrl controller, t [5]time.Duration) {
	ctrl.Sleep(t[0])
	ctrl.resetLine(gpio.High)
	ctrl.Sleep(t[1])
	ctrl.resetLine(gpio.Low)
	ctrl.Sleep(t[2])
	ctrl.resetLine(gpio.High)
	ctrl.Sleep(t[3] + t[4])
}

// initCOG runs the initialization shared by small and medium panels.
func initCOG(ctrl controller, s *session) error {
	psr, err := s.psr()
	if err != nil {
		return err
	}
	temp := byte(s.temperature)
	if s.fast() {
		temp |= fastTemperature
		psr[0] |= fastPSR0
		psr[1] |= fastPSR1
	}

	ctrl.indexData(Master, panelSetting, []byte{softReset})
	ctrl.waitReady()
	ctrl.indexData(Master, inputTemperature, []byte{temp})
	ctrl.indexData(Master, activateTemperature, []byte{0x02})
	ctrl.indexData(Master, panelSetting, psr[:])

	if s.fast() && s.profile.Flag50 {
		ctrl.indexData(Master, vcomDataInterval, []byte{vcomFastInit})
	}
	return nil
}

// previousFrame returns what is sent as the previous image.
func previousFrame(prev []byte, s *session) []byte {
	if s.mode == Global {
		return make([]byte, len(prev))
	}
	return prev
}

type smallFamily struct{}

func (smallFamily) resetTiming() [5]time.Duration {
	return [5]time.Duration{ms(5), ms(5), ms(10), ms(5), ms(5)}
}

func (smallFamily) initialize(ctrl controller, s *session) error {
	return initCOG(ctrl, s)
}

func (smallFamily) sendImage(ctrl controller, fb *frame.Buffer, s *session) {
	ctrl.indexData(Master, dataStartPrevious, previousFrame(fb.Previous(), s))
	ctrl.indexData(Master, dataStartNext, fb.Next())
}

func (smallFamily) refresh(ctrl controller, s *session) error {
	if s.fast() && s.profile.Flag50 {
		ctrl.indexData(Master, vcomDataInterval, []byte{vcomFastUpdate})
	}
	ctrl.command(Master, powerOn)
	ctrl.waitReady()
	ctrl.command(Master, displayRefresh)
	ctrl.waitReady()
	return nil
}

func (smallFamily) powerOff(ctrl controller) {
	ctrl.command(Master, powerOff)
	ctrl.waitReady()
}

type mediumFamily struct{}

func (mediumFamily) resetTiming() [5]time.Duration {
	return [5]time.Duration{ms(200), ms(20), ms(200), ms(50), ms(5)}
}

func (mediumFamily) initialize(ctrl controller, s *session) error {
	return initCOG(ctrl, s)
}

func (mediumFamily) sendImage(ctrl controller, fb *frame.Buffer, s *session) {
	smallFamily{}.sendImage(ctrl, fb, s)
}

// refresh replays the soft-start sequence in place of the power on command.
func (mediumFamily) refresh(ctrl controller, s *session) error {
	if s.fast() && s.profile.Flag50 {
		ctrl.indexData(Master, vcomDataInterval, []byte{vcomFastUpdate})
	}
	if err := softstart.Replay(registers{ctrl}, ctrl, s.table.Bytes); err != nil {
		return err
	}
	ctrl.command(Master, displayRefresh)
	ctrl.waitReady()
	return nil
}

func (mediumFamily) powerOff(ctrl controller) {
	ctrl.command(Master, powerOff)
	ctrl.waitReady()
	ctrl.indexData(Master, softstart.RegPowerOn, []byte{0x00})
	ctrl.waitReady()
}

type largeFamily struct{}

func (largeFamily) resetTiming() [5]time.Duration {
	return [5]time.Duration{ms(200), ms(20), ms(200), ms(200), ms(5)}
}

// initialize only sets the temperature: the panel settings are embedded.
func (largeFamily) initialize(ctrl controller, s *session) error {
	ctrl.indexData(Both, inputTemperature, []byte{byte(s.temperature)})
	ctrl.indexData(Both, activateTemperature, []byte{0x02})
	return nil
}

// sendImage sends each half to its controller, next image first.
func (largeFamily) sendImage(ctrl controller, fb *frame.Buffer, s *session) {
	for i, sel := range []Select{Master, Slave} {
		ctrl.indexData(sel, dataStartNext, fb.NextHalf(i))
		ctrl.indexData(sel, dataStartPrevious, previousFrame(fb.PreviousHalf(i), s))
	}
}

func (largeFamily) refresh(ctrl controller, s *session) error {
	ctrl.command(Both, powerOn)
	ctrl.waitReady()
	ctrl.command(Both, displayRefresh)
	ctrl.waitReady()
	return nil
}

// powerOff is managed by the panel.
func (largeFamily) powerOff(ctrl controller) {}

// registers adapts a controller to softstart.Writer. Errors are collected by
// the controller.
type registers struct {
	ctrl controller
}

func (r registers) WriteRegister(reg byte, data ...byte) error {
	r.ctrl.indexData(Master, reg, data)
	return nil
}

// panelController implements controller over a Transport. The first error
// stops all further operations.
type panelController struct {
	t       Transport
	clock   sleeper
	timeout time.Duration
	err     error
}

func (pc *panelController) command(sel Select, cmd byte) {
	if pc.err != nil {
		return
	}
	pc.err = pc.t.Command(sel, cmd)
}

func (pc *panelController) indexData(sel Select, cmd byte, data []byte) {
	if pc.err != nil {
		return
	}
	pc.err = pc.t.IndexData(sel, cmd, data)
}

// waitReady waits for the busy line to go high.
func (pc *panelController) waitReady() {
	if pc.err != nil {
		return
	}
	pc.err = pc.t.WaitReady(gpio.High, pc.timeout)
}

func (pc *panelController) resetLine(l gpio.Level) {
	if pc.err != nil {
		return
	}
	pc.err = pc.t.Reset(l)
}

func (pc *panelController) Sleep(d time.Duration) {
	if pc.err != nil {
		return
	}
	pc.clock.Sleep(d)
}
