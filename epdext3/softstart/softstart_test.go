// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package softstart

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"pgregory.net/rapid"
)

// event is either a register write or a pause.
type event struct {
	reg   byte
	data  []byte
	sleep time.Duration
}

type recorder []event

func (r *recorder) WriteRegister(reg byte, data ...byte) error {
	*r = append(*r, event{reg: reg, data: append([]byte(nil), data...)})
	return nil
}

func (r *recorder) Sleep(d time.Duration) {
	*r = append(*r, event{sleep: d})
}

type failingWriter struct {
	left int
}

func (f *failingWriter) WriteRegister(reg byte, data ...byte) error {
	if f.left == 0 {
		return errors.New("write failed")
	}
	f.left--
	return nil
}

func (f *failingWriter) Sleep(time.Duration) {}

var eventCmp = []cmp.Option{cmp.AllowUnexported(event{}), cmpopts.EquateEmpty()}

func TestDecodeRamp(t *testing.T) {
	table := make([]byte, 0x30)
	copy(table[0x10:], []byte{0x85, 0x10, 0x20, 0x03, 0x01, 0x8a})

	got, err := Decode(table, 0x10)
	if err != nil {
		t.Fatal(err)
	}
	want := &Ramp{Repeat: 5, PHL: 0x10, PHH: 0x20, DeltaL: 3, DeltaH: 1, Delay: Delay{Value: 10, Millis: true}}
	if diff := cmp.Diff(got, Step(want)); diff != "" {
		t.Errorf("Decode() difference (-got +want):\n%s", diff)
	}

	var rec recorder
	if err := got.replay(&rec, &rec); err != nil {
		t.Fatal(err)
	}
	var wantEvents recorder
	for k := 0; k < 5; k++ {
		wantEvents = append(wantEvents,
			event{reg: 0x51, data: []byte{byte(0x10 + 3*k), byte(0x20 + k)}},
			event{sleep: 10 * time.Millisecond})
	}
	if diff := cmp.Diff(rec, wantEvents, eventCmp...); diff != "" {
		t.Errorf("replay difference (-got +want):\n%s", diff)
	}
}

func TestPropertyRamp(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rec := []byte{
			0x80 | rapid.Byte().Draw(t, "repeat")&0x7f,
			rapid.Byte().Draw(t, "phl"),
			rapid.Byte().Draw(t, "phh"),
			rapid.Byte().Draw(t, "dl"),
			rapid.Byte().Draw(t, "dh"),
			rapid.Byte().Draw(t, "delay"),
		}
		st, err := Decode(rec, 0)
		if err != nil {
			t.Fatal(err)
		}
		var got recorder
		if err := st.replay(&got, &got); err != nil {
			t.Fatal(err)
		}

		n := int(rec[0] & 0x7f)
		if len(got) != 2*n {
			t.Fatalf("%d events, want %d", len(got), 2*n)
		}
		unit := 10 * time.Microsecond
		if rec[5]&0x80 != 0 {
			unit = time.Millisecond
		}
		pause := time.Duration(rec[5]&0x7f) * unit
		for k := 0; k < n; k++ {
			w := got[2*k]
			if w.reg != RegPhase || len(w.data) != 2 ||
				w.data[0] != rec[1]+byte(k)*rec[3] || w.data[1] != rec[2]+byte(k)*rec[4] {
				t.Fatalf("iteration %d wrote %#02x %#v", k, w.reg, w.data)
			}
			if got[2*k+1].sleep != pause {
				t.Fatalf("iteration %d slept %s, want %s", k, got[2*k+1].sleep, pause)
			}
		}
	})
}

func TestDecodeToggle(t *testing.T) {
	got, err := Decode([]byte{0x02, 0xe0, 0x05, 0x20, 0x81}, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := &Toggle{Repeat: 2, On: 0xe0, Delay1: Delay{Value: 5}, Off: 0x20, Delay2: Delay{Value: 1, Millis: true}}
	if diff := cmp.Diff(got, Step(want)); diff != "" {
		t.Errorf("Decode() difference (-got +want):\n%s", diff)
	}

	var rec recorder
	if err := got.replay(&rec, &rec); err != nil {
		t.Fatal(err)
	}
	once := recorder{
		{reg: 0x09, data: []byte{0xe0}},
		{sleep: 50 * time.Microsecond},
		{reg: 0x09, data: []byte{0x20}},
		{sleep: time.Millisecond},
	}
	if diff := cmp.Diff(rec, append(once, once...), eventCmp...); diff != "" {
		t.Errorf("replay difference (-got +want):\n%s", diff)
	}
}

func TestDecodeTruncated(t *testing.T) {
	for _, tc := range []struct {
		name   string
		table  []byte
		offset int
	}{
		{"empty", nil, 0},
		{"negative", []byte{0x01}, -1},
		{"ramp", []byte{0x81, 0, 0, 0, 0}, 0},
		{"toggle", []byte{0x01, 0, 0, 0}, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.table, tc.offset); !errors.Is(err, ErrTruncated) {
				t.Errorf("Decode() = %v, want %v", err, ErrTruncated)
			}
		})
	}
}

func testTable() []byte {
	table := make([]byte, 0x30)
	table[0], table[1] = 0xcf, 0x8d
	copy(table[0x10:], []byte{0x81, 0x01, 0x02, 0, 0, 0x81})
	copy(table[0x18:], []byte{0x01, 0xe0, 0x01, 0x20, 0x02})
	copy(table[0x20:], []byte{0x00})
	copy(table[0x28:], []byte{0x81, 0x03, 0x04, 0, 0, 0x00})
	return table
}

func TestReplay(t *testing.T) {
	var got recorder
	if err := Replay(&got, &got, testTable()); err != nil {
		t.Fatal(err)
	}
	want := recorder{
		{reg: 0x51, data: []byte{0x01, 0x02}},
		{sleep: time.Millisecond},
		{reg: 0x09, data: []byte{0xe0}},
		{sleep: 10 * time.Microsecond},
		{reg: 0x09, data: []byte{0x20}},
		{sleep: 20 * time.Microsecond},
		{reg: 0x51, data: []byte{0x03, 0x04}},
		{sleep: 0},
	}
	if diff := cmp.Diff(got, want, eventCmp...); diff != "" {
		t.Errorf("Replay() difference (-got +want):\n%s", diff)
	}
}

func TestReplayShortTable(t *testing.T) {
	var got recorder
	err := Replay(&got, &got, testTable()[:0x2a])
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("Replay() = %v, want %v", err, ErrTruncated)
	}
	if len(got) != 0 {
		t.Errorf("Replay() wrote %d events before failing", len(got))
	}
}

func TestReplayWriteError(t *testing.T) {
	if err := Replay(&failingWriter{left: 2}, &failingWriter{}, testTable()); err == nil {
		t.Error("Replay() succeeded")
	}
}

func TestDelay(t *testing.T) {
	for _, tc := range []struct {
		in   byte
		want time.Duration
	}{
		{0x00, 0},
		{0x7f, 1270 * time.Microsecond},
		{0x80, 0},
		{0x85, 5 * time.Millisecond},
		{0xff, 127 * time.Millisecond},
	} {
		if got := parseDelay(tc.in).Duration(); got != tc.want {
			t.Errorf("parseDelay(%#02x).Duration() = %s, want %s", tc.in, got, tc.want)
		}
	}
}
