// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

package packet_test

import (
	"errors"
	"math"
	"testing"

	"github.com/creachadair/murmur/packet"
	"github.com/google/go-cmp/cmp"
)

func TestBuilder(t *testing.T) {
	var b packet.Builder
	b.Bool(true)
	b.Put(5, 9, 100)
	b.Uint16(5000)
	b.Uint32(0xfc009a01)
	b.Uint64(0x0102030405060708)
	b.VPutString("apple")
	b.VPut([]byte("pear"))
	b.Float32(1.5)

	const want = "\x01\x05\x09\x64\x13\x88\xfc\x00\x9a\x01\x01\x02\x03\x04\x05\x06\x07\x08" +
		"\x00\x00\x00\x05apple\x00\x00\x00\x04pear\x3f\xc0\x00\x00"
	//   ^   ^---^---^-- ^-----  ^-------------- ^-------------------------------
	// bool  byte*3        uint16  uint32          uint64
	//   ^-------------------  ^------------------  ^---------------
	//   string                bytes                float32

	if n := b.Len(); n != len(want) {
		t.Errorf("Len = %d, want %d", n, len(want))
	}
	if string(b.Bytes()) != want {
		t.Errorf("Bytes = %q, want %q", b.Bytes(), want)
	}

	s := packet.NewScanner(b.Bytes())
	check(t, "Bool", s.Bool, true)
	check(t, "Byte 1", s.Uint8, 5)
	check(t, "Byte 2", s.Uint8, 9)
	check(t, "Byte 3", s.Uint8, 100)
	check(t, "Uint16", s.Uint16, 5000)
	check(t, "Uint32", s.Uint32, 0xfc009a01)
	check(t, "Uint64", s.Uint64, 0x0102030405060708)
	check(t, "VString", func() (string, error) { return packet.VGet[string](s) }, "apple")
	check(t, "VBytes", func() ([]byte, error) { return packet.VGet[[]byte](s) }, []byte("pear"))
	check(t, "Float32", s.Float32, 1.5)

	if s.Len() != 0 {
		t.Errorf("Extra data at EOF (%d bytes): %q", s.Len(), s.Rest())
	}
}

func TestBuilderGrowth(t *testing.T) {
	var b packet.Builder
	b.Uint8(1)
	last := b.Cap()
	for i := range 100 {
		b.Uint32(uint32(i))
		if c := b.Cap(); c != last {
			if c < 2*last {
				t.Errorf("Grow from %d to %d: want at least double", last, c)
			}
			last = c
		}
	}
	if got, want := b.Len(), 1+4*100; got != want {
		t.Errorf("Len = %d, want %d", got, want)
	}

	b.Reset()
	if b.Len() != 0 {
		t.Errorf("Len after reset = %d, want 0", b.Len())
	}
}

func TestFloats(t *testing.T) {
	for _, v := range []float64{0, -0.5, math.Pi, math.Inf(1), math.MaxFloat64} {
		var b packet.Builder
		b.Float64(v)
		got, err := packet.NewScanner(b.Bytes()).Float64()
		if err != nil {
			t.Errorf("Float64 %v: unexpected error: %v", v, err)
		} else if got != v {
			t.Errorf("Float64: got %v, want %v", got, v)
		}
	}
}

func TestScannerOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		input string
		scan  func(*packet.Scanner) error
	}{
		{"Uint8", "", func(s *packet.Scanner) error { _, err := s.Uint8(); return err }},
		{"Uint16", "\x01", func(s *packet.Scanner) error { _, err := s.Uint16(); return err }},
		{"Uint32", "\x01\x02\x03", func(s *packet.Scanner) error { _, err := s.Uint32(); return err }},
		{"Uint64", "\x01\x02\x03\x04\x05\x06\x07", func(s *packet.Scanner) error { _, err := s.Uint64(); return err }},
		{"Prefix", "\x00\x00", func(s *packet.Scanner) error { _, err := packet.VGet[string](s); return err }},
		{"Body", "\x00\x00\x00\x05abc", func(s *packet.Scanner) error { _, err := packet.VGet[[]byte](s); return err }},
		{"Huge", "\xff\xff\xff\xffabc", func(s *packet.Scanner) error { _, err := packet.VGet[[]byte](s); return err }},
		{"Get", "ab", func(s *packet.Scanner) error { _, err := packet.Get[string](s, 3); return err }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := packet.NewScanner(tc.input)
			err := tc.scan(s)
			if !errors.Is(err, packet.ErrOutOfRange) {
				t.Errorf("Scan: got %v, want %v", err, packet.ErrOutOfRange)
			}
			// A failed read must not consume input.
			if s.Offset() != 0 || s.Len() != len(tc.input) {
				t.Errorf("After error: offset %d, len %d; want 0, %d", s.Offset(), s.Len(), len(tc.input))
			}
		})
	}
}

func TestVGetCopies(t *testing.T) {
	input := []byte("\x00\x00\x00\x03abc")
	got, err := packet.VGet[[]byte](packet.NewScanner(input))
	if err != nil {
		t.Fatalf("VGet: unexpected error: %v", err)
	}
	input[4] = 'X'
	if string(got) != "abc" {
		t.Errorf("VGet result aliases input: got %q", got)
	}
}

func check[T any](t *testing.T, label string, f func() (T, error), want T) {
	t.Helper()

	got, err := f()
	if err != nil {
		t.Errorf("%s: unexpected error: %v", label, err)
	} else if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("%s result (-got, +want):\n%s", label, diff)
	}
}
