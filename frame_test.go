// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package murmur_test

import (
	"errors"
	"testing"

	"github.com/creachadair/murmur"
	"github.com/creachadair/murmur/packet"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestFrameEncoding(t *testing.T) {
	f := &murmur.Frame{
		Reserved:    murmur.Marker,
		Request:     true,
		Sequence:    0x1234,
		Signature:   0x0102030405060708,
		Source:      0xaabbccdd,
		Destination: 0,
		Payload:     []byte("hi"),
	}
	const want = "\xc7\x01\x12\x34\x01\x02\x03\x04\x05\x06\x07\x08\xaa\xbb\xcc\xdd\x00\x00\x00\x00\x00\x00\x00\x02hi"
	// marker, request, sequence, signature, source, destination, length, payload

	enc := murmur.EncodeFrame(f)
	if got := string(enc); got != want {
		t.Errorf("EncodeFrame:\ngot  %q\nwant %q", got, want)
	}

	dec, err := murmur.DecodeFrame(enc)
	if err != nil {
		t.Fatalf("DecodeFrame: unexpected error: %v", err)
	}
	if diff := cmp.Diff(dec, f); diff != "" {
		t.Errorf("DecodeFrame (-got, +want):\n%s", diff)
	}
}

func TestFrameEmptyPayload(t *testing.T) {
	f := &murmur.Frame{Reserved: murmur.Marker, Sequence: 9, Signature: 1, Source: 2, Destination: 3}
	enc := murmur.EncodeFrame(f)
	if len(enc) != 24 {
		t.Errorf("Encoded length = %d, want 24", len(enc))
	}
	dec, err := murmur.DecodeFrame(enc)
	if err != nil {
		t.Fatalf("DecodeFrame: unexpected error: %v", err)
	}
	if diff := cmp.Diff(dec, f, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("DecodeFrame (-got, +want):\n%s", diff)
	}
}

func TestFrameDecodeErrors(t *testing.T) {
	valid := murmur.EncodeFrame(&murmur.Frame{Reserved: murmur.Marker, Payload: []byte("abc")})

	tests := []struct {
		name  string
		input []byte
		want  error
	}{
		{"Empty", nil, packet.ErrOutOfRange},
		{"ShortHeader", valid[:10], packet.ErrOutOfRange},
		{"ShortPayload", valid[:len(valid)-1], packet.ErrOutOfRange},
		{"HugeLength", append(append([]byte(nil), valid[:20]...), "\xff\xff\xff\xffabc"...), packet.ErrOutOfRange},
		{"Trailing", append(append([]byte(nil), valid...), 'x'), murmur.ErrTrailingData},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, err := murmur.DecodeFrame(tc.input)
			if !errors.Is(err, tc.want) {
				t.Errorf("DecodeFrame: got (%v, %v), want %v", f, err, tc.want)
			}
		})
	}
}

func TestFrameMarkerNotChecked(t *testing.T) {
	enc := murmur.EncodeFrame(&murmur.Frame{Reserved: 0x01})
	f, err := murmur.DecodeFrame(enc)
	if err != nil {
		t.Fatalf("DecodeFrame: unexpected error: %v", err)
	}
	if f.Reserved != 0x01 {
		t.Errorf("Reserved = %#x, want 0x01", f.Reserved)
	}
}

func TestFrameString(t *testing.T) {
	tests := []struct {
		frame *murmur.Frame
		want  string
	}{
		{&murmur.Frame{Request: true, Sequence: 5, Signature: 0xabc, Source: 0x10, Payload: []byte("xyz")},
			"Frame(REQUEST, seq=5, sig=0000000000000abc, 00000010→*, 3 bytes)"},
		{&murmur.Frame{Sequence: 5, Signature: 0xabc, Source: 0x20, Destination: 0x10},
			"Frame(REPLY, seq=5, sig=0000000000000abc, 00000020→00000010, 0 bytes)"},
	}
	for _, tc := range tests {
		if got := tc.frame.String(); got != tc.want {
			t.Errorf("String:\ngot  %q\nwant %q", got, tc.want)
		}
	}
}

func TestIsReply(t *testing.T) {
	req := &murmur.Frame{Request: true, Sequence: 7, Signature: 99, Source: 1, Destination: 2}
	tests := []struct {
		name string
		rsp  murmur.Frame
		want bool
	}{
		{"OK", murmur.Frame{Sequence: 7, Signature: 99, Source: 2, Destination: 1}, true},
		{"Request", murmur.Frame{Request: true, Sequence: 7, Signature: 99, Destination: 1}, false},
		{"Sequence", murmur.Frame{Sequence: 8, Signature: 99, Destination: 1}, false},
		{"Signature", murmur.Frame{Sequence: 7, Signature: 98, Destination: 1}, false},
		{"Destination", murmur.Frame{Sequence: 7, Signature: 99, Destination: 3}, false},
	}
	for _, tc := range tests {
		if got := tc.rsp.IsReply(req); got != tc.want {
			t.Errorf("%s: IsReply = %v, want %v", tc.name, got, tc.want)
		}
	}
}
