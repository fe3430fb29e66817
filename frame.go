// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package murmur

import (
	"errors"
	"fmt"

	"github.com/creachadair/murmur/codec"
	"github.com/creachadair/murmur/packet"
)

// Marker is the value of the reserved header byte of every frame written by a
// [Node]. Frames with any other marker are ignored by nodes.
const Marker = 0xC7

// headerSize is the encoded size of a frame without its payload.
const headerSize = 1 + 1 + 2 + 8 + 4 + 4 + 4

// ErrTrailingData is reported by [DecodeFrame] for input that has extra bytes
// after the payload.
var ErrTrailingData = errors.New("trailing data after frame")

// A Frame is the unit of exchange between nodes. The binary encoding of a
// frame is, in order and big-endian:
//
//	reserved:u8 | request:u8 | sequence:u16 | signature:u64 |
//	source:u32 | destination:u32 | payload_len:u32 | payload
//
// A destination of 0 is a broadcast to all nodes sharing the channel.
type Frame struct {
	Reserved    byte   // marker; set to Marker by Node.Write
	Request     bool   // true for a request, false for a reply
	Sequence    uint16 // correlates a reply with its request
	Signature   uint64 // method signature
	Source      uint32 // id of the sending node
	Destination uint32 // id of the target node, or 0 for broadcast
	Payload     []byte // encoded request or response value
}

var frameType = codec.Object(
	codec.Field("reserved", codec.U8(), func(f *Frame) *byte { return &f.Reserved }),
	codec.Field("request", codec.Bool(), func(f *Frame) *bool { return &f.Request }),
	codec.Field("sequence", codec.U16(), func(f *Frame) *uint16 { return &f.Sequence }),
	codec.Field("signature", codec.U64(), func(f *Frame) *uint64 { return &f.Signature }),
	codec.Field("source", codec.U32(), func(f *Frame) *uint32 { return &f.Source }),
	codec.Field("destination", codec.U32(), func(f *Frame) *uint32 { return &f.Destination }),
	codec.Field("payload", codec.Bytes(), func(f *Frame) *[]byte { return &f.Payload }),
)

// EncodeFrame encodes f in binary format.
func EncodeFrame(f *Frame) []byte {
	b := packet.NewBuilder(headerSize + len(f.Payload))
	if err := frameType.Encode(b, *f); err != nil {
		panic(fmt.Errorf("encoding frame: %w", err))
	}
	return b.Bytes()
}

// DecodeFrame decodes a frame from data. The frame must occupy all of data.
// DecodeFrame does not check the marker.
func DecodeFrame(data []byte) (*Frame, error) {
	s := packet.NewScanner(data)
	f, err := frameType.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}
	if s.Len() != 0 {
		return nil, fmt.Errorf("invalid frame: %w (%d bytes)", ErrTrailingData, s.Len())
	}
	return &f, nil
}

// IsReply reports whether f is a reply to the request r: a non-request frame
// with the same signature and sequence, addressed to the source of r.
func (f *Frame) IsReply(r *Frame) bool {
	return !f.Request && f.Signature == r.Signature && f.Sequence == r.Sequence &&
		f.Destination == r.Source
}

// String returns a human-friendly rendering of the frame.
func (f *Frame) String() string {
	kind := "REPLY"
	if f.Request {
		kind = "REQUEST"
	}
	dst := fmt.Sprintf("%08x", f.Destination)
	if f.Destination == 0 {
		dst = "*"
	}
	return fmt.Sprintf("Frame(%s, seq=%d, sig=%016x, %08x→%s, %d bytes)",
		kind, f.Sequence, f.Signature, f.Source, dst, len(f.Payload))
}
