// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

// Package packet provides support for encoding and decoding binary packet data.
//
// All multi-byte values are encoded in big-endian order. Variable-length
// values (byte strings) carry a uint32 length prefix.
package packet

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/creachadair/mds/value"
)

// ErrOutOfRange is reported by the methods of a [Scanner] when a read would
// extend past the end of the input.
var ErrOutOfRange = errors.New("read out of range")

// A Builder is a buffer that accumulates data into a packet. The zero value is
// ready for use as an empty builder.
type Builder struct {
	buf []byte
}

// NewBuilder constructs a builder with capacity for at least n bytes.
func NewBuilder(n int) *Builder { return &Builder{buf: make([]byte, 0, n)} }

// Bool appends a Boolean to b. The encoding is a single byte with value 0 or 1.
func (b *Builder) Bool(ok bool) { b.Uint8(value.Cond[byte](ok, 1, 0)) }

// Put appends the specified bytes to b in order, without framing.
func (b *Builder) Put(vs ...byte) {
	b.Grow(len(vs))
	b.buf = append(b.buf, vs...)
}

// Uint8 appends a single byte to b.
func (b *Builder) Uint8(v byte) {
	b.Grow(1)
	b.buf = append(b.buf, v)
}

// Uint16 appends v to b in big-endian order.
func (b *Builder) Uint16(v uint16) {
	b.Grow(2)
	b.buf = binary.BigEndian.AppendUint16(b.buf, v)
}

// Uint32 appends v to b in big-endian order.
func (b *Builder) Uint32(v uint32) {
	b.Grow(4)
	b.buf = binary.BigEndian.AppendUint32(b.buf, v)
}

// Uint64 appends v to b in big-endian order.
func (b *Builder) Uint64(v uint64) {
	b.Grow(8)
	b.buf = binary.BigEndian.AppendUint64(b.buf, v)
}

// Float32 appends the IEEE 754 bits of v to b in big-endian order.
func (b *Builder) Float32(v float32) { b.Uint32(math.Float32bits(v)) }

// Float64 appends the IEEE 754 bits of v to b in big-endian order.
func (b *Builder) Float64(v float64) { b.Uint64(math.Float64bits(v)) }

// VPut appends a length-prefixed byte string to b. The length is encoded as a
// big-endian uint32. It panics if len(vs) does not fit in a uint32.
func (b *Builder) VPut(vs []byte) {
	if uint64(len(vs)) > math.MaxUint32 {
		panic(fmt.Sprintf("value too long (%d bytes)", len(vs)))
	}
	b.Grow(4 + len(vs))
	b.buf = binary.BigEndian.AppendUint32(b.buf, uint32(len(vs)))
	b.buf = append(b.buf, vs...)
}

// VPutString appends a length-prefixed string to b, as [Builder.VPut].
func (b *Builder) VPutString(s string) {
	if uint64(len(s)) > math.MaxUint32 {
		panic(fmt.Sprintf("value too long (%d bytes)", len(s)))
	}
	b.Grow(4 + len(s))
	b.buf = binary.BigEndian.AppendUint32(b.buf, uint32(len(s)))
	b.buf = append(b.buf, s...)
}

// Len reports the number of bytes currently in the buffer.
func (b *Builder) Len() int { return len(b.buf) }

// Cap reports the current capacity of the buffer.
func (b *Builder) Cap() int { return cap(b.buf) }

// Bytes reports the current contents of the buffer. The builder retains
// ownership of the reported slice, and the caller must not retain or modify
// its contents unless b will no longer be accessed.
func (b *Builder) Bytes() []byte { return b.buf }

// Reset discards the contents of b and leaves it empty.
func (b *Builder) Reset() { b.buf = b.buf[:0] }

// Grow resizes the internal buffer of b if necessary to ensure that at least n
// more bytes can be added without triggering another allocation. When the
// buffer must grow, its capacity at least doubles.
func (b *Builder) Grow(n int) {
	want := len(b.buf) + n
	if cap(b.buf) < want {
		r := make([]byte, len(b.buf), max(want, 2*cap(b.buf)))
		copy(r, b.buf)
		b.buf = r
	}
}

// A Scanner reads encoded values from the contents of a packet.
// A read that would extend past the end of the input reports an error
// wrapping [ErrOutOfRange], and does not consume any input.
type Scanner struct {
	input  []byte
	rest   []byte
	offset int // of rest from input
}

// NewScanner constructs a [Scanner] that consumes data from input.
// The scanner does not modify the contents of input, but retain slices
// into it, so the caller should ensure it is not modified while the scanner
// is in use.
func NewScanner[Str ~string | ~[]byte](input Str) *Scanner {
	data := []byte(input)
	return &Scanner{input: data, rest: data}
}

func (s *Scanner) need(n int) error {
	if n < 0 || len(s.rest) < n {
		return fmt.Errorf("offset %d: need %d bytes, have %d: %w", s.offset, n, len(s.rest), ErrOutOfRange)
	}
	return nil
}

// take consumes and returns the next n bytes of input.
func (s *Scanner) take(n int) []byte {
	out := s.rest[:n:n]
	s.rest = s.rest[n:]
	s.offset += n
	return out
}

// Bool scans a single byte from the head of the input and converts it into a
// Boolean value (0 means false, non-zero means true).
func (s *Scanner) Bool() (bool, error) {
	b, err := s.Uint8()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// Uint8 scans a single byte from the head of the input.
func (s *Scanner) Uint8() (byte, error) {
	if err := s.need(1); err != nil {
		return 0, err
	}
	return s.take(1)[0], nil
}

// Uint16 parses a big-endian uint16 value from the head of the input.
func (s *Scanner) Uint16() (uint16, error) {
	if err := s.need(2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(s.take(2)), nil
}

// Uint32 parses a big-endian uint32 value from the head of the input.
func (s *Scanner) Uint32() (uint32, error) {
	if err := s.need(4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(s.take(4)), nil
}

// Uint64 parses a big-endian uint64 value from the head of the input.
func (s *Scanner) Uint64() (uint64, error) {
	if err := s.need(8); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(s.take(8)), nil
}

// Float32 parses a big-endian IEEE 754 single-precision value.
func (s *Scanner) Float32() (float32, error) {
	v, err := s.Uint32()
	return math.Float32frombits(v), err
}

// Float64 parses a big-endian IEEE 754 double-precision value.
func (s *Scanner) Float64() (float64, error) {
	v, err := s.Uint64()
	return math.Float64frombits(v), err
}

// Len reports the number of remaining unconsumed input bytes in s.
func (s *Scanner) Len() int { return len(s.rest) }

// Offset reports the offset (0-based) of the next unconsumed input byte in s.
func (s *Scanner) Offset() int { return s.offset }

// Rest returns a slice of the remaining unconsumed input of s.
// The reported slice is only valid until the next call to a method of s,
// and the caller must not modify its contents.
func (s *Scanner) Rest() []byte { return s.rest }

// VGet parses a single length-prefixed string from the head of s. The length
// must be encoded as a big-endian uint32. If the full string is not
// available, VGet consumes nothing and reports an error.
//
// When the result is a slice it is a copy, and the caller may retain it.
func VGet[Str ~string | ~[]byte](s *Scanner) (out Str, err error) {
	if err := s.need(4); err != nil {
		return out, err
	}
	n := binary.BigEndian.Uint32(s.rest)
	if uint64(len(s.rest)-4) < uint64(n) {
		return out, fmt.Errorf("offset %d: value truncated (%d < %d bytes): %w",
			s.offset, len(s.rest)-4, n, ErrOutOfRange)
	}
	s.take(4)
	return Str(bytes.Clone(s.take(int(n)))), nil
}

// Get returns a string of exactly n bytes from the head of the input.
// If the full requested amount is not available, Get consumes nothing and
// reports an error. When the result is a slice, the value aliases the input,
// and the caller must not modify its contents.
func Get[Str ~string | ~[]byte](s *Scanner, n int) (Str, error) {
	var zero Str
	if err := s.need(n); err != nil {
		return zero, err
	}
	return Str(s.take(n)), nil
}
