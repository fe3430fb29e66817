// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package codec defines composable type descriptors for binary values.
//
// A descriptor, [Type], knows how to encode a Go value into a [packet.Builder],
// how to decode it from a [packet.Scanner], and how to describe its own shape
// as a canonical string. Descriptions are generated structurally from the
// combinators, so two programs that build the same shape with the same field
// names and order derive the same description, and hence the same method
// signatures.
//
// # Primitives
//
//	U8, U16, U32, U64  fixed-width unsigned integers, big-endian
//	F32, F64           IEEE 754 floating point, big-endian
//	Bool               a single byte, 0 or 1
//	Bytes, String      a uint32 length prefix followed by the data
//	Literal            a zero-width constant string
//	Void               a zero-width empty value
//
// # Combinators
//
// [Object] and [Partial] describe records of named fields, [Tuple] a fixed
// positional sequence, [Enum] a choice among literal strings, [Union] a
// discriminated choice among types, [Optional] a value that may be absent, and
// [Array] a counted sequence.
//
// For example, a record with a constant tag and a timestamp:
//
//	type Status struct {
//	   Status    string
//	   Timestamp uint64
//	}
//
//	var statusType = codec.Object(
//	   codec.Field("status", codec.Literal("ok"), func(s *Status) *string { return &s.Status }),
//	   codec.Field("timestamp", codec.U64(), func(s *Status) *uint64 { return &s.Timestamp }),
//	)
//
// has the description
//
//	{ status: "ok", timestamp: u64 }
package codec

import (
	"errors"
	"fmt"

	"github.com/creachadair/murmur/packet"
)

// ErrBadIndex is reported when decoding a union whose encoded alternative
// index is out of range.
var ErrBadIndex = errors.New("alternative index out of range")

// ErrTooLong is reported when encoding or decoding an array of zero-width
// elements whose count exceeds [MaxEmptyElements].
var ErrTooLong = errors.New("too many empty elements")

// MaxEmptyElements is the largest count permitted for an array whose elements
// occupy no space on the wire, such as an array of [Void].
const MaxEmptyElements = 1 << 16

// A Type describes how values of type T are encoded in binary.
type Type[T any] interface {
	// Description returns the canonical description of the type.
	Description() string

	// Encode appends the binary encoding of v to b.
	Encode(b *packet.Builder, v T) error

	// Decode decodes a value from the head of s.
	Decode(s *packet.Scanner) (T, error)
}

// Encode encodes v using t, and returns the resulting bytes.
func Encode[T any](t Type[T], v T) ([]byte, error) {
	var b packet.Builder
	if err := t.Encode(&b, v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Decode decodes a value of t from the front of data. Any data following the
// encoded value is ignored.
func Decode[T any](t Type[T], data []byte) (T, error) {
	return t.Decode(packet.NewScanner(data))
}

// New constructs a Type from the given description and encoding functions.
// It is intended for types that cannot be expressed with the combinators in
// this package; the caller is responsible for choosing a description that
// does not collide with other shapes.
func New[T any](desc string, enc func(*packet.Builder, T) error, dec func(*packet.Scanner) (T, error)) Type[T] {
	return funcType[T]{desc: desc, enc: enc, dec: dec}
}

type funcType[T any] struct {
	desc string
	enc  func(*packet.Builder, T) error
	dec  func(*packet.Scanner) (T, error)
}

func (f funcType[T]) Description() string { return f.desc }
func (f funcType[T]) Encode(b *packet.Builder, v T) error { return f.enc(b, v) }
func (f funcType[T]) Decode(s *packet.Scanner) (T, error) { return f.dec(s) }
func (f funcType[T]) String() string { return f.desc }

// Erase converts a Type[T] into a Type[any]. Encoding a value whose concrete
// type is not T reports an error.
func Erase[T any](t Type[T]) Type[any] { return As[any](t) }

// As converts a Type[U] into a Type[T], where values of type T hold values of
// type U. This is typically used to collect alternatives of a [Union] or
// elements of a [Tuple] under a common interface type. Encoding a value whose
// dynamic type is not U reports an error.
func As[T, U any](t Type[U]) Type[T] {
	return funcType[T]{
		desc: t.Description(),
		enc: func(b *packet.Builder, v T) error {
			u, ok := any(v).(U)
			if !ok {
				var zero U
				return fmt.Errorf("encode %s: got %T, want %T", t.Description(), v, zero)
			}
			return t.Encode(b, u)
		},
		dec: func(s *packet.Scanner) (T, error) {
			u, err := t.Decode(s)
			if err != nil {
				var zero T
				return zero, err
			}
			v, _ := any(u).(T)
			return v, nil
		},
	}
}
