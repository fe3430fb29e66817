// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package codec

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/creachadair/murmur/packet"
)

// A FieldOf is a named field of a record of type S. Use [Field] or [Maybe] to
// construct fields.
type FieldOf[S any] struct {
	name     string
	desc     string
	optional bool
	enc      func(*packet.Builder, *S) error
	dec      func(*packet.Scanner, *S) error
}

// Name reports the name of the field.
func (f FieldOf[S]) Name() string { return f.name }

func (f FieldOf[S]) String() string { return f.name + ": " + f.desc }

// Field constructs a field of a record S with the given name, whose value has
// type t and is located by ptr.
func Field[S, T any](name string, t Type[T], ptr func(*S) *T) FieldOf[S] {
	return FieldOf[S]{
		name: name,
		desc: t.Description(),
		enc: func(b *packet.Builder, s *S) error {
			if err := t.Encode(b, *ptr(s)); err != nil {
				return fmt.Errorf("field %q: %w", name, err)
			}
			return nil
		},
		dec: func(sc *packet.Scanner, s *S) error {
			v, err := t.Decode(sc)
			if err != nil {
				return fmt.Errorf("field %q: %w", name, err)
			}
			*ptr(s) = v
			return nil
		},
	}
}

// Maybe constructs an optional field of a record S, whose value has type t
// when present. A nil pointer means the field is absent. The field is encoded
// as [Optional] of t.
func Maybe[S, T any](name string, t Type[T], ptr func(*S) **T) FieldOf[S] {
	f := Field(name, Optional(t), ptr)
	f.optional = true
	return f
}

// Object describes a record of type S with the given fields. Fields are
// encoded in the order given, without names or framing; the order is part of
// the wire format. The description lists the fields in order, for example:
//
//	{ name: string, age: u8 }
func Object[S any](fields ...FieldOf[S]) Type[S] {
	fs := slices.Clone(fields)
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = f.String()
	}
	return funcType[S]{
		desc: "{ " + strings.Join(parts, ", ") + " }",
		enc: func(b *packet.Builder, v S) error {
			for _, f := range fs {
				if err := f.enc(b, &v); err != nil {
					return err
				}
			}
			return nil
		},
		dec: func(s *packet.Scanner) (S, error) {
			var v S
			for _, f := range fs {
				if err := f.dec(s, &v); err != nil {
					var zero S
					return zero, err
				}
			}
			return v, nil
		},
	}
}

// Partial describes a record of type S all of whose fields are optional. Each
// field must be constructed with [Maybe], or Partial will panic. The encoding
// and description are the same as an [Object] of those fields:
//
//	{ name: string?, age: u8? }
func Partial[S any](fields ...FieldOf[S]) Type[S] {
	for _, f := range fields {
		if !f.optional {
			panic(fmt.Sprintf("partial: field %q is not optional", f.name))
		}
	}
	return Object(fields...)
}

// Optional describes a value of type t that may be absent. The encoding is a
// Boolean presence flag, followed by the value if present. A nil pointer
// encodes as absent. The description is the description of t followed by "?".
func Optional[T any](t Type[T]) Type[*T] {
	return funcType[*T]{
		desc: t.Description() + "?",
		enc: func(b *packet.Builder, v *T) error {
			b.Bool(v != nil)
			if v != nil {
				return t.Encode(b, *v)
			}
			return nil
		},
		dec: func(s *packet.Scanner) (*T, error) {
			ok, err := s.Bool()
			if err != nil || !ok {
				return nil, err
			}
			v, err := t.Decode(s)
			if err != nil {
				return nil, err
			}
			return &v, nil
		},
	}
}

// Array describes a sequence of values of type t. The encoding is a uint32
// count followed by that many values. The description is the description of t
// followed by "[]".
func Array[T any](t Type[T]) Type[[]T] {
	return funcType[[]T]{
		desc: t.Description() + "[]",
		enc: func(b *packet.Builder, vs []T) error {
			if uint64(len(vs)) > math.MaxUint32 {
				return fmt.Errorf("array too long (%d elements)", len(vs))
			}
			b.Uint32(uint32(len(vs)))
			for i, v := range vs {
				pos := b.Len()
				if err := t.Encode(b, v); err != nil {
					return fmt.Errorf("element %d: %w", i, err)
				}
				if i == 0 && b.Len() == pos && len(vs) > MaxEmptyElements {
					return fmt.Errorf("array of %d elements: %w", len(vs), ErrTooLong)
				}
			}
			return nil
		},
		dec: func(s *packet.Scanner) ([]T, error) {
			n, err := s.Uint32()
			if err != nil {
				return nil, err
			}
			// Elements may be zero-width, so the count cannot be checked against
			// the input, but do not allocate more than the input could fill.
			// Every element of a type has the same width if it has width zero.
			out := make([]T, 0, min(uint64(n), uint64(s.Len())))
			for i := range n {
				pos := s.Offset()
				v, err := t.Decode(s)
				if err != nil {
					return nil, fmt.Errorf("element %d: %w", i, err)
				}
				if i == 0 && s.Offset() == pos && n > MaxEmptyElements {
					return nil, fmt.Errorf("array of %d elements: %w", n, ErrTooLong)
				}
				out = append(out, v)
			}
			return out, nil
		},
	}
}

// Tuple describes a fixed positional sequence of values with the given types.
// The encoding is the concatenation of the elements, without a count. Use
// [Erase] to convert typed descriptors. The description lists the element
// types, for example:
//
//	[ u32, string ]
//
// Encoding a slice whose length differs from the number of types reports an
// error.
func Tuple(types ...Type[any]) Type[[]any] {
	ts := slices.Clone(types)
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.Description()
	}
	return funcType[[]any]{
		desc: "[ " + strings.Join(parts, ", ") + " ]",
		enc: func(b *packet.Builder, vs []any) error {
			if len(vs) != len(ts) {
				return fmt.Errorf("tuple has %d elements, want %d", len(vs), len(ts))
			}
			for i, t := range ts {
				if err := t.Encode(b, vs[i]); err != nil {
					return fmt.Errorf("element %d: %w", i, err)
				}
			}
			return nil
		},
		dec: func(s *packet.Scanner) ([]any, error) {
			out := make([]any, len(ts))
			for i, t := range ts {
				v, err := t.Decode(s)
				if err != nil {
					return nil, fmt.Errorf("element %d: %w", i, err)
				}
				out[i] = v
			}
			return out, nil
		},
	}
}

// enumNotFound is the index written for a value not among the enumerated
// values. It is out of range for any practical enumeration, so it decodes as
// the first value.
const enumNotFound = math.MaxUint16

// Enum describes a choice among a fixed set of string values. The encoding is
// the uint16 index of the value among values. Decoding an index that is out of
// range yields the first value rather than an error. The description lists the
// quoted values, for example:
//
//	"red" | "green" | "blue"
//
// Enum panics if values is empty.
func Enum[T ~string](values ...T) Type[T] {
	if len(values) == 0 {
		panic("enum: no values")
	}
	vs := slices.Clone(values)
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = `"` + string(v) + `"`
	}
	return funcType[T]{
		desc: strings.Join(parts, " | "),
		enc: func(b *packet.Builder, v T) error {
			i := slices.Index(vs, v)
			if i < 0 || i >= enumNotFound {
				i = enumNotFound
			}
			b.Uint16(uint16(i))
			return nil
		},
		dec: func(s *packet.Scanner) (T, error) {
			i, err := s.Uint16()
			if err != nil {
				var zero T
				return zero, err
			}
			if int(i) >= len(vs) {
				return vs[0], nil
			}
			return vs[i], nil
		},
	}
}

// Union describes a value of type T that is encoded by one of several
// alternative types. The pick function reports the index of the alternative
// to use for a given value. The encoding is the uint32 index followed by the
// value encoded by that alternative. Decoding an index that is out of range is
// an error wrapping [ErrBadIndex]. Use [As] to convert typed alternatives.
// The description lists the alternatives, for example:
//
//	u32 | string
//
// Union panics if no alternatives are given.
func Union[T any](pick func(T) int, alts ...Type[T]) Type[T] {
	if len(alts) == 0 {
		panic("union: no alternatives")
	}
	as := slices.Clone(alts)
	parts := make([]string, len(as))
	for i, a := range as {
		parts[i] = a.Description()
	}
	return funcType[T]{
		desc: strings.Join(parts, " | "),
		enc: func(b *packet.Builder, v T) error {
			i := pick(v)
			if i < 0 || i >= len(as) {
				return fmt.Errorf("union: pick reported %d of %d alternatives: %w", i, len(as), ErrBadIndex)
			}
			b.Uint32(uint32(i))
			return as[i].Encode(b, v)
		},
		dec: func(s *packet.Scanner) (T, error) {
			var zero T
			i, err := s.Uint32()
			if err != nil {
				return zero, err
			}
			if uint64(i) >= uint64(len(as)) {
				return zero, fmt.Errorf("union: index %d of %d alternatives: %w", i, len(as), ErrBadIndex)
			}
			return as[i].Decode(s)
		},
	}
}
