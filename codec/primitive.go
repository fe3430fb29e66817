// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package codec

import "github.com/creachadair/murmur/packet"

// U8 describes a single unsigned byte.
func U8() Type[uint8] {
	return funcType[uint8]{
		desc: "u8",
		enc:  func(b *packet.Builder, v uint8) error { b.Uint8(v); return nil },
		dec:  (*packet.Scanner).Uint8,
	}
}

// U16 describes a big-endian unsigned 16-bit integer.
func U16() Type[uint16] {
	return funcType[uint16]{
		desc: "u16",
		enc:  func(b *packet.Builder, v uint16) error { b.Uint16(v); return nil },
		dec:  (*packet.Scanner).Uint16,
	}
}

// U32 describes a big-endian unsigned 32-bit integer.
func U32() Type[uint32] {
	return funcType[uint32]{
		desc: "u32",
		enc:  func(b *packet.Builder, v uint32) error { b.Uint32(v); return nil },
		dec:  (*packet.Scanner).Uint32,
	}
}

// U64 describes a big-endian unsigned 64-bit integer.
func U64() Type[uint64] {
	return funcType[uint64]{
		desc: "u64",
		enc:  func(b *packet.Builder, v uint64) error { b.Uint64(v); return nil },
		dec:  (*packet.Scanner).Uint64,
	}
}

// F32 describes a big-endian IEEE 754 single-precision value.
func F32() Type[float32] {
	return funcType[float32]{
		desc: "f32",
		enc:  func(b *packet.Builder, v float32) error { b.Float32(v); return nil },
		dec:  (*packet.Scanner).Float32,
	}
}

// F64 describes a big-endian IEEE 754 double-precision value.
func F64() Type[float64] {
	return funcType[float64]{
		desc: "f64",
		enc:  func(b *packet.Builder, v float64) error { b.Float64(v); return nil },
		dec:  (*packet.Scanner).Float64,
	}
}

// Bool describes a Boolean encoded as one byte. Any non-zero byte decodes as
// true.
func Bool() Type[bool] {
	return funcType[bool]{
		desc: "boolean",
		enc:  func(b *packet.Builder, v bool) error { b.Bool(v); return nil },
		dec:  (*packet.Scanner).Bool,
	}
}

// Bytes describes a byte string with a uint32 length prefix.
func Bytes() Type[[]byte] {
	return funcType[[]byte]{
		desc: "bytes",
		enc:  func(b *packet.Builder, v []byte) error { b.VPut(v); return nil },
		dec:  packet.VGet[[]byte],
	}
}

// String describes a UTF-8 string, encoded as [Bytes].
func String() Type[string] {
	return funcType[string]{
		desc: "string",
		enc:  func(b *packet.Builder, v string) error { b.VPutString(v); return nil },
		dec:  packet.VGet[string],
	}
}

// Literal describes a constant string. It occupies no space on the wire, and
// always decodes as value. Encoding ignores its argument; the constraint is
// carried only by the description, e.g., "ok".
func Literal[T ~string](value T) Type[T] {
	return funcType[T]{
		desc: `"` + string(value) + `"`,
		enc:  func(*packet.Builder, T) error { return nil },
		dec:  func(*packet.Scanner) (T, error) { return value, nil },
	}
}

// Void describes the empty value. It occupies no space on the wire.
func Void() Type[struct{}] {
	return funcType[struct{}]{
		desc: "void",
		enc:  func(*packet.Builder, struct{}) error { return nil },
		dec:  func(*packet.Scanner) (struct{}, error) { return struct{}{}, nil },
	}
}
