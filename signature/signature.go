// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package signature computes the 64-bit method signatures used to identify
// methods on the wire.
//
// A signature is the CRC-64 of a method description string, using the
// non-reflected polynomial 0x42F0E1EBA9EA3693 with an initial register of all
// ones and a final complement (the CRC-64/WE parameters). Peers that agree on
// a method's name and shape compute the same signature without negotiation.
package signature

import (
	"encoding/binary"
	"hash"

	"github.com/snksoft/crc"
)

// Poly is the CRC-64 generator polynomial, in MSB-first form.
const Poly = 0x42F0E1EBA9EA3693

// Size is the size of a signature in bytes.
const Size = 8

// Params are the CRC parameters of a signature.
var Params = &crc.Parameters{
	Width:      64,
	Polynomial: Poly,
	Init:       0xFFFFFFFFFFFFFFFF,
	ReflectIn:  false,
	ReflectOut: false,
	FinalXor:   0xFFFFFFFFFFFFFFFF,
}

var table = crc.NewTable(Params)

// Checksum returns the signature of data.
func Checksum(data []byte) uint64 { return table.CalculateCRC(data) }

// String returns the signature of s.
func String(s string) uint64 { return Checksum([]byte(s)) }

// Method returns the canonical description of a method with the given name
// and request and response type descriptions:
//
//	name: request => response
func Method(name, request, response string) string {
	return name + ": " + request + " => " + response
}

// ForMethod returns the signature of the method description constructed by
// [Method] from its arguments.
func ForMethod(name, request, response string) uint64 {
	return String(Method(name, request, response))
}

// New returns a new streaming [hash.Hash64] that computes signatures. Its Sum
// method appends the signature in big-endian order.
func New() hash.Hash64 { return &digest{h: crc.NewHashWithTable(table)} }

type digest struct{ h *crc.Hash }

func (d *digest) Write(p []byte) (int, error) { d.h.Update(p); return len(p), nil }
func (d *digest) Sum64() uint64 { return d.h.CRC() }
func (d *digest) Reset() { d.h.Reset() }
func (*digest) Size() int { return Size }
func (*digest) BlockSize() int { return 1 }

func (d *digest) Sum(in []byte) []byte { return binary.BigEndian.AppendUint64(in, d.Sum64()) }
