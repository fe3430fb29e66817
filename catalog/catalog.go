// Copyright (C) 2023 Michael J. Fromberger. All Rights Reserved.

// Package catalog defines a self-description method that lists the methods
// served by a node.
//
// Method names are not needed on the wire, since methods are identified by
// their signatures. A catalog lets one node discover what another serves:
//
//	// On the serving node, list its services (optionally including the
//	// catalog itself).
//	srv, err := catalog.Serve(node, catalog.Service, mySvc)
//
//	// On a calling node.
//	entries, err := catalog.Method.Call(ctx, other.Client(catalog.Service, id), struct{}{})
//
// The catalog method is described as:
//
//	catalog: void => { name: string, description: string, signature: u64 }[]
package catalog

import (
	"context"
	"fmt"
	"slices"

	"github.com/creachadair/murmur"
	"github.com/creachadair/murmur/codec"
)

// An Entry describes one method in a catalog.
type Entry struct {
	Name        string
	Description string
	Signature   uint64
}

func (e Entry) String() string { return fmt.Sprintf("%016x %s", e.Signature, e.Description) }

var entryType = codec.Object(
	codec.Field("name", codec.String(), func(e *Entry) *string { return &e.Name }),
	codec.Field("description", codec.String(), func(e *Entry) *string { return &e.Description }),
	codec.Field("signature", codec.U64(), func(e *Entry) *uint64 { return &e.Signature }),
)

// Method is the catalog method.
var Method = murmur.NewMethod("catalog", codec.Void(), codec.Array(entryType))

// Service is a service containing only [Method].
var Service = murmur.NewService(Method)

// Entries returns the catalog entries for the methods of the given services,
// in order. A method that occurs in more than one service is listed once.
func Entries(svcs ...*murmur.Service) []Entry {
	var out []Entry
	seen := make(map[uint64]bool)
	for _, svc := range svcs {
		for _, d := range svc.Methods() {
			if seen[d.Signature()] {
				continue
			}
			seen[d.Signature()] = true
			out = append(out, Entry{
				Name:        d.Name(),
				Description: d.Description(),
				Signature:   d.Signature(),
			})
		}
	}
	return out
}

// Implement returns an implementation of [Method] that reports the entries
// for the methods of the given services.
func Implement(svcs ...*murmur.Service) murmur.Implementation {
	entries := Entries(svcs...)
	return Method.Implement(func(context.Context, struct{}) ([]Entry, error) {
		return slices.Clone(entries), nil
	})
}

// Serve starts a server on n for [Service] that lists the methods of the
// given services.
func Serve(n *murmur.Node, svcs ...*murmur.Service) (*murmur.Server, error) {
	return n.Serve(Service, Implement(svcs...))
}

// Missing reports the methods of svc whose signatures are not among entries,
// in order. This is useful to check whether a remote node serves a service.
func Missing(entries []Entry, svc *murmur.Service) []murmur.Definition {
	have := make(map[uint64]bool, len(entries))
	for _, e := range entries {
		have[e.Signature] = true
	}
	var out []murmur.Definition
	for _, d := range svc.Methods() {
		if !have[d.Signature()] {
			out = append(out, d)
		}
	}
	return out
}
