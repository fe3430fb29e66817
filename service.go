// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package murmur

import (
	"context"
	"fmt"

	"github.com/creachadair/murmur/codec"
	"github.com/creachadair/murmur/signature"
)

// A Definition is the type-erased view of a [Method]. Definitions are
// assembled into a [Service].
type Definition interface {
	// Name returns the name of the method.
	Name() string

	// Description returns the canonical description of the method,
	//
	//	name: request => response
	Description() string

	// Signature returns the signature of the method description.
	Signature() uint64

	erased() *erasedMethod
}

type erasedMethod struct {
	name string
	desc string
	sig  uint64
	req  codec.Type[any]
	rsp  codec.Type[any]
}

// A Method defines a callable method with requests of type Req and responses
// of type Rsp. Its signature is derived from its name and the descriptions of
// its request and response types, so that any two nodes defining the same
// method agree on its signature.
type Method[Req, Rsp any] struct {
	em  *erasedMethod
	req codec.Type[Req]
	rsp codec.Type[Rsp]
}

// NewMethod constructs a method with the given name and request and response
// types.
func NewMethod[Req, Rsp any](name string, req codec.Type[Req], rsp codec.Type[Rsp]) Method[Req, Rsp] {
	desc := signature.Method(name, req.Description(), rsp.Description())
	return Method[Req, Rsp]{
		em: &erasedMethod{
			name: name,
			desc: desc,
			sig:  signature.String(desc),
			req:  codec.Erase(req),
			rsp:  codec.Erase(rsp),
		},
		req: req,
		rsp: rsp,
	}
}

// Name implements part of the [Definition] interface.
func (m Method[Req, Rsp]) Name() string { return m.em.name }

// Description implements part of the [Definition] interface.
func (m Method[Req, Rsp]) Description() string { return m.em.desc }

// Signature implements part of the [Definition] interface.
func (m Method[Req, Rsp]) Signature() uint64 { return m.em.sig }

func (m Method[Req, Rsp]) erased() *erasedMethod { return m.em }

// Request returns the request type of m.
func (m Method[Req, Rsp]) Request() codec.Type[Req] { return m.req }

// Response returns the response type of m.
func (m Method[Req, Rsp]) Response() codec.Type[Rsp] { return m.rsp }

// Implement returns an implementation of m that calls f.
func (m Method[Req, Rsp]) Implement(f func(context.Context, Req) (Rsp, error)) Implementation {
	return Implementation{
		method: m.em,
		fn: func(ctx context.Context, v any) (any, error) {
			req, _ := v.(Req)
			return f(ctx, req)
		},
	}
}

// An Implementation binds a method to a function that serves it.
// Use [Method.Implement] to construct an implementation.
type Implementation struct {
	method *erasedMethod
	fn     func(context.Context, any) (any, error)
}

// Method returns the name of the method implemented by i.
func (i Implementation) Method() string { return i.method.name }

// A Service is an ordered table of method definitions. Its methods are
// indexed by name and by signature.
type Service struct {
	defs   []Definition
	byName map[string]Definition
	bySig  map[uint64]Definition
}

// NewService constructs a service from the given methods, in order.
// It panics if two methods have the same name or the same signature.
func NewService(defs ...Definition) *Service {
	s := &Service{
		byName: make(map[string]Definition),
		bySig:  make(map[uint64]Definition),
	}
	for _, d := range defs {
		if _, ok := s.byName[d.Name()]; ok {
			panic(fmt.Sprintf("duplicate method name %q", d.Name()))
		}
		if old, ok := s.bySig[d.Signature()]; ok {
			panic(fmt.Sprintf("method %q has the same signature as %q", d.Name(), old.Name()))
		}
		s.defs = append(s.defs, d)
		s.byName[d.Name()] = d
		s.bySig[d.Signature()] = d
	}
	return s
}

// Methods returns the methods of s in order.
func (s *Service) Methods() []Definition { return append([]Definition(nil), s.defs...) }

// Len reports the number of methods in s.
func (s *Service) Len() int { return len(s.defs) }

// Lookup returns the method of s with the given name, if any.
func (s *Service) Lookup(name string) (Definition, bool) {
	d, ok := s.byName[name]
	return d, ok
}

// Resolve returns the method of s with the given signature, if any.
func (s *Service) Resolve(sig uint64) (Definition, bool) {
	d, ok := s.bySig[sig]
	return d, ok
}
