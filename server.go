// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package murmur

import (
	"context"
	"fmt"
	"sync"

	"github.com/creachadair/murmur/codec"
	"github.com/creachadair/taskgroup"
)

// ServerOptions are optional settings for a [Server]. A nil *ServerOptions
// provides default values as described.
type ServerOptions struct {
	// If set, this function is called to create a base context for each
	// handler. If nil, a background context is used.
	NewContext func() context.Context

	// If set, this function is called for each request that does not produce
	// a reply because its handler failed or the reply could not be sent.
	OnError func(req *Frame, err error)
}

func (o *ServerOptions) newContext() context.Context {
	if o == nil || o.NewContext == nil {
		return context.Background()
	}
	return o.NewContext()
}

func (o *ServerOptions) onError(req *Frame, err error) {
	if o != nil && o.OnError != nil {
		o.OnError(req, err)
	}
}

// A Server answers calls to the methods of a service on a node.
type Server struct {
	node  *Node
	opts  *ServerOptions
	impls map[uint64]Implementation
	tasks *taskgroup.Group

	stop   func() // unsubscribe from the node
	cancel context.CancelFunc
	ctx    context.Context

	μ      sync.Mutex
	closed bool
}

// Serve starts a server on n for the methods of svc, using the given
// implementations. Each implementation must be for a method of svc, and at
// most one implementation may be given for each method. Requests for methods
// of svc that have no implementation are not answered.
//
// Each request is handled in its own goroutine. A handler that reports an
// error or panics sends no reply. The context passed to a handler carries the
// node and the request frame; see [ContextNode] and [ContextFrame].
func (n *Node) Serve(svc *Service, impls ...Implementation) (*Server, error) {
	return n.ServeWithOptions(svc, nil, impls...)
}

// ServeWithOptions is as [Node.Serve], with the given options.
func (n *Node) ServeWithOptions(svc *Service, opts *ServerOptions, impls ...Implementation) (*Server, error) {
	s := &Server{
		node:  n,
		opts:  opts,
		impls: make(map[uint64]Implementation),
		tasks: taskgroup.New(nil),
	}
	for _, impl := range impls {
		d, ok := svc.Resolve(impl.method.sig)
		if !ok || d.Name() != impl.method.name {
			return nil, fmt.Errorf("method %q is not defined by the service", impl.method.name)
		}
		if _, ok := s.impls[impl.method.sig]; ok {
			return nil, fmt.Errorf("duplicate implementation for method %q", impl.method.name)
		}
		s.impls[impl.method.sig] = impl
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.stop = n.Read(s.dispatch)
	return s, nil
}

// Close stops s from accepting new requests, cancels the contexts of any
// active handlers, and blocks until they have returned. Close is idempotent.
//
// Close must not be called from a handler of s, since it waits for that
// handler to return. A handler that must stop its server should call Close
// in a separate goroutine.
func (s *Server) Close() error {
	s.μ.Lock()
	if !s.closed {
		s.closed = true
		s.stop()
		s.cancel()
	}
	s.μ.Unlock()
	s.tasks.Wait()
	return nil
}

// dispatch routes an inbound frame to its implementation.
func (s *Server) dispatch(f *Frame) {
	if !f.Request {
		return // replies are for clients
	}
	nm := s.node.metrics
	impl, ok := s.impls[f.Signature]
	if !ok {
		nm.frameDropped.Add(1)
		return
	}
	req, err := codec.Decode(impl.method.req, f.Payload)
	if err != nil {
		nm.frameInvalid.Add(1)
		return
	}

	s.μ.Lock()
	defer s.μ.Unlock()
	if s.closed {
		return
	}
	nm.callIn.Add(1)
	nm.callActive.Add(1)
	base := context.WithValue(s.opts.newContext(), nodeContextKey{}, s.node)
	base = context.WithValue(base, frameContextKey{}, f)
	ctx, cancel := context.WithCancel(base)
	stop := context.AfterFunc(s.ctx, cancel)

	s.tasks.Go(func() error {
		defer nm.callActive.Add(-1)
		defer stop()
		defer cancel()

		if err := s.handle(ctx, impl, f, req); err != nil {
			nm.callInErr.Add(1)
			s.opts.onError(f, err)
		}
		return nil
	})
}

func (s *Server) handle(ctx context.Context, impl Implementation, f *Frame, req any) error {
	rsp, err := func() (_ any, err error) {
		// Ensure a panic out of the handler is turned into an error.
		defer func() {
			if x := recover(); x != nil && err == nil {
				err = fmt.Errorf("handler panicked (recovered): %v", x)
			}
		}()
		return impl.fn(ctx, req)
	}()
	if err != nil {
		return err
	}
	payload, err := codec.Encode(impl.method.rsp, rsp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return s.node.Write(&Frame{
		Request:     false,
		Sequence:    f.Sequence,
		Signature:   f.Signature,
		Destination: f.Source,
		Payload:     payload,
	})
}

type nodeContextKey struct{}

// ContextNode returns the Node associated with the given context, or nil if
// none is defined. The context passed to a method implementation has this
// value, so that a handler can issue calls of its own, for example back to
// the source of its request.
func ContextNode(ctx context.Context) *Node {
	if v := ctx.Value(nodeContextKey{}); v != nil {
		return v.(*Node)
	}
	return nil
}

type frameContextKey struct{}

// ContextFrame returns the request frame associated with the given context, or
// nil if none is defined. The context passed to a method implementation has
// this value.
func ContextFrame(ctx context.Context) *Frame {
	if v := ctx.Value(frameContextKey{}); v != nil {
		return v.(*Frame)
	}
	return nil
}
