// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package murmur

import (
	"context"
	"errors"
	"fmt"

	"github.com/creachadair/murmur/codec"
)

// ErrSequenceExhausted is reported by a call when every sequence number for
// its method already has a call pending on the node.
var ErrSequenceExhausted = errors.New("no sequence numbers available")

// A Client issues calls to the methods of a service from a node. Calls are
// addressed to a single destination node, or broadcast if the destination is
// zero. When a call is broadcast, the first reply received resolves it.
//
// A Client is safe for concurrent use.
type Client struct {
	node *Node
	svc  *Service
	dest uint32
}

// Client returns a client for the methods of svc, that sends its calls from n
// to the given destination.
func (n *Node) Client(svc *Service, destination uint32) *Client {
	return &Client{node: n, svc: svc, dest: destination}
}

// Node returns the node from which c sends its calls.
func (c *Client) Node() *Node { return c.node }

// Destination reports the destination node id of c, 0 for broadcast.
func (c *Client) Destination() uint32 { return c.dest }

// Service returns the service of c.
func (c *Client) Service() *Service { return c.svc }

// Call calls the method of the service with the given name, and blocks until
// a reply is received or ctx ends. The type of req must match the request type
// of the method. The result has the response type of the method.
//
// There is no built-in timeout: a call to a method not served by any node
// will wait until ctx ends. An error reported by Call has concrete type
// *CallError.
func (c *Client) Call(ctx context.Context, name string, req any) (any, error) {
	d, ok := c.svc.Lookup(name)
	if !ok {
		return nil, &CallError{Method: name, Err: errors.New("method not defined by the service")}
	}
	return c.call(ctx, d.erased(), req)
}

func (c *Client) call(ctx context.Context, m *erasedMethod, req any) (_ any, err error) {
	nm := c.node.metrics
	nm.callOut.Add(1)
	defer func() {
		if err != nil {
			nm.callOutErr.Add(1)
			err = &CallError{Method: m.name, Err: err}
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err := codec.Encode(m.req, req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	seq, pc, err := c.node.register(m.sig)
	if err != nil {
		return nil, err
	}
	defer c.node.release(callKey{sig: m.sig, seq: seq}, pc)

	nm.callPending.Add(1)
	defer nm.callPending.Add(-1)

	if err := c.node.Write(&Frame{
		Request:     true,
		Sequence:    seq,
		Signature:   m.sig,
		Destination: c.dest,
		Payload:     payload,
	}); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case rsp, ok := <-pc:
		if !ok {
			return nil, ErrClosed
		}
		v, err := codec.Decode(m.rsp, rsp.Payload)
		if err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return v, nil
	}
}

// Call calls m on the service of c with the given request, and blocks until a
// reply is received or ctx ends. Call does not require that m be one of the
// methods of the service of c.
func (m Method[Req, Rsp]) Call(ctx context.Context, c *Client, req Req) (Rsp, error) {
	v, err := c.call(ctx, m.em, req)
	if err != nil {
		var zero Rsp
		return zero, err
	}
	rsp, _ := v.(Rsp)
	return rsp, nil
}

// Bind returns a function that calls m using c.
func Bind[Req, Rsp any](c *Client, m Method[Req, Rsp]) func(context.Context, Req) (Rsp, error) {
	return func(ctx context.Context, req Req) (Rsp, error) { return m.Call(ctx, c, req) }
}

// CallError is the concrete type of errors reported by calls from a [Client].
type CallError struct {
	Method string // the name of the method called
	Err    error  // the underlying error
}

// Unwrap reports the underlying error of c.
func (c *CallError) Unwrap() error { return c.Err }

// Error satisfies the error interface.
func (c *CallError) Error() string { return fmt.Sprintf("call %q: %v", c.Method, c.Err) }
