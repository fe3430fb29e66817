// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

// Package murmur implements a minimal remote procedure call substrate for
// anonymous nodes sharing a broadcast transport.
//
// Nodes exchange binary frames over a shared [Channel], such as an in-memory
// bus or a UDP multicast group. There is no handshake and no schema
// negotiation: each method is identified on the wire by a 64-bit signature
// derived from its name and the descriptions of its request and response
// types, so two nodes that define the same method agree on how to call it.
//
// # Methods and Services
//
// A [Method] pairs a name with request and response type descriptors from the
// codec package:
//
//	type Status struct {
//	   Status    string
//	   Timestamp uint64
//	}
//
//	var status = murmur.NewMethod("status", codec.Object(
//	   codec.Field("status", codec.Literal("ok"), func(s *Status) *string { return &s.Status }),
//	   codec.Field("timestamp", codec.U64(), func(s *Status) *uint64 { return &s.Timestamp }),
//	), codec.Void())
//
// The description of this method, from which its signature is computed, is
//
//	status: { status: "ok", timestamp: u64 } => void
//
// Methods are collected into a [Service]:
//
//	svc := murmur.NewService(status, info)
//
// # Nodes
//
// The core type defined by this package is the [Node]. A node has a random
// non-zero 32-bit id, and sees only the frames addressed to its id and the
// broadcasts (destination 0) of other nodes:
//
//	n := murmur.NewNode(ch, nil)
//	defer n.Close()
//
// # Calls
//
// To call a method, create a [Client] for a destination, either a node id or
// 0 to broadcast:
//
//	c := n.Client(svc, 0)
//	_, err := status.Call(ctx, c, Status{Status: "ok", Timestamp: now})
//
// A call blocks until a matching reply arrives or ctx ends. There is no
// built-in timeout; use a context deadline. Errors reported by calls have
// concrete type [*CallError].
//
// To serve methods, start a [Server] with implementations:
//
//	srv, err := n.Serve(svc, status.Implement(func(ctx context.Context, s Status) (struct{}, error) {
//	   log.Printf("status from %08x", murmur.ContextFrame(ctx).Source)
//	   return struct{}{}, nil
//	}))
//
// A request for a method the server does not implement produces no reply,
// nor does a request whose handler fails. To the caller, these are
// indistinguishable from a lost frame.
//
// # Metrics
//
// Each node maintains a collection of metrics. Use the [Node.Metrics] method
// to obtain an [expvar.Map] containing them. The metrics currently exported
// include:
//
//   - frames_received: counter of buffers received from the channel
//   - frames_sent: counter of frames sent
//   - frames_dropped: counter of frames discarded by addressing or dispatch
//   - frames_invalid: counter of buffers or payloads that could not be decoded
//   - calls_in: counter of inbound calls dispatched to a handler
//   - calls_in_failed: counter of inbound calls that did not produce a reply
//   - calls_active: gauge of inbound calls currently active
//   - calls_out: counter of outbound calls initiated
//   - calls_out_failed: counter of outbound calls resulting in errors
//   - calls_pending: gauge of outbound calls currently pending
//
// It is safe for the caller to modify the metrics map to add, update, and
// remove entries.
package murmur
