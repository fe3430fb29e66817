// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package murmur

import (
	"errors"
	"expvar"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/creachadair/murmur/fanout"
)

// A Channel is a best-effort transport of byte buffers shared by any number of
// nodes. Each buffer written to a channel is delivered, if at all, as a whole
// to the readers of all the endpoints connected to it.
//
// The methods of an implementation must be safe for concurrent use.
type Channel interface {
	// Read registers f to be called with each buffer received by the channel,
	// and returns a function that unregisters it. The callback may be invoked
	// concurrently, and must not retain the buffer after it returns.
	Read(f func([]byte)) (stop func())

	// Write sends data to the channel.
	Write(data []byte) error

	// Close releases the resources of the channel. After a channel is closed,
	// further writes must report an error and no further buffers are delivered.
	Close() error
}

// ErrClosed is reported by operations on a node that has been closed.
var ErrClosed = errors.New("node is closed")

// A FrameLogger logs a frame exchanged with other nodes.
type FrameLogger func(FrameInfo)

// A FrameInfo combines a frame and a flag indicating whether the frame was
// sent or received.
type FrameInfo struct {
	*Frame      // the frame being logged
	Sent   bool // whether the frame was sent (true) or received (false)
}

func (f FrameInfo) dir() string {
	if f.Sent {
		return "send"
	}
	return "recv"
}

func (f FrameInfo) String() string { return fmt.Sprintf("%v %v", f.dir(), f.Frame) }

// NodeOptions are optional settings for a [Node]. A nil *NodeOptions provides
// default values as described.
type NodeOptions struct {
	// The id of the node. If zero, a random non-zero id is chosen.
	ID uint32
}

func (o *NodeOptions) id() uint32 {
	if o != nil && o.ID != 0 {
		return o.ID
	}
	for {
		if id := rand.Uint32(); id != 0 {
			return id
		}
	}
}

// A Node is an addressable participant on a [Channel]. A node sends and
// receives frames, originates calls with a [Client], and answers calls with a
// [Server]. The methods of a Node are safe for concurrent use.
//
// A node only sees frames addressed to it, and broadcast frames sent by other
// nodes. A node does not see its own broadcasts.
type Node struct {
	ch       Channel
	id       uint32
	stopRead func()
	frames   fanout.Hub[*Frame]
	metrics  *nodeMetrics

	μ       sync.Mutex
	closed  bool
	seq     uint16              // next outbound sequence number
	pending map[callKey]pending // outbound calls awaiting replies
	flog    FrameLogger
}

// callKey identifies a pending outbound call.
type callKey struct {
	sig uint64
	seq uint16
}

// NewNode constructs a new node attached to ch. The node takes ownership of
// ch, and closes it when the node is closed.
func NewNode(ch Channel, opts *NodeOptions) *Node {
	n := &Node{
		ch:      ch,
		id:      opts.id(),
		seq:     uint16(rand.Uint32()),
		pending: make(map[callKey]pending),
		metrics: newNodeMetrics(),
	}
	n.stopRead = ch.Read(n.receive)
	return n
}

// ID returns the id of n.
func (n *Node) ID() uint32 { return n.id }

// Metrics returns the metrics map for n. It is safe for the caller to add
// additional metrics to the map while the node is active.
func (n *Node) Metrics() *expvar.Map { return n.metrics.emap }

// LogFrames registers a callback that will be invoked for each frame sent or
// received by n, including received frames that will be discarded. Passing a
// nil callback disables frame logging. LogFrames returns n to permit chaining.
//
// The logger is invoked synchronously, prior to sending or dispatching a
// frame, and may be called concurrently.
func (n *Node) LogFrames(log FrameLogger) *Node {
	n.μ.Lock()
	defer n.μ.Unlock()
	n.flog = log
	return n
}

func (n *Node) logger() FrameLogger {
	n.μ.Lock()
	defer n.μ.Unlock()
	return n.flog
}

// Read registers f to be called with each frame delivered to n, and returns
// a function that unregisters it. A frame is delivered if it carries the
// [Marker], and either it is addressed to n, or it is a broadcast from another
// node. The stop function is idempotent, and is safe to call after n closes.
//
// The callback is invoked synchronously with the transport, and may be called
// concurrently. The callback must not modify the frame.
func (n *Node) Read(f func(*Frame)) (stop func()) { return n.frames.Subscribe(f) }

// accept reports whether f should be delivered to n.
func (n *Node) accept(f *Frame) bool {
	if f.Reserved != Marker {
		return false
	}
	return (f.Destination == 0 && f.Source != n.id) || f.Destination == n.id
}

// receive handles a buffer from the channel.
func (n *Node) receive(data []byte) {
	n.metrics.frameRecv.Add(1)
	f, err := DecodeFrame(data)
	if err != nil {
		n.metrics.frameInvalid.Add(1)
		return
	}
	if log := n.logger(); log != nil {
		log(FrameInfo{Frame: f, Sent: false})
	}
	if !n.accept(f) {
		n.metrics.frameDropped.Add(1)
		return
	}
	if !f.Request {
		n.resolve(f)
	}
	n.frames.Emit(f)
}

// Write sends f to the channel. The Source and Reserved fields of f are set by
// Write, overriding any values set by the caller.
func (n *Node) Write(f *Frame) error {
	n.μ.Lock()
	closed, log := n.closed, n.flog
	n.μ.Unlock()
	if closed {
		return ErrClosed
	}

	f.Source = n.id
	f.Reserved = Marker
	n.metrics.frameSent.Add(1)
	if log != nil {
		log(FrameInfo{Frame: f, Sent: true})
	}
	return n.ch.Write(EncodeFrame(f))
}

// Close detaches n from its channel and closes the channel. All pending calls
// on n fail with [ErrClosed], and all frame subscriptions are removed. Close
// is idempotent; calls after the first report nil.
func (n *Node) Close() error {
	n.μ.Lock()
	if n.closed {
		n.μ.Unlock()
		return nil
	}
	n.closed = true
	for _, pc := range n.pending {
		pc.close()
	}
	n.pending = nil
	n.μ.Unlock()

	n.stopRead()
	err := n.ch.Close()
	n.frames.Clear()
	return err
}

// register allocates a sequence number for a call of the method with the given
// signature, and records a pending call for it. If all sequence numbers for
// the signature are in use, it reports ErrSequenceExhausted.
func (n *Node) register(sig uint64) (uint16, pending, error) {
	n.μ.Lock()
	defer n.μ.Unlock()
	if n.closed {
		return 0, nil, ErrClosed
	}
	for range 1 << 16 {
		key := callKey{sig: sig, seq: n.seq}
		n.seq++
		if _, ok := n.pending[key]; ok {
			continue // in use by another call
		}
		pc := make(pending, 1)
		n.pending[key] = pc
		return key.seq, pc, nil
	}
	return 0, nil, ErrSequenceExhausted
}

// release discards the pending call for key, if it is still pc.
func (n *Node) release(key callKey, pc pending) {
	n.μ.Lock()
	defer n.μ.Unlock()
	if cur, ok := n.pending[key]; ok && cur == pc {
		delete(n.pending, key)
	}
}

// resolve delivers a reply frame to the matching pending call, if any.
// Replies that match no pending call are ignored.
func (n *Node) resolve(f *Frame) {
	key := callKey{sig: f.Signature, seq: f.Sequence}
	n.μ.Lock()
	defer n.μ.Unlock()
	if pc, ok := n.pending[key]; ok {
		delete(n.pending, key)
		pc.deliver(f) // does not block
	}
}

type pending chan *Frame

func (p pending) close() { close(p) }

func (p pending) deliver(f *Frame) {
	p <- f
	close(p)
}
