// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

// Package channel provides implementations of the murmur.Channel interface.
package channel

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"slices"
	"sync"

	"github.com/creachadair/murmur"
	"github.com/creachadair/murmur/fanout"
	"github.com/creachadair/taskgroup"
)

var (
	_ murmur.Channel = (*Endpoint)(nil)
	_ murmur.Channel = (*IOChannel)(nil)
	_ murmur.Channel = (*MulticastChannel)(nil)
)

// A Bus is an in-memory broadcast medium. Each buffer written to an endpoint
// of the bus is delivered synchronously to the readers of every endpoint
// connected to the bus, including the endpoint that wrote it.
type Bus struct {
	μ   sync.Mutex
	eps []*Endpoint
}

// NewBus constructs a new empty bus.
func NewBus() *Bus { return new(Bus) }

// Connect returns a new endpoint connected to b.
func (b *Bus) Connect() *Endpoint {
	e := &Endpoint{bus: b}
	b.μ.Lock()
	defer b.μ.Unlock()
	b.eps = append(b.eps, e)
	return e
}

// Len reports the number of endpoints currently connected to b.
func (b *Bus) Len() int {
	b.μ.Lock()
	defer b.μ.Unlock()
	return len(b.eps)
}

func (b *Bus) endpoints() []*Endpoint {
	b.μ.Lock()
	defer b.μ.Unlock()
	return b.eps
}

func (b *Bus) remove(e *Endpoint) {
	b.μ.Lock()
	defer b.μ.Unlock()
	b.eps = slices.DeleteFunc(slices.Clone(b.eps), func(f *Endpoint) bool { return f == e })
}

// An Endpoint is a connection to a [Bus].
type Endpoint struct {
	bus     *Bus
	readers fanout.Hub[[]byte]

	μ      sync.Mutex
	closed bool
}

// Read implements a method of the [murmur.Channel] interface.
func (e *Endpoint) Read(f func([]byte)) func() { return e.readers.Subscribe(f) }

// Write implements a method of the [murmur.Channel] interface.
// The data are copied, so the caller may reuse the buffer.
func (e *Endpoint) Write(data []byte) error {
	e.μ.Lock()
	closed := e.closed
	e.μ.Unlock()
	if closed {
		return net.ErrClosed
	}
	msg := bytes.Clone(data)
	for _, ep := range e.bus.endpoints() {
		ep.readers.Emit(msg)
	}
	return nil
}

// Close implements a method of the [murmur.Channel] interface.
func (e *Endpoint) Close() error {
	e.μ.Lock()
	defer e.μ.Unlock()
	if e.closed {
		return net.ErrClosed
	}
	e.closed = true
	e.bus.remove(e)
	e.readers.Clear()
	return nil
}

// MaxMessageSize is the largest message an [IOChannel] will receive.
const MaxMessageSize = 1 << 24

// IO constructs a point-to-point channel that receives from r and sends to wc.
// Each message is framed with a big-endian uint32 length prefix.
//
// The first call to Read starts a goroutine that reads messages from r and
// delivers them to the readers of the channel, until r reports an error or the
// channel is closed. Until then, input is left unread on r. Use Done to detect
// when the stream has ended, and Err to recover its error.
func IO(r io.Reader, wc io.WriteCloser) *IOChannel {
	c := &IOChannel{r: r, w: bufio.NewWriter(wc), c: wc, done: make(chan struct{})}
	if rc, ok := r.(io.Closer); ok {
		c.rc = rc
	}
	return c
}

// An IOChannel sends and receives length-prefixed messages on a reader and a
// writer.
type IOChannel struct {
	readers fanout.Hub[[]byte]
	r       io.Reader
	start   sync.Once
	wait    func() error // wait for the reader to exit, set by start
	done    chan struct{}
	err     error // valid after done is closed

	μ  sync.Mutex // guards w
	w  *bufio.Writer
	c  io.Closer
	rc io.Closer // nil if the reader is not closable
}

func (c *IOChannel) run() {
	br := bufio.NewReader(c.r)
	c.wait = taskgroup.Go(func() error {
		defer close(c.done)
		for {
			msg, err := readMessage(br)
			if err != nil {
				c.err = err
				return nil
			}
			c.readers.Emit(msg)
		}
	}).Wait
}

func readMessage(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err // io.EOF here is a clean end of stream
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxMessageSize {
		return nil, fmt.Errorf("message too large (%d bytes)", n)
	}
	msg := make([]byte, n)
	if _, err := io.ReadFull(r, msg); err != nil {
		return nil, fmt.Errorf("short message: %w", err)
	}
	return msg, nil
}

// Read implements a method of the [murmur.Channel] interface. The first call
// to Read starts reading from the stream.
func (c *IOChannel) Read(f func([]byte)) func() {
	stop := c.readers.Subscribe(f)
	c.start.Do(c.run)
	return stop
}

// Write implements a method of the [murmur.Channel] interface.
func (c *IOChannel) Write(data []byte) error {
	if len(data) > MaxMessageSize {
		return fmt.Errorf("message too large (%d bytes)", len(data))
	}
	c.μ.Lock()
	defer c.μ.Unlock()
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(data)))
	c.w.Write(hdr[:])
	c.w.Write(data)
	return c.w.Flush()
}

// Close implements a method of the [murmur.Channel] interface. If the reader
// of c is also an [io.Closer], it is closed, and Close waits for the reading
// goroutine to exit. It must not be called from a reader callback.
func (c *IOChannel) Close() error {
	c.readers.Clear()
	c.μ.Lock()
	err := c.c.Close()
	c.μ.Unlock()
	c.start.Do(func() {
		// Never read, so there is no reader to wait for.
		c.wait = func() error { return nil }
		close(c.done)
	})
	if c.rc != nil {
		c.rc.Close() // may be the same as the writer
		c.wait()
	}
	return err
}

// Done returns a channel that is closed when the stream delivering messages to
// c has ended, or when c is closed before it was ever read.
func (c *IOChannel) Done() <-chan struct{} { return c.done }

// Err reports the error that ended the input stream of c. It returns nil
// before the stream has ended, or if it ended cleanly at EOF or by closing.
func (c *IOChannel) Err() error {
	select {
	case <-c.done:
		if errors.Is(c.err, io.EOF) || errors.Is(c.err, io.ErrClosedPipe) || errors.Is(c.err, net.ErrClosed) {
			return nil
		}
		return c.err
	default:
		return nil
	}
}
