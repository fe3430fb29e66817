// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

// Package nodes provides support code for managing and testing nodes.
package nodes

import (
	"context"
	"errors"
	"net"

	"github.com/creachadair/murmur"
	"github.com/creachadair/murmur/channel"
	"github.com/creachadair/taskgroup"
)

// Local is a collection of nodes connected to a shared in-memory bus,
// suitable for testing.
type Local struct {
	Bus   *channel.Bus
	Nodes []*murmur.Node
}

// NewLocal creates n nodes connected to a shared in-memory bus. The nodes
// are assigned the ids 1 through n.
func NewLocal(n int) *Local {
	loc := &Local{Bus: channel.NewBus()}
	for i := range n {
		loc.Add(&murmur.NodeOptions{ID: uint32(i + 1)})
	}
	return loc
}

// Add connects a new node with the given options to the bus of loc, and
// returns it.
func (loc *Local) Add(opts *murmur.NodeOptions) *murmur.Node {
	node := murmur.NewNode(loc.Bus.Connect(), opts)
	loc.Nodes = append(loc.Nodes, node)
	return node
}

// Close closes all the nodes of loc.
func (loc *Local) Close() error {
	var errs []error
	for _, n := range loc.Nodes {
		errs = append(errs, n.Close())
	}
	return errors.Join(errs...)
}

// An Accepter accepts point-to-point channel connections.
type Accepter interface {
	Accept(context.Context) (*channel.IOChannel, error)
}

// Loop accepts connections from acc and runs a node on each one in a
// goroutine. For each connection, setup is called with the new node to start
// its servers. The node runs until its input ends or ctx ends, and is then
// closed. Loop continues until acc closes or ctx ends.
//
// When ctx terminates, all running nodes are closed. When acc closes, the
// loop waits for running nodes to exit before returning. If setup reports an
// error, that node is closed, and Loop reports the first such error when it
// returns.
//
// No frames are delivered to a node until its setup returns, so setup must
// not wait for replies from the remote node.
func Loop(ctx context.Context, acc Accepter, setup func(*murmur.Node) error) error {
	g := taskgroup.New(nil)
	for {
		ch, err := acc.Accept(ctx)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				err = nil
			}
			if werr := g.Wait(); err == nil {
				err = werr
			}
			return err
		}

		g.Go(func() error {
			// Hold delivery until setup has attached its servers, so that
			// messages already waiting on the stream are not lost.
			gc := &gated{IOChannel: ch, ready: make(chan struct{})}
			node := murmur.NewNode(gc, nil)
			defer node.Close()
			err := setup(node)
			close(gc.ready)
			if err != nil {
				return err
			}
			select {
			case <-ch.Done():
			case <-ctx.Done():
			}
			return nil
		})
	}
}

// gated is a channel whose delivery blocks until ready is closed.
type gated struct {
	*channel.IOChannel
	ready chan struct{}
}

func (g *gated) Read(f func([]byte)) func() {
	return g.IOChannel.Read(func(data []byte) {
		<-g.ready
		f(data)
	})
}

// NetAccepter adapts a net.Listener to the Accepter interface.
func NetAccepter(lst net.Listener) Accepter {
	return netAccepter{Listener: lst}
}

type netAccepter struct {
	net.Listener
}

func (n netAccepter) Accept(ctx context.Context) (*channel.IOChannel, error) {
	// A net.Listener does not obey a context, so simulate it by closing the
	// listener if ctx ends. The ok channel allows the context watcher to clean
	// up when we return before ctx ends.
	ok := make(chan struct{})
	defer close(ok)
	taskgroup.Go(func() error {
		select {
		case <-ctx.Done():
			n.Listener.Close()
		case <-ok:
			// release the waiter
		}
		return nil
	})

	conn, err := n.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return channel.IO(conn, conn), nil
}
