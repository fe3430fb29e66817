// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package channel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/creachadair/murmur/fanout"
	"github.com/creachadair/taskgroup"
	"golang.org/x/net/ipv4"
)

// MulticastOptions are optional settings for a [MulticastChannel]. A nil
// *MulticastOptions provides default values as described.
type MulticastOptions struct {
	// The names of the network interfaces on which to join the group. If
	// empty, the group is joined on every interface that is up, supports
	// multicast, and is not a loopback interface.
	Interfaces []string

	// The multicast TTL for outbound datagrams. If zero, 64 is used.
	TTL int

	// If true, do not deliver datagrams to listeners on the sending host.
	NoLoopback bool

	// The size of the receive buffer, which bounds the size of a datagram.
	// If zero, 65536 is used.
	BufferSize int
}

func (o *MulticastOptions) ttl() int {
	if o == nil || o.TTL <= 0 {
		return 64
	}
	return o.TTL
}

func (o *MulticastOptions) loopback() bool { return o == nil || !o.NoLoopback }

func (o *MulticastOptions) bufferSize() int {
	if o == nil || o.BufferSize <= 0 {
		return 1 << 16
	}
	return o.BufferSize
}

func (o *MulticastOptions) interfaces() ([]net.Interface, error) {
	if o != nil && len(o.Interfaces) != 0 {
		var out []net.Interface
		for _, name := range o.Interfaces {
			ifi, err := net.InterfaceByName(name)
			if err != nil {
				return nil, err
			}
			out = append(out, *ifi)
		}
		return out, nil
	}
	all, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var out []net.Interface
	for _, ifi := range all {
		const want = net.FlagUp | net.FlagMulticast
		if ifi.Flags&want == want && ifi.Flags&net.FlagLoopback == 0 {
			out = append(out, ifi)
		}
	}
	return out, nil
}

// A MulticastChannel sends and receives datagrams on a UDP multicast group.
// Every datagram sent to the group is delivered to every member, so every
// node on the group sees all broadcasts.
type MulticastChannel struct {
	conn    *ipv4.PacketConn
	group   *net.UDPAddr
	readers fanout.Hub[[]byte]
	wait    func() error

	μ      sync.Mutex
	closed bool
}

// Multicast joins the IPv4 multicast group at the given address and port, and
// returns a channel that sends and receives datagrams on it. The socket is
// bound to port on all addresses, with address reuse enabled where supported
// so that multiple processes on one host can join the same group.
func Multicast(group string, port int, opts *MulticastOptions) (*MulticastChannel, error) {
	ip := net.ParseIP(group).To4()
	if ip == nil || !ip.IsMulticast() {
		return nil, fmt.Errorf("invalid IPv4 multicast group %q", group)
	}
	ifs, err := opts.interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}

	lc := net.ListenConfig{Control: reuseAddr}
	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		return nil, err
	}
	conn := ipv4.NewPacketConn(pc)
	gaddr := &net.UDPAddr{IP: ip, Port: port}

	var joined int
	var jerr error
	for _, ifi := range ifs {
		if err := conn.JoinGroup(&ifi, gaddr); err != nil {
			jerr = errors.Join(jerr, fmt.Errorf("join %s: %w", ifi.Name, err))
			continue
		}
		joined++
	}
	if joined == 0 {
		// Fall back to the system default interface.
		if err := conn.JoinGroup(nil, gaddr); err != nil {
			conn.Close()
			return nil, fmt.Errorf("join group %v: %w", ip, errors.Join(jerr, err))
		}
	}
	if err := conn.SetMulticastTTL(opts.ttl()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set multicast TTL: %w", err)
	}
	if err := conn.SetMulticastLoopback(opts.loopback()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set multicast loopback: %w", err)
	}

	c := &MulticastChannel{conn: conn, group: gaddr}
	buf := make([]byte, opts.bufferSize())
	c.wait = taskgroup.Go(func() error {
		for {
			n, _, _, err := conn.ReadFrom(buf)
			if err != nil {
				return err
			}
			c.readers.Emit(buf[:n])
		}
	}).Wait
	return c, nil
}

// Group returns the address of the multicast group of c.
func (c *MulticastChannel) Group() *net.UDPAddr { return c.group }

// LocalAddr returns the local address of the socket underlying c.
func (c *MulticastChannel) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// Read implements a method of the [murmur.Channel] interface. The buffer
// passed to f is reused after f returns.
func (c *MulticastChannel) Read(f func([]byte)) func() { return c.readers.Subscribe(f) }

// Write implements a method of the [murmur.Channel] interface. Each call
// sends one datagram to the group.
func (c *MulticastChannel) Write(data []byte) error {
	_, err := c.conn.WriteTo(data, nil, c.group)
	return err
}

// Close implements a method of the [murmur.Channel] interface. It leaves the
// group and waits for the receiving goroutine to exit.
func (c *MulticastChannel) Close() error {
	c.μ.Lock()
	if c.closed {
		c.μ.Unlock()
		return net.ErrClosed
	}
	c.closed = true
	c.μ.Unlock()

	c.readers.Clear()
	err := c.conn.Close()
	c.wait()
	return err
}
