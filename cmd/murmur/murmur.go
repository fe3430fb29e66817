// Program murmur is a command-line utility for interacting with murmur nodes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/creachadair/murmur"
	"github.com/creachadair/murmur/catalog"
	"github.com/creachadair/murmur/channel"
	"github.com/creachadair/murmur/codec"
	"github.com/creachadair/murmur/handler"
	"github.com/creachadair/murmur/signature"
	"golang.org/x/time/rate"
)

var netFlags struct {
	Group  string `flag:"group,default=239.255.42.99,Multicast group address"`
	Port   int    `flag:"port,default=42042,Multicast UDP port"`
	Iface  string `flag:"iface,Comma-separated network interfaces to join (default all)"`
	NodeID uint   `flag:"id,Node id (default random)"`
}

var demoFlags struct {
	Interval time.Duration `flag:"interval,default=1s,Interval between status broadcasts"`
	Name     string        `flag:"name,Name reported by the info method (default hostname)"`
}

var catalogFlags struct {
	Dest    uint          `flag:"dest,Destination node id (default broadcast)"`
	Timeout time.Duration `flag:"timeout,default=2s,Time to wait for a reply"`
}

func main() {
	root := &command.C{
		Name: filepath.Base(os.Args[0]),
		Help: "Utilities for interacting with murmur nodes.",
		Commands: []*command.C{
			{
				Name:  "signature",
				Usage: "<description>\n<name> <request> <response>",
				Help: `Print the signature of a method.

Given one argument, it is the complete description of the method, for example:

  status: { status: "ok", timestamp: u64 } => void

Given three arguments, they are the name of the method and the descriptions
of its request and response types.`,
				Run: runSignature,
			},
			{
				Name:     "listen",
				Help:     "Join a multicast group and print every frame observed.",
				SetFlags: command.Flags(flax.MustBind, &netFlags),
				Run:      runListen,
			},
			{
				Name: "demo",
				Help: `Run a demonstration node on a multicast group.

The node serves the methods:

  status: { status: "ok", timestamp: u64 } => void
  info: void => { name: string }

and broadcasts a status call periodically. When the node receives a status
call, it calls info on the node that sent it.`,
				SetFlags: command.Flags(flax.MustBind, &netFlags, &demoFlags),
				Run:      runDemo,
			},
			{
				Name:     "catalog",
				Help:     "Call the catalog method and print the methods served.",
				SetFlags: command.Flags(flax.MustBind, &netFlags, &catalogFlags),
				Run:      runCatalog,
			},
			command.VersionCommand(),
			command.HelpCommand(nil),
		},
	}
	command.RunOrFail(root.NewEnv(nil).MergeFlags(true), os.Args[1:])
}

func runSignature(env *command.Env) error {
	var desc string
	switch len(env.Args) {
	case 1:
		desc = env.Args[0]
	case 3:
		desc = signature.Method(env.Args[0], env.Args[1], env.Args[2])
	default:
		return env.Usagef("expected 1 or 3 arguments, got %d", len(env.Args))
	}
	fmt.Printf("%016x %s\n", signature.String(desc), desc)
	return nil
}

// nodeID converts the value of the named flag to a node id.
func nodeID(flag string, v uint) (uint32, error) {
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("--%s %d is out of range for a node id", flag, v)
	}
	return uint32(v), nil
}

func openNode(env *command.Env) (*murmur.Node, error) {
	id, err := nodeID("id", netFlags.NodeID)
	if err != nil {
		return nil, env.Usagef("%v", err)
	}
	opts := &channel.MulticastOptions{}
	if netFlags.Iface != "" {
		opts.Interfaces = strings.Split(netFlags.Iface, ",")
	}
	ch, err := channel.Multicast(netFlags.Group, netFlags.Port, opts)
	if err != nil {
		return nil, err
	}
	n := murmur.NewNode(ch, &murmur.NodeOptions{ID: id})
	log.Printf("Node %08x joined %v", n.ID(), ch.Group())
	return n, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runListen(env *command.Env) error {
	n, err := openNode(env)
	if err != nil {
		return err
	}
	defer n.Close()
	n.LogFrames(func(fi murmur.FrameInfo) {
		log.Printf("%v %q", fi, fi.Payload)
	})

	ctx, cancel := signalContext()
	defer cancel()
	<-ctx.Done()
	return nil
}

type Status struct {
	Status    string
	Timestamp uint64
}

type Info struct {
	Name string
}

var (
	statusMethod = murmur.NewMethod("status", codec.Object(
		codec.Field("status", codec.Literal("ok"), func(s *Status) *string { return &s.Status }),
		codec.Field("timestamp", codec.U64(), func(s *Status) *uint64 { return &s.Timestamp }),
	), codec.Void())

	infoMethod = murmur.NewMethod("info", codec.Void(), codec.Object(
		codec.Field("name", codec.String(), func(i *Info) *string { return &i.Name }),
	))

	demoService = murmur.NewService(statusMethod, infoMethod, catalog.Method)
)

func runDemo(env *command.Env) error {
	if demoFlags.Interval <= 0 {
		return env.Usagef("interval must be positive")
	}
	name := demoFlags.Name
	if name == "" {
		name, _ = os.Hostname()
	}

	n, err := openNode(env)
	if err != nil {
		return err
	}
	defer n.Close()

	srv, err := n.ServeWithOptions(demoService, &murmur.ServerOptions{
		OnError: func(req *murmur.Frame, err error) {
			log.Printf("Request %v failed: %v", req, err)
		},
	},
		handler.Source(statusMethod, func(ctx context.Context, src uint32, s Status) (struct{}, error) {
			log.Printf("Status %q from %08x at %v", s.Status, src, time.UnixMilli(int64(s.Timestamp)).Format(time.RFC3339Nano))
			ctx, cancel := context.WithTimeout(ctx, demoFlags.Interval)
			defer cancel()
			info, err := infoMethod.Call(ctx, n.Client(demoService, src), struct{}{})
			if err != nil {
				return struct{}{}, err
			}
			log.Printf("Node %08x is %q", src, info.Name)
			return struct{}{}, nil
		}),
		handler.ResultOnly(infoMethod, func(context.Context) Info { return Info{Name: name} }),
		catalog.Implement(demoService),
	)
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, cancel := signalContext()
	defer cancel()

	bcast := murmur.Bind(n.Client(demoService, 0), statusMethod)
	lim := rate.NewLimiter(rate.Every(demoFlags.Interval), 1)
	for {
		if err := lim.Wait(ctx); err != nil {
			log.Print("Stopping")
			return nil
		}
		cctx, ccancel := context.WithTimeout(ctx, demoFlags.Interval)
		_, err := bcast(cctx, Status{Status: "ok", Timestamp: uint64(time.Now().UnixMilli())})
		ccancel()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			log.Printf("Broadcast status: %v", err)
		}
	}
}

func runCatalog(env *command.Env) error {
	dest, err := nodeID("dest", catalogFlags.Dest)
	if err != nil {
		return env.Usagef("%v", err)
	}
	n, err := openNode(env)
	if err != nil {
		return err
	}
	defer n.Close()

	ctx, cancel := context.WithTimeout(context.Background(), catalogFlags.Timeout)
	defer cancel()

	// Record which node answered, before the reply resolves the call.
	var src atomic.Uint32
	n.LogFrames(func(fi murmur.FrameInfo) {
		if !fi.Sent && !fi.Request && fi.Destination == n.ID() && fi.Signature == catalog.Method.Signature() {
			src.CompareAndSwap(0, fi.Source)
		}
	})
	entries, err := catalog.Method.Call(ctx, n.Client(catalog.Service, dest), struct{}{})
	if err != nil {
		return err
	}
	fmt.Printf("Node %08x serves %d methods:\n", src.Load(), len(entries))
	for _, e := range entries {
		fmt.Println(" ", e)
	}
	return nil
}
