// Copyright (C) 2023 Michael J. Fromberger. All Rights Reserved.

package handler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/creachadair/murmur"
	"github.com/creachadair/murmur/codec"
	"github.com/creachadair/murmur/handler"
	"github.com/creachadair/murmur/nodes"
	"github.com/fortytw2/leaktest"
)

var (
	upper  = murmur.NewMethod("upper", codec.String(), codec.String())
	length = murmur.NewMethod("length", codec.String(), codec.U32())
	notify = murmur.NewMethod("notify", codec.String(), codec.Void())
	motd   = murmur.NewMethod("motd", codec.Void(), codec.String())
	whoami = murmur.NewMethod("whoami", codec.Void(), codec.U32())

	testService = murmur.NewService(upper, length, notify, motd, whoami)
)

// call runs f against a server on node 2 of a local cluster, serving impl.
// It returns the error reported to the server for a failed handler, if any.
func call(t *testing.T, impl murmur.Implementation, f func(ctx context.Context, c *murmur.Client) error) error {
	t.Helper()
	loc := nodes.NewLocal(2)
	defer loc.Close()

	herr := make(chan error, 1)
	srv, err := loc.Nodes[1].ServeWithOptions(testService, &murmur.ServerOptions{
		OnError: func(_ *murmur.Frame, err error) { herr <- err },
	}, impl)
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	if err := f(ctx, loc.Nodes[0].Client(testService, 2)); err != nil {
		t.Errorf("Call: %v", err)
	}
	srv.Close() // wait for handlers to finish
	select {
	case err := <-herr:
		return err
	default:
		return nil
	}
}

func checkFrame(t *testing.T, ctx context.Context) {
	t.Helper()
	if murmur.ContextFrame(ctx) == nil {
		t.Error("Context does not contain the request frame")
	}
	if murmur.ContextNode(ctx) == nil {
		t.Error("Context does not contain the node")
	}
}

func TestHandler(t *testing.T) {
	defer leaktest.Check(t)()

	t.Run("ParamResultError", func(t *testing.T) {
		impl := handler.ParamResultError(upper, func(ctx context.Context, s string) (string, error) {
			checkFrame(t, ctx)
			return s + "-OK", nil
		})
		call(t, impl, func(ctx context.Context, c *murmur.Client) error {
			got, err := upper.Call(ctx, c, "input")
			if err == nil && got != "input-OK" {
				t.Errorf("Result: got %q, want input-OK", got)
			}
			return err
		})
	})

	t.Run("ParamResult", func(t *testing.T) {
		impl := handler.ParamResult(length, func(ctx context.Context, s string) uint32 {
			checkFrame(t, ctx)
			return uint32(len(s))
		})
		call(t, impl, func(ctx context.Context, c *murmur.Client) error {
			got, err := murmur.Bind(c, length)(ctx, "seven!!")
			if err == nil && got != 7 {
				t.Errorf("Result: got %d, want 7", got)
			}
			return err
		})
	})

	t.Run("ParamError", func(t *testing.T) {
		var got string
		impl := handler.ParamError(notify, func(ctx context.Context, s string) error {
			checkFrame(t, ctx)
			got = s
			return nil
		})
		call(t, impl, func(ctx context.Context, c *murmur.Client) error {
			_, err := notify.Call(ctx, c, "hey")
			return err
		})
		if got != "hey" {
			t.Errorf("Handler saw %q, want hey", got)
		}
	})

	t.Run("ResultError", func(t *testing.T) {
		impl := handler.ResultError(motd, func(ctx context.Context) (string, error) {
			checkFrame(t, ctx)
			return "be excellent", nil
		})
		call(t, impl, func(ctx context.Context, c *murmur.Client) error {
			got, err := c.Call(ctx, "motd", struct{}{})
			if err == nil && got != "be excellent" {
				t.Errorf("Result: got %v, want be excellent", got)
			}
			return err
		})
	})

	t.Run("ResultOnly", func(t *testing.T) {
		impl := handler.ResultOnly(motd, func(ctx context.Context) string { return "hi" })
		call(t, impl, func(ctx context.Context, c *murmur.Client) error {
			got, err := motd.Call(ctx, c, struct{}{})
			if err == nil && got != "hi" {
				t.Errorf("Result: got %q, want hi", got)
			}
			return err
		})
	})

	t.Run("Source", func(t *testing.T) {
		impl := handler.Source(whoami, func(ctx context.Context, src uint32, _ struct{}) (uint32, error) {
			return src, nil
		})
		call(t, impl, func(ctx context.Context, c *murmur.Client) error {
			got, err := whoami.Call(ctx, c, struct{}{})
			if err == nil && got != c.Node().ID() {
				t.Errorf("Source: got %d, want %d", got, c.Node().ID())
			}
			return err
		})
	})

	t.Run("Error", func(t *testing.T) {
		errBad := errors.New("bad robot")
		impl := handler.ParamError(notify, func(context.Context, string) error { return errBad })
		herr := call(t, impl, func(ctx context.Context, c *murmur.Client) error {
			// A failed handler sends no reply, so the call runs until its deadline.
			ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()
			if _, err := notify.Call(ctx, c, "x"); !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("Call: got %v, want %v", err, context.DeadlineExceeded)
			}
			return nil
		})
		if !errors.Is(herr, errBad) {
			t.Errorf("Handler error: got %v, want %v", herr, errBad)
		}
	})
}
