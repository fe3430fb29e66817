// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

package murmur_test

import (
	"context"
	"io"
	"testing"

	"github.com/creachadair/murmur"
	"github.com/creachadair/murmur/channel"
	"github.com/creachadair/murmur/codec"
	"github.com/creachadair/murmur/nodes"
)

func noop(context.Context, struct{}) (struct{}, error) { return struct{}{}, nil }

func BenchmarkCall(b *testing.B) {
	const payload = "fuzzy wuzzy was a bear\nfuzzy wuzzy had no hair\nfuzzy wuzzy wasn't fuzzy was he?"

	noopMethod := murmur.NewMethod("noop", codec.Void(), codec.Void())
	noopService := murmur.NewService(noopMethod)
	echo := echoMethod.Implement(func(_ context.Context, s string) (string, error) { return s, nil })

	b.Run("Local-noop", func(b *testing.B) {
		loc := nodes.NewLocal(2)
		defer loc.Close()

		mustServe(b, loc.Nodes[0], noopService, noopMethod.Implement(noop))
		runBench(b, murmur.Bind(loc.Nodes[1].Client(noopService, 1), noopMethod), struct{}{})
	})
	b.Run("Local-echo", func(b *testing.B) {
		loc := nodes.NewLocal(2)
		defer loc.Close()

		mustServe(b, loc.Nodes[0], echoService, echo)
		runBench(b, murmur.Bind(loc.Nodes[1].Client(echoService, 1), echoMethod), payload)
	})

	b.Run("IO-noop", func(b *testing.B) {
		na, nb := pipeNodes(b)
		mustServe(b, na, noopService, noopMethod.Implement(noop))
		runBench(b, murmur.Bind(nb.Client(noopService, 0), noopMethod), struct{}{})
	})
	b.Run("IO-echo", func(b *testing.B) {
		na, nb := pipeNodes(b)
		mustServe(b, na, echoService, echo)
		runBench(b, murmur.Bind(nb.Client(echoService, 0), echoMethod), payload)
	})
}

func runBench[Req, Rsp any](b *testing.B, call func(context.Context, Req) (Rsp, error), req Req) {
	b.Helper()
	ctx := context.Background()

	for b.Loop() {
		if _, err := call(ctx, req); err != nil {
			b.Fatal(err)
		}
	}
}

func pipeNodes(tb testing.TB) (na, nb *murmur.Node) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	na = murmur.NewNode(channel.IO(ar, aw), nil)
	nb = murmur.NewNode(channel.IO(br, bw), nil)
	tb.Cleanup(func() {
		if err := na.Close(); err != nil {
			tb.Errorf("A close: %v", err)
		}
		if err := nb.Close(); err != nil {
			tb.Errorf("B close: %v", err)
		}
	})
	return
}
