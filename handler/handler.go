// Copyright (C) 2023 Michael J. Fromberger. All Rights Reserved.

// Package handler provides adapters to the murmur.Implementation type for
// functions with other signatures.
//
// Each adapter takes the method it implements, so the request and response
// types of the function are checked against the method at compile time.
// Methods whose request or response is void use struct{} for that type.
package handler

import (
	"context"

	"github.com/creachadair/murmur"
)

// ParamResultError adapts a function f that accepts a request of type P and
// returns a result of type R and an error, to an implementation of m.
func ParamResultError[P, R any](m murmur.Method[P, R], f func(context.Context, P) (R, error)) murmur.Implementation {
	return m.Implement(f)
}

// ParamResult adapts a function f that accepts a request of type P and
// returns a result of type R without error, to an implementation of m.
func ParamResult[P, R any](m murmur.Method[P, R], f func(context.Context, P) R) murmur.Implementation {
	return m.Implement(func(ctx context.Context, p P) (R, error) {
		return f(ctx, p), nil
	})
}

// ParamError adapts a function f that accepts a request of type P and returns
// an error with no result, to an implementation of m.
func ParamError[P any](m murmur.Method[P, struct{}], f func(context.Context, P) error) murmur.Implementation {
	return m.Implement(func(ctx context.Context, p P) (struct{}, error) {
		return struct{}{}, f(ctx, p)
	})
}

// ResultError adapts a function f that accepts no request and returns a
// result of type R and an error, to an implementation of m.
func ResultError[R any](m murmur.Method[struct{}, R], f func(context.Context) (R, error)) murmur.Implementation {
	return m.Implement(func(ctx context.Context, _ struct{}) (R, error) {
		return f(ctx)
	})
}

// ResultOnly adapts a function f that accepts no request and returns a result
// of type R without error, to an implementation of m.
func ResultOnly[R any](m murmur.Method[struct{}, R], f func(context.Context) R) murmur.Implementation {
	return m.Implement(func(ctx context.Context, _ struct{}) (R, error) {
		return f(ctx), nil
	})
}

// Source adapts a function f that accepts the id of the node that sent the
// request along with the request, to an implementation of m.
func Source[P, R any](m murmur.Method[P, R], f func(ctx context.Context, source uint32, req P) (R, error)) murmur.Implementation {
	return m.Implement(func(ctx context.Context, p P) (R, error) {
		var src uint32
		if fr := murmur.ContextFrame(ctx); fr != nil {
			src = fr.Source
		}
		return f(ctx, src, p)
	})
}
