// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package fanout implements a simple in-process event distributor.
//
// A [Hub] delivers each emitted value synchronously to every subscriber, in
// the order they subscribed:
//
//	var h fanout.Hub[string]
//	stop := h.Subscribe(func(s string) { log.Print(s) })
//	defer stop()
//
//	h.Emit("hello") // logs "hello"
package fanout

import (
	"slices"
	"sync"
)

// A Hub distributes values of type T to a dynamic set of subscribers.  A zero
// Hub is ready for use and has no subscribers. A Hub must not be copied after
// first use. The methods of a Hub are safe for concurrent use.
type Hub[T any] struct {
	μ    sync.Mutex
	subs []*sub[T]
}

type sub[T any] struct {
	f    func(T)
	live bool // guarded by the hub lock
}

// Subscribe adds f to the subscribers of h, and returns a function that
// removes it. The returned function is idempotent.
func (h *Hub[T]) Subscribe(f func(T)) (stop func()) {
	s := &sub[T]{f: f, live: true}
	h.μ.Lock()
	h.subs = append(h.subs, s)
	h.μ.Unlock()

	return func() {
		h.μ.Lock()
		defer h.μ.Unlock()
		if !s.live {
			return
		}
		s.live = false
		h.subs = slices.DeleteFunc(slices.Clone(h.subs), func(t *sub[T]) bool { return t == s })
	}
}

// Emit calls each current subscriber of h with v, in subscription order,
// and returns when all of them have returned. The set of subscribers is
// captured when Emit is called: a subscriber added during emission is not
// called for v, and a subscriber removed during emission is not called if it
// had not yet been reached.
func (h *Hub[T]) Emit(v T) {
	h.μ.Lock()
	snap := h.subs
	h.μ.Unlock()

	for _, s := range snap {
		h.μ.Lock()
		live := s.live
		h.μ.Unlock()
		if live {
			s.f(v)
		}
	}
}

// Len reports the number of current subscribers of h.
func (h *Hub[T]) Len() int {
	h.μ.Lock()
	defer h.μ.Unlock()
	return len(h.subs)
}

// Clear removes all subscribers from h.
func (h *Hub[T]) Clear() {
	h.μ.Lock()
	defer h.μ.Unlock()
	for _, s := range h.subs {
		s.live = false
	}
	h.subs = nil
}
