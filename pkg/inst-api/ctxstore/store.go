// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package ctxstore keeps the "currently active" context for a logical task
// without threading it through every call.
//
// A logical task is a goroutine together with every continuation spawned
// through the store (Go, AfterFunc). A slot written in one goroutine is never
// visible to an unrelated goroutine, and a continuation observes the context
// that was active when it was scheduled, no matter how long the parent blocks
// in between.
package ctxstore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Store is a goroutine-local context slot with explicit inheritance.
type Store struct {
	mu       sync.RWMutex
	slots    map[uint64]slot
	disabled atomic.Bool
}

// slot is one goroutine's value. runs counts the Run scopes open on the
// goroutine; a slot with runs == 0 was written by EnterWith alone and lives
// until something releases it.
type slot struct {
	v    any
	runs int
}

var defaultStore = New()

// Default returns the process-wide store.
func Default() *Store {
	return defaultStore
}

func New() *Store {
	return &Store{slots: make(map[uint64]slot)}
}

// Active returns the context active for the calling goroutine. It returns
// context.Background() when nothing is active, when the store is disabled, or
// when the slot holds something that is not a context.
func (s *Store) Active() context.Context {
	if s.disabled.Load() {
		return context.Background()
	}
	gid := goid()
	s.mu.RLock()
	v := s.slots[gid].v
	s.mu.RUnlock()
	if ctx, ok := v.(context.Context); ok && ctx != nil {
		return ctx
	}
	return context.Background()
}

// Run calls fn with ctx active for the dynamic extent of fn, including the
// continuations fn spawns through the store. The previous value is restored
// when fn returns or panics.
func (s *Store) Run(ctx context.Context, fn func()) {
	if s.disabled.Load() {
		fn()
		return
	}
	restore := s.swap(ctx)
	defer restore()
	fn()
}

// RunValue is Run for functions that return a value.
func RunValue[T any](s *Store, ctx context.Context, fn func() T) T {
	var out T
	s.Run(ctx, func() { out = fn() })
	return out
}

// EnterWith makes ctx active for the rest of the calling goroutine's current
// scope without opening a nested one. Inside Run the value lasts until Run
// returns; outside it lasts until the goroutine's slot is released.
func (s *Store) EnterWith(ctx context.Context) {
	s.set(ctx)
}

// EnterOwned is EnterWith for a caller that owns ctx for a bounded time, such
// as an in-flight operation. The returned leave func drops the slot of the
// goroutine that entered, from any goroutine, provided the slot still holds
// ctx and no Run scope encloses it; a Run scope restores its own value.
func (s *Store) EnterOwned(ctx context.Context) (leave func()) {
	if s.disabled.Load() {
		return func() {}
	}
	gid := goid()
	s.mu.Lock()
	s.slots[gid] = slot{v: ctx, runs: s.slots[gid].runs}
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		cur, ok := s.slots[gid]
		if !ok || cur.runs > 0 {
			return
		}
		if held, isCtx := cur.v.(context.Context); isCtx && held == ctx {
			delete(s.slots, gid)
		}
	}
}

// Release drops the calling goroutine's slot. Long-lived goroutines that used
// EnterWith outside of Run call it when their task is done.
func (s *Store) Release() {
	gid := goid()
	s.mu.Lock()
	delete(s.slots, gid)
	s.mu.Unlock()
}

// Go runs fn in a new goroutine that inherits the active context.
func (s *Store) Go(fn func()) {
	captured := s.Active()
	go s.Run(captured, fn)
}

// AfterFunc is time.AfterFunc with the active context carried over to fn.
func (s *Store) AfterFunc(d time.Duration, fn func()) *time.Timer {
	captured := s.Active()
	return time.AfterFunc(d, func() { s.Run(captured, fn) })
}

// Bind returns fn wrapped so that it runs under the context active now, on
// whichever goroutine eventually calls it.
func (s *Store) Bind(fn func()) func() {
	captured := s.Active()
	return func() { s.Run(captured, fn) }
}

// Disable clears every slot and makes Active return the root context until
// Enable is called. Calling it more than once is harmless.
func (s *Store) Disable() {
	s.disabled.Store(true)
	s.mu.Lock()
	clear(s.slots)
	s.mu.Unlock()
}

// Enable re-arms a disabled store for a new lifetime.
func (s *Store) Enable() {
	s.disabled.Store(false)
}

func (s *Store) Disabled() bool {
	return s.disabled.Load()
}

// Len reports the number of goroutines holding a slot.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

func (s *Store) set(v any) {
	if s.disabled.Load() {
		return
	}
	gid := goid()
	s.mu.Lock()
	s.slots[gid] = slot{v: v, runs: s.slots[gid].runs}
	s.mu.Unlock()
}

func (s *Store) swap(v any) func() {
	gid := goid()
	s.mu.Lock()
	prev, had := s.slots[gid]
	s.slots[gid] = slot{v: v, runs: prev.runs + 1}
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.disabled.Load() {
			return
		}
		if had {
			s.slots[gid] = prev
		} else {
			delete(s.slots, gid)
		}
	}
}
