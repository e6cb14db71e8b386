// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/capture"
)

// OpID is the opaque identifier the native layer hands out at start and
// echoes on every later phase of the same operation.
type OpID uint64

// State is the bookkeeping kept for one in-flight operation.
type State struct {
	// Span is owned by the state and ended exactly once.
	Span trace.Span
	// Ctx is the parent context with Span installed.
	Ctx context.Context
	// Start is only meaningful when HasStart is set.
	Start    time.Time
	HasStart bool
	// Dims accumulates metric dimensions across phases.
	Dims capture.Attrs
	// NativeDuration caches a duration reported at progress, in nanoseconds.
	NativeDuration    int64
	HasNativeDuration bool
	// Leave drops the ambient slot the operation entered, if any.
	Leave func()
}

// Registry maps operation ids to their state. Entries are added at start and
// removed by the terminal phase; nothing else evicts them.
type Registry struct {
	mu     sync.Mutex
	states map[OpID]*State
}

func New() *Registry {
	return &Registry{states: make(map[OpID]*State)}
}

// Put stores st under id and returns the entry it replaced, if any. The caller
// owns the returned state and must release its span.
func (r *Registry) Put(id OpID, st *State) *State {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.states[id]
	r.states[id] = st
	return prev
}

// Get returns the state for id. An unknown id is not an error.
func (r *Registry) Get(id OpID) (*State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[id]
	return st, ok
}

// Take removes and returns the state for id.
func (r *Registry) Take(id OpID) (*State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[id]
	if ok {
		delete(r.states, id)
	}
	return st, ok
}

// Delete removes id without returning its state.
func (r *Registry) Delete(id OpID) {
	r.mu.Lock()
	delete(r.states, id)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// Drain removes every entry and returns them keyed by id.
func (r *Registry) Drain() map[OpID]*State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.states
	r.states = make(map[OpID]*State)
	return out
}
