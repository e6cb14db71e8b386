// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"errors"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/bridge"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/capture"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/registry"
)

var (
	ErrUnknownRef    = errors.New("unknown instrument reference")
	ErrNilInstrument = errors.New("nil instrument")
)

// Ref identifies one attachment on a Hub.
type Ref uint64

type attachment struct {
	ref  Ref
	inst *Instrument
	cb   Callbacks
}

// Hub is the surface native event sources dispatch into. Instruments attach
// under their policy name, which event sources use as the operation kind.
// Every instrument attached for a kind receives every event of that kind.
type Hub struct {
	mu      sync.RWMutex
	lastRef Ref
	byRef   map[Ref]*attachment
	byKind  map[string][]*attachment
	lastID  atomic.Uint64
}

var defaultHub = NewHub()

// DefaultHub returns the process-wide hub.
func DefaultHub() *Hub {
	return defaultHub
}

func NewHub() *Hub {
	return &Hub{
		byRef:  make(map[Ref]*attachment),
		byKind: make(map[string][]*attachment),
	}
}

// Attach starts delivering events of the instrument's kind to it.
func (h *Hub) Attach(inst *Instrument) (Ref, error) {
	if inst == nil {
		return 0, ErrNilInstrument
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastRef++
	a := &attachment{ref: h.lastRef, inst: inst, cb: inst.Callbacks()}
	h.byRef[a.ref] = a
	kind := inst.Name()
	h.byKind[kind] = append(slices.Clip(h.byKind[kind]), a)
	return a.ref, nil
}

// AttachPolicies builds one instrument per policy with opts and attaches them
// all. On failure the instruments attached so far are detached again.
func (h *Hub) AttachPolicies(policies []*capture.Policy, opts ...bridge.Option) ([]Ref, error) {
	refs := make([]Ref, 0, len(policies))
	for _, policy := range policies {
		inst, err := New(policy, opts...)
		if err == nil {
			var ref Ref
			if ref, err = h.Attach(inst); err == nil {
				refs = append(refs, ref)
				continue
			}
		}
		for _, ref := range refs {
			_ = h.Detach(ref)
		}
		return nil, err
	}
	return refs, nil
}

// Detach stops delivery to the referenced instrument and ends the operations
// it still tracks.
func (h *Hub) Detach(ref Ref) error {
	h.mu.Lock()
	a, ok := h.byRef[ref]
	if !ok {
		h.mu.Unlock()
		return ErrUnknownRef
	}
	delete(h.byRef, ref)
	kind := a.inst.Name()
	rest := slices.DeleteFunc(slices.Clone(h.byKind[kind]), func(x *attachment) bool { return x.ref == ref })
	if len(rest) == 0 {
		delete(h.byKind, kind)
	} else {
		h.byKind[kind] = rest
	}
	h.mu.Unlock()

	a.inst.Close()
	return nil
}

// Enabled reports whether any instrument listens for kind. Event sources
// check it before computing attributes.
func (h *Hub) Enabled(kind string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byKind[kind]) > 0
}

// Instruments returns the instruments attached for kind.
func (h *Hub) Instruments(kind string) []*Instrument {
	list := h.attached(kind)
	out := make([]*Instrument, len(list))
	for i, a := range list {
		out[i] = a.inst
	}
	return out
}

// Requested returns the union of the attribute keys the instruments of kind
// need for phase.
func (h *Hub) Requested(kind string, phase capture.Phase) []string {
	var keys []string
	for _, a := range h.attached(kind) {
		for _, k := range a.inst.RequestedAttributes(phase) {
			if !slices.Contains(keys, k) {
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// NextID allocates an operation id that is unique for the process lifetime.
func (h *Hub) NextID() registry.OpID {
	return registry.OpID(h.lastID.Add(1))
}

func (h *Hub) Start(kind string, id registry.OpID, attrs capture.Attrs) {
	for _, a := range h.attached(kind) {
		a.cb.OnStart(id, attrs)
	}
}

func (h *Hub) Progress(kind string, id registry.OpID, attrs capture.Attrs) {
	for _, a := range h.attached(kind) {
		a.cb.OnProgress(id, attrs)
	}
}

func (h *Hub) End(kind string, id registry.OpID, attrs capture.Attrs) {
	for _, a := range h.attached(kind) {
		a.cb.OnEnd(id, attrs)
	}
}

func (h *Hub) Fail(kind string, id registry.OpID, attrs capture.Attrs) {
	for _, a := range h.attached(kind) {
		a.cb.OnError(id, attrs)
	}
}

// Inject collects the headers every instrument of kind wants sent for
// operation id. It returns nil when there is nothing to inject.
func (h *Hub) Inject(kind string, id registry.OpID) http.Header {
	var out http.Header
	for _, a := range h.attached(kind) {
		if a.cb.OnInject == nil {
			continue
		}
		for k, v := range a.cb.OnInject(id) {
			if out == nil {
				out = make(http.Header, len(v))
			}
			// The first attached instrument wins a shared header.
			if _, set := out[k]; !set {
				out[k] = v
			}
		}
	}
	return out
}

// attached returns a snapshot so callbacks run without the lock held.
func (h *Hub) attached(kind string) []*attachment {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.byKind[kind]
}
