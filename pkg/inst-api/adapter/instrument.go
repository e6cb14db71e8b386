// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package adapter exposes a lifecycle bridge in the callback shape native
// event sources call into.
package adapter

import (
	"net/http"
	"slices"

	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/bridge"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/capture"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/registry"
)

// PhaseFunc receives one phase of an operation.
type PhaseFunc func(id registry.OpID, attrs capture.Attrs)

// Callbacks is the table a native event source invokes. OnInject returns nil
// when nothing should be injected for the operation.
type Callbacks struct {
	OnStart    PhaseFunc
	OnProgress PhaseFunc
	OnEnd      PhaseFunc
	OnError    PhaseFunc
	OnInject   func(id registry.OpID) http.Header
}

// Instrument binds a capture policy to its lifecycle bridge.
type Instrument struct {
	policy *capture.Policy
	bridge *bridge.Bridge
}

// New builds the bridge for policy and wraps it.
func New(policy *capture.Policy, opts ...bridge.Option) (*Instrument, error) {
	b, err := bridge.New(policy, opts...)
	if err != nil {
		return nil, err
	}
	return &Instrument{policy: policy, bridge: b}, nil
}

// MustNew is New that panics on error.
func MustNew(policy *capture.Policy, opts ...bridge.Option) *Instrument {
	inst, err := New(policy, opts...)
	if err != nil {
		panic(err)
	}
	return inst
}

func (i *Instrument) Name() string            { return i.policy.Name() }
func (i *Instrument) Policy() *capture.Policy { return i.policy }
func (i *Instrument) Bridge() *bridge.Bridge  { return i.bridge }

// Callbacks returns the phase table forwarding into the bridge. Injection is
// left nil when the policy names no header to inject.
func (i *Instrument) Callbacks() Callbacks {
	cb := Callbacks{
		OnStart:    i.bridge.Begin,
		OnProgress: i.bridge.Progress,
		OnEnd:      i.bridge.End,
		OnError:    i.bridge.Error,
	}
	if len(i.injectFields()) > 0 {
		cb.OnInject = i.InjectHeaders
	}
	return cb
}

// RequestedAttributes lists the attribute keys the native layer must compute
// for phase. Anything else would be dropped by the bridge.
func (i *Instrument) RequestedAttributes(phase capture.Phase) []string {
	return i.policy.RequestedAttributes(phase)
}

// InjectHeaders renders the trace context of operation id into the headers
// the policy asks to inject: request headers for outbound operations,
// response headers for inbound ones. It returns nil when injection is
// disabled or the operation has no span.
func (i *Instrument) InjectHeaders(id registry.OpID) http.Header {
	fields := i.injectFields()
	values, ok := i.bridge.Inject(id, fields)
	if !ok {
		return nil
	}
	h := make(http.Header, len(values))
	for _, f := range fields {
		if v, ok := values[f]; ok {
			h.Set(f, v)
		}
	}
	return h
}

// Close ends every operation still in flight.
func (i *Instrument) Close() {
	i.bridge.Close()
}

func (i *Instrument) injectFields() []string {
	inject := i.policy.Inject()
	switch i.policy.Kind() {
	case capture.KindOutbound:
		return inject.Request
	case capture.KindInbound:
		return inject.Response
	default:
		out := make([]string, 0, len(inject.Request)+len(inject.Response))
		out = append(out, inject.Request...)
		for _, f := range inject.Response {
			if !slices.Contains(out, f) {
				out = append(out, f)
			}
		}
		return out
	}
}
