// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package client is the net/http client event source. A Transport reports
// every round trip to the instruments attached for nethttp.client
// operations and carries the trace context they inject.
package client

import (
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	httpconv "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api-semconv/instrumenter/http"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/adapter"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/capture"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/ctxstore"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/instrumentation/nethttp/semconv"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/instrumentation/shared"
)

const (
	otelExporterPrefix = "OTel OTLP Exporter Go"
	instrumentationKey = "NETHTTP"
)

// Option configures a Transport.
type Option func(*Transport)

// WithHub sets the hub events are dispatched to. The default is
// adapter.DefaultHub().
func WithHub(h *adapter.Hub) Option {
	return func(t *Transport) {
		if h != nil {
			t.hub = h
		}
	}
}

// WithStore sets the context store shared with the attached bridges. The
// default is ctxstore.Default().
func WithStore(s *ctxstore.Store) Option {
	return func(t *Transport) {
		if s != nil {
			t.store = s
		}
	}
}

// Transport is an http.RoundTripper reporting outbound operations. The
// operation ends when the response headers arrive or the round trip fails.
type Transport struct {
	base  http.RoundTripper
	hub   *adapter.Hub
	store *ctxstore.Store
}

var _ http.RoundTripper = (*Transport)(nil)

// NewTransport wraps base, or http.DefaultTransport when base is nil.
func NewTransport(base http.RoundTripper, opts ...Option) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	t := &Transport{base: base, hub: adapter.DefaultHub(), store: ctxstore.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Client returns a copy of c, or of a zero client when c is nil, whose
// transport reports through a Transport.
func Client(c *http.Client, opts ...Option) *http.Client {
	var out http.Client
	if c != nil {
		out = *c
	}
	out.Transport = NewTransport(out.Transport, opts...)
	return &out
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.enabled(req) {
		return t.base.RoundTrip(req)
	}

	// A span carried by the request wins over the goroutine's active context.
	parent := t.store.Active()
	if trace.SpanContextFromContext(req.Context()).IsValid() {
		parent = req.Context()
	}
	var (
		resp *http.Response
		err  error
	)
	t.store.Run(parent, func() { resp, err = t.roundTrip(req) })
	return resp, err
}

func (t *Transport) roundTrip(req *http.Request) (*http.Response, error) {
	hub, kind := t.hub, httpconv.ClientKind
	id := hub.NextID()
	hub.Start(kind, id, semconv.ClientRequestAttrs(req, hub.Requested(kind, capture.PhaseStart)))

	if hdr := hub.Inject(kind, id); len(hdr) > 0 {
		// RoundTrippers must not modify the caller's request.
		req = req.Clone(req.Context())
		for k, v := range hdr {
			req.Header[k] = v
		}
	}

	begin := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		shared.Logger().Debug("http round trip failed", "method", req.Method, "error", err)
		hub.Fail(kind, id, semconv.ErrorAttrs(err))
		return nil, err
	}
	hub.End(kind, id, semconv.ClientResponseAttrs(resp, time.Since(begin), hub.Requested(kind, capture.PhaseEnd)))
	return resp, nil
}

func (t *Transport) enabled(req *http.Request) bool {
	if !shared.Instrumented(instrumentationKey) || !t.hub.Enabled(httpconv.ClientKind) {
		return false
	}
	// Filter out OTel exporter requests to prevent infinite loops
	if strings.HasPrefix(req.Header.Get("User-Agent"), otelExporterPrefix) {
		shared.Logger().Debug("skipping OTel exporter request", "user_agent", req.Header.Get("User-Agent"))
		return false
	}
	return true
}

