// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package server is the net/http server event source. It reports every
// request a handler serves to the instruments attached for
// nethttp.server operations.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	httpconv "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api-semconv/instrumenter/http"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/adapter"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/bridge"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/capture"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/ctxstore"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/instrumentation/nethttp/semconv"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/instrumentation/shared"
)

const instrumentationKey = "NETHTTP"

type config struct {
	hub    *adapter.Hub
	store  *ctxstore.Store
	server string
}

// Option configures Middleware.
type Option func(*config)

// WithHub sets the hub events are dispatched to. The default is
// adapter.DefaultHub().
func WithHub(h *adapter.Hub) Option {
	return func(c *config) {
		if h != nil {
			c.hub = h
		}
	}
}

// WithStore sets the context store shared with the attached bridges. The
// default is ctxstore.Default().
func WithStore(s *ctxstore.Store) Option {
	return func(c *config) {
		if s != nil {
			c.store = s
		}
	}
}

// WithServerName sets the primary server name reported as server.address
// instead of the request Host.
func WithServerName(name string) Option {
	return func(c *config) {
		c.server = name
	}
}

type handler struct {
	next http.Handler
	cfg  config
}

// Middleware wraps next so that every request it serves becomes an inbound
// operation. While next runs, the request context carries the server span.
//
// When next is a ServeMux, the matched pattern becomes http.route and the
// span is renamed after it. A request whose context is canceled or times out
// before next returns ends with an error instead of its status code.
func Middleware(next http.Handler, opts ...Option) http.Handler {
	cfg := config{hub: adapter.DefaultHub(), store: ctxstore.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &handler{next: next, cfg: cfg}
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !shared.Instrumented(instrumentationKey) || !h.cfg.hub.Enabled(httpconv.ServerKind) {
		h.next.ServeHTTP(w, r)
		return
	}
	h.cfg.store.Run(r.Context(), func() { h.serve(w, r) })
}

func (h *handler) serve(w http.ResponseWriter, r *http.Request) {
	hub, kind := h.cfg.hub, httpconv.ServerKind
	id := hub.NextID()
	begin := time.Now()
	hub.Start(kind, id, semconv.ServerRequestAttrs(h.cfg.server, r, hub.Requested(kind, capture.PhaseStart)))

	// The inbound bridge made the server span active.
	reqCtx := r.Context()
	r = r.WithContext(h.cfg.store.Active())

	rw := &writerWrapper{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
		beforeHeader: func(hdr http.Header) {
			for k, v := range hub.Inject(kind, id) {
				hdr[k] = v
			}
		},
	}
	var body *bodyWrapper
	if r.Body != nil && r.Body != http.NoBody {
		body = &bodyWrapper{ReadCloser: r.Body}
		r.Body = body
	}

	defer func() {
		if rec := recover(); rec != nil {
			hub.Fail(kind, id, panicAttrs(rec))
			panic(rec)
		}
	}()
	h.next.ServeHTTP(rw, r)
	rw.finish()

	if err := reqCtx.Err(); err != nil {
		hub.Fail(kind, id, abortAttrs(err))
		return
	}

	resp := semconv.ServerResponse{
		StatusCode: rw.statusCode,
		WriteBytes: rw.written,
		Header:     rw.Header(),
		Route:      r.Pattern,
		Elapsed:    time.Since(begin),
	}
	if body != nil {
		resp.ReadBytes = body.read.Load()
	}
	if route := semconv.HTTPRoute(r.Pattern); route != "" {
		method, _ := semconv.Method(r.Method)
		trace.SpanFromContext(r.Context()).SetName(httpconv.ServerSpanName(capture.Attrs{
			httpconv.MethodKey: method,
			httpconv.RouteKey:  route,
		}))
	}
	hub.End(kind, id, semconv.ServerResponseAttrs(resp, hub.Requested(kind, capture.PhaseEnd)))
}

// abortAttrs describes a request the client gave up on or that outlived its
// deadline.
func abortAttrs(err error) capture.Attrs {
	msg := "Request aborted"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "Request timeout"
	}
	return capture.Attrs{
		bridge.ErrorTypeKey:    "Error",
		bridge.ErrorMessageKey: msg,
	}
}

func panicAttrs(rec any) capture.Attrs {
	if err, ok := rec.(error); ok {
		return semconv.ErrorAttrs(err)
	}
	return capture.Attrs{
		bridge.ErrorTypeKey:    fmt.Sprintf("%T", rec),
		bridge.ErrorMessageKey: fmt.Sprint(rec),
	}
}
