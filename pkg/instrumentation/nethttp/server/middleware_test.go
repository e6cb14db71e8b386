// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	httpconv "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api-semconv/instrumenter/http"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/adapter"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/bridge"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/ctxstore"
)

const incomingTraceparent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0bb902b7-01"

type harness struct {
	hub    *adapter.Hub
	store  *ctxstore.Store
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, httpconv.Config{
		Version:         "test",
		RequestHeaders:  []string{"X-Request-Id"},
		ResponseHeaders: []string{"Content-Type"},
		Propagator:      propagation.TraceContext{},
	})
}

func newHarnessWith(t *testing.T, cfg httpconv.Config) *harness {
	t.Helper()
	h := &harness{
		hub:    adapter.NewHub(),
		store:  ctxstore.New(),
		spans:  tracetest.NewSpanRecorder(),
		reader: sdkmetric.NewManualReader(),
	}
	policy, err := httpconv.ServerPolicy(cfg)
	require.NoError(t, err)
	inst, err := adapter.New(policy,
		bridge.WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(h.spans))),
		bridge.WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(h.reader))),
		bridge.WithStore(h.store),
		bridge.WithPropagator(propagation.TraceContext{}),
		bridge.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	_, err = h.hub.Attach(inst)
	require.NoError(t, err)
	return h
}

func (h *harness) serve(handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	Middleware(handler, WithHub(h.hub), WithStore(h.store)).ServeHTTP(rec, req)
	return rec
}

func (h *harness) histogram(t *testing.T, name string) *metricdata.Histogram[float64] {
	t.Helper()
	rm := metricdata.ResourceMetrics{}
	require.NoError(t, h.reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				data, ok := m.Data.(metricdata.Histogram[float64])
				require.True(t, ok)
				assert.Equal(t, "s", m.Unit)
				return &data
			}
		}
	}
	return nil
}

func attrMap(kvs []attribute.KeyValue) map[string]attribute.Value {
	out := make(map[string]attribute.Value, len(kvs))
	for _, kv := range kvs {
		out[string(kv.Key)] = kv.Value
	}
	return out
}

func TestMiddlewareRecordsServerSpan(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodPost, "http://example.com/api/data?x=1", strings.NewReader("hello"))
	req.Header.Set("X-Request-Id", "abc")

	var seen trace.SpanContext
	rec := h.serve(func(w http.ResponseWriter, r *http.Request) {
		seen = trace.SpanContextFromContext(r.Context())
		_, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("created"))
	}, req)

	require.Equal(t, http.StatusOK, rec.Code)
	spans := h.spans.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "POST", span.Name())
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())
	assert.Equal(t, codes.Ok, span.Status().Code)
	assert.Equal(t, span.SpanContext(), seen, "handler should see the server span")

	attrs := attrMap(span.Attributes())
	assert.Equal(t, "POST", attrs[httpconv.MethodKey].AsString())
	assert.Equal(t, "/api/data", attrs[httpconv.URLPathKey].AsString())
	assert.Equal(t, "x=1", attrs[httpconv.URLQueryKey].AsString())
	assert.Equal(t, "example.com", attrs[httpconv.ServerAddressKey].AsString())
	assert.Equal(t, "abc", attrs["http.request.header.x-request-id"].AsString())
	assert.Equal(t, "text/plain", attrs["http.response.header.content-type"].AsString())
	assert.Equal(t, int64(200), attrs[httpconv.StatusCodeKey].AsInt64())
	assert.Equal(t, int64(5), attrs[httpconv.RequestBodySizeKey].AsInt64())
	assert.Equal(t, int64(7), attrs[httpconv.BodySizeKey].AsInt64())

	assert.Equal(t, 0, h.store.Len(), "request scope should be released")
}

func TestMiddlewarePropagation(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "http://example.com/path", nil)
	req.Header.Set("traceparent", incomingTraceparent)

	rec := h.serve(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, req)

	spans := h.spans.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0bb902b7", span.Parent().SpanID().String())
	assert.True(t, span.Parent().IsRemote())

	// The response announces the server span to the caller.
	got := rec.Header().Get("traceparent")
	assert.Equal(t, "00-"+span.SpanContext().TraceID().String()+"-"+span.SpanContext().SpanID().String()+"-01", got)
}

func TestMiddlewareInjectsWhenHandlerWritesNothing(t *testing.T) {
	h := newHarness(t)
	rec := h.serve(func(http.ResponseWriter, *http.Request) {}, httptest.NewRequest(http.MethodGet, "/", nil))

	spans := h.spans.Ended()
	require.Len(t, spans, 1)
	assert.Contains(t, rec.Header().Get("traceparent"), spans[0].SpanContext().SpanID().String())
}

func TestMiddlewareServerErrorStatus(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		want    codes.Code
		message string
	}{
		{name: "client error is not a server failure", code: http.StatusNotFound, want: codes.Ok},
		{name: "server error", code: http.StatusServiceUnavailable, want: codes.Error, message: "HTTP 503"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.serve(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.code)
			}, httptest.NewRequest(http.MethodGet, "/", nil))

			spans := h.spans.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.want, spans[0].Status().Code)
			assert.Equal(t, tt.message, spans[0].Status().Description)
		})
	}
}

func TestMiddlewarePanicFailsOperation(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("boom")

	assert.PanicsWithValue(t, boom, func() {
		h.serve(func(http.ResponseWriter, *http.Request) {
			panic(boom)
		}, httptest.NewRequest(http.MethodGet, "/", nil))
	})

	spans := h.spans.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "boom", span.Status().Description)
	require.Len(t, span.Events(), 1)
	assert.Equal(t, "exception", span.Events()[0].Name)
	assert.Equal(t, 0, h.hub.Instruments(httpconv.ServerKind)[0].Bridge().InFlight())
}

func TestPanicAttrs(t *testing.T) {
	attrs := panicAttrs("plain")
	assert.Equal(t, "string", attrs[bridge.ErrorTypeKey])
	assert.Equal(t, "plain", attrs[bridge.ErrorMessageKey])

	attrs = panicAttrs(errors.New("wrapped"))
	assert.Equal(t, "*errors.errorString", attrs[bridge.ErrorTypeKey])
}

func TestMiddlewareRecordsMetrics(t *testing.T) {
	h := newHarness(t)
	for range 3 {
		h.serve(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}, httptest.NewRequest(http.MethodGet, "/", nil))
	}

	hist := h.histogram(t, "http.server.request.duration")
	require.NotNil(t, hist, "duration histogram not recorded")
	require.Len(t, hist.DataPoints, 1)
	dp := hist.DataPoints[0]
	assert.Equal(t, uint64(3), dp.Count)
	status, ok := dp.Attributes.Value(attribute.Key(httpconv.StatusCodeKey))
	require.True(t, ok)
	assert.Equal(t, int64(http.StatusAccepted), status.AsInt64())
	method, ok := dp.Attributes.Value(attribute.Key(httpconv.MethodKey))
	require.True(t, ok)
	assert.Equal(t, "GET", method.AsString())
}

func TestMiddlewareDisabled(t *testing.T) {
	t.Run("by environment", func(t *testing.T) {
		t.Setenv("OTEL_GO_DISABLED_INSTRUMENTATIONS", "nethttp")
		h := newHarness(t)
		called := false
		rec := h.serve(func(w http.ResponseWriter, _ *http.Request) {
			called = true
			_, isWrapped := w.(*writerWrapper)
			assert.False(t, isWrapped)
		}, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.True(t, called)
		assert.Empty(t, h.spans.Ended())
		assert.Empty(t, rec.Header().Get("traceparent"))
	})

	t.Run("nothing attached", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Middleware(http.NotFoundHandler(), WithHub(adapter.NewHub())).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, rec.Header().Get("traceparent"))
	})
}

func TestMiddlewareRouteFromServeMux(t *testing.T) {
	h := newHarness(t)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.PathValue("id"))
	})

	rec := h.serve(mux.ServeHTTP, httptest.NewRequest(http.MethodGet, "/users/42", nil))
	require.Equal(t, "42", rec.Body.String())

	spans := h.spans.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /users/{id}", spans[0].Name())
	assert.Equal(t, "/users/{id}", attrMap(spans[0].Attributes())[httpconv.RouteKey].AsString())

	hist := h.histogram(t, "http.server.request.duration")
	require.NotNil(t, hist)
	require.Len(t, hist.DataPoints, 1)
	route, ok := hist.DataPoints[0].Attributes.Value(attribute.Key(httpconv.RouteKey))
	require.True(t, ok)
	assert.Equal(t, "/users/{id}", route.AsString())
}

func TestMiddlewareCanceledRequest(t *testing.T) {
	tests := []struct {
		name    string
		ctx     func() (context.Context, context.CancelFunc)
		message string
	}{
		{
			name:    "client went away",
			ctx:     func() (context.Context, context.CancelFunc) { return context.WithCancel(context.Background()) },
			message: "Request aborted",
		},
		{
			name: "deadline passed",
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
			},
			message: "Request timeout",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx, cancel := tt.ctx()
			defer cancel()
			req := httptest.NewRequest(http.MethodGet, "/slow", nil).WithContext(ctx)

			h.serve(func(w http.ResponseWriter, r *http.Request) {
				cancel()
				<-r.Context().Done()
				w.WriteHeader(http.StatusOK)
			}, req)

			spans := h.spans.Ended()
			require.Len(t, spans, 1)
			span := spans[0]
			assert.Equal(t, codes.Error, span.Status().Code)
			assert.Equal(t, tt.message, span.Status().Description)
			require.Len(t, span.Events(), 1)
			assert.Equal(t, "exception", span.Events()[0].Name)
			assert.Nil(t, h.histogram(t, "http.server.request.duration"), "failed requests record no duration")
			assert.Equal(t, 0, h.store.Len())
		})
	}
}

func TestMiddlewareNativeDuration(t *testing.T) {
	h := newHarnessWith(t, httpconv.Config{NativeDuration: true})
	for range 2 {
		h.serve(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}, httptest.NewRequest(http.MethodGet, "/", nil))
	}

	hist := h.histogram(t, "http.server.request.duration")
	require.NotNil(t, hist, "native durations must feed the histogram")
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)

	spans := h.spans.Ended()
	require.Len(t, spans, 2)
	assert.NotContains(t, attrMap(spans[0].Attributes()), httpconv.DurationKey)
}
