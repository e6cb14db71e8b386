// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package client is the gRPC client event source. Its stats handler reports
// every call a client makes to the instruments attached for grpc.client
// operations and carries the trace context they inject in the request
// metadata.
package client

import (
	"context"
	"net"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/semconv/v1.37.0/rpcconv"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/stats"

	grpcconv "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api-semconv/instrumenter/grpc"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/adapter"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/capture"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/ctxstore"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/registry"
	grpcsemconv "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/instrumentation/grpc/semconv"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/instrumentation/shared"
)

const (
	instrumentationName = "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/instrumentation/grpc/client"
	instrumentationKey  = "GRPC"
)

type config struct {
	hub           *adapter.Hub
	store         *ctxstore.Store
	meterProvider metric.MeterProvider
}

// Option configures the client stats handler.
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

// WithMeterProvider sets the provider of the message size metrics. The
// default is the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *config) {
		if mp != nil {
			c.meterProvider = mp
		}
	}
}

type rpcStateKey struct{}

type rpcState struct {
	id          registry.OpID
	received    atomic.Int64
	sent        atomic.Int64
	remote      atomic.Pointer[net.Addr]
	metricAttrs attribute.Set
}

type handler struct {
	cfg config

	requestSize     rpcconv.ClientRequestSize
	responseSize    rpcconv.ClientResponseSize
	requestsPerRPC  rpcconv.ClientRequestsPerRPC
	responsesPerRPC rpcconv.ClientResponsesPerRPC
}

// NewHandler returns the stats handler reporting client calls.
func NewHandler(opts ...Option) stats.Handler {
	h := &handler{cfg: config{hub: adapter.DefaultHub(), store: ctxstore.Default(), meterProvider: otel.GetMeterProvider()}}
	for _, opt := range opts {
		opt(&h.cfg)
	}
	meter := h.cfg.meterProvider.Meter(instrumentationName, metric.WithSchemaURL(semconv.SchemaURL))

	logger := shared.Logger()
	var err error
	if h.requestSize, err = rpcconv.NewClientRequestSize(meter); err != nil {
		logger.Error("failed to create client request size metric", "error", err)
	}
	if h.responseSize, err = rpcconv.NewClientResponseSize(meter); err != nil {
		logger.Error("failed to create client response size metric", "error", err)
	}
	if h.requestsPerRPC, err = rpcconv.NewClientRequestsPerRPC(meter); err != nil {
		logger.Error("failed to create client requests per RPC metric", "error", err)
	}
	if h.responsesPerRPC, err = rpcconv.NewClientResponsesPerRPC(meter); err != nil {
		logger.Error("failed to create client responses per RPC metric", "error", err)
	}
	return h
}

// DialOption installs the stats handler on a client connection.
func DialOption(opts ...Option) grpc.DialOption {
	return grpc.WithStatsHandler(NewHandler(opts...))
}

// TagRPC starts the operation and adds the injected trace context to the
// outgoing metadata. A span carried by ctx wins over the goroutine's active
// context.
func (h *handler) TagRPC(ctx context.Context, info *stats.RPCTagInfo) context.Context {
	hub, kind := h.cfg.hub, grpcconv.ClientKind
	// Skip instrumentation for OTLP exporter endpoints to prevent infinite recursion
	if grpcsemconv.IsOTELExporterPath(info.FullMethodName) {
		return ctx
	}
	if !shared.Instrumented(instrumentationKey) || !hub.Enabled(kind) {
		return ctx
	}

	parent := h.cfg.store.Active()
	if trace.SpanContextFromContext(ctx).IsValid() {
		parent = ctx
	}
	service, method := grpcsemconv.ParseFullMethod(info.FullMethodName)
	st := &rpcState{
		id: hub.NextID(),
		metricAttrs: attribute.NewSet(
			semconv.RPCSystemGRPC,
			semconv.RPCService(service),
			semconv.RPCMethod(method),
		),
	}
	h.cfg.store.Run(parent, func() {
		hub.Start(kind, st.id, grpcsemconv.ClientStartAttrs(info.FullMethodName, hub.Requested(kind, capture.PhaseStart)))
	})

	ctx = grpcsemconv.InjectMetadata(ctx, hub.Inject(kind, st.id))
	return context.WithValue(ctx, rpcStateKey{}, st)
}

// HandleRPC processes RPC stats events
func (h *handler) HandleRPC(ctx context.Context, rs stats.RPCStats) {
	st, ok := ctx.Value(rpcStateKey{}).(*rpcState)
	if !ok {
		return
	}
	hub, kind := h.cfg.hub, grpcconv.ClientKind

	switch rs := rs.(type) {
	case *stats.OutHeader:
		if rs.RemoteAddr != nil {
			addr := rs.RemoteAddr
			st.remote.Store(&addr)
		}
	case *stats.OutPayload:
		sent := st.sent.Add(1)
		h.requestSize.RecordSet(ctx, int64(rs.Length), st.metricAttrs)
		hub.Progress(kind, st.id, grpcsemconv.ProgressAttrs(st.received.Load(), sent, hub.Requested(kind, capture.PhaseProgress)))
	case *stats.InPayload:
		received := st.received.Add(1)
		h.responseSize.RecordSet(ctx, int64(rs.Length), st.metricAttrs)
		hub.Progress(kind, st.id, grpcsemconv.ProgressAttrs(received, st.sent.Load(), hub.Requested(kind, capture.PhaseProgress)))
	case *stats.End:
		var remote net.Addr
		if p := st.remote.Load(); p != nil {
			remote = *p
		}
		hub.End(kind, st.id, grpcsemconv.EndAttrs(rs.Error, rs.EndTime.Sub(rs.BeginTime), remote, hub.Requested(kind, capture.PhaseEnd)))
		opt := metric.WithAttributeSet(st.metricAttrs)
		h.requestsPerRPC.Inst().Record(ctx, st.sent.Load(), opt)
		h.responsesPerRPC.Inst().Record(ctx, st.received.Load(), opt)
	}
}

// TagConn is called when a new connection is established
func (h *handler) TagConn(ctx context.Context, _ *stats.ConnTagInfo) context.Context {
	return ctx
}

// HandleConn processes connection stats
func (h *handler) HandleConn(context.Context, stats.ConnStats) {
	// no-op
}
