// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package server is the gRPC server event source. Its stats handler reports
// every call a server handles to the instruments attached for grpc.server
// operations.
package server

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
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/stats"
	"google.golang.org/grpc/status"

	grpcconv "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api-semconv/instrumenter/grpc"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/adapter"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/capture"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/ctxstore"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/registry"
	grpcsemconv "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/instrumentation/grpc/semconv"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/instrumentation/shared"
)

const (
	instrumentationName = "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/instrumentation/grpc/server"
	instrumentationKey  = "GRPC"
)

type config struct {
	hub           *adapter.Hub
	store         *ctxstore.Store
	meterProvider metric.MeterProvider
}

// Option configures the server stats handler.
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

func newConfig(opts []Option) config {
	cfg := config{hub: adapter.DefaultHub(), store: ctxstore.Default(), meterProvider: otel.GetMeterProvider()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

type rpcStateKey struct{}

type rpcState struct {
	id          registry.OpID
	received    atomic.Int64
	sent        atomic.Int64
	metricAttrs attribute.Set
}

type handler struct {
	cfg config

	requestSize     rpcconv.ServerRequestSize
	responseSize    rpcconv.ServerResponseSize
	requestsPerRPC  rpcconv.ServerRequestsPerRPC
	responsesPerRPC rpcconv.ServerResponsesPerRPC
}

// NewHandler returns the stats handler reporting server calls.
func NewHandler(opts ...Option) stats.Handler {
	h := &handler{cfg: newConfig(opts)}
	meter := h.cfg.meterProvider.Meter(instrumentationName, metric.WithSchemaURL(semconv.SchemaURL))

	logger := shared.Logger()
	var err error
	if h.requestSize, err = rpcconv.NewServerRequestSize(meter); err != nil {
		logger.Error("failed to create server request size metric", "error", err)
	}
	if h.responseSize, err = rpcconv.NewServerResponseSize(meter); err != nil {
		logger.Error("failed to create server response size metric", "error", err)
	}
	if h.requestsPerRPC, err = rpcconv.NewServerRequestsPerRPC(meter); err != nil {
		logger.Error("failed to create server requests per RPC metric", "error", err)
	}
	if h.responsesPerRPC, err = rpcconv.NewServerResponsesPerRPC(meter); err != nil {
		logger.Error("failed to create server responses per RPC metric", "error", err)
	}
	return h
}

// ServerOptions installs the stats handler together with interceptors that
// make the server span the active context of the handler goroutine, so code
// that does not thread ctx through still parents its operations correctly.
//
// grpc-go reports no end event for methods it cannot route, so ServerOptions
// also installs an unknown-service handler answering Unimplemented. Callers
// with their own unknown-service handler should pass it after these options.
func ServerOptions(opts ...Option) []grpc.ServerOption {
	cfg := newConfig(opts)
	return []grpc.ServerOption{
		grpc.StatsHandler(NewHandler(opts...)),
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(cfg.store)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor(cfg.store)),
		grpc.UnknownServiceHandler(unimplemented),
	}
}

func unimplemented(_ any, stream grpc.ServerStream) error {
	fullMethod, _ := grpc.MethodFromServerStream(stream)
	service, method := grpcsemconv.ParseFullMethod(fullMethod)
	return status.Errorf(codes.Unimplemented, "unknown method %s for service %s", method, service)
}

// UnaryServerInterceptor runs unary handlers with their call context active
// in store.
func UnaryServerInterceptor(store *ctxstore.Store) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		type result struct {
			resp any
			err  error
		}
		r := ctxstore.RunValue(store, ctx, func() result {
			resp, err := next(ctx, req)
			return result{resp, err}
		})
		return r.resp, r.err
	}
}

// StreamServerInterceptor runs streaming handlers with their call context
// active in store.
func StreamServerInterceptor(store *ctxstore.Store) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, next grpc.StreamHandler) error {
		return ctxstore.RunValue(store, ss.Context(), func() error {
			return next(srv, ss)
		})
	}
}

// TagRPC starts the operation. It runs on a transport goroutine, so the
// server span is only made active for the extent of the start phase.
func (h *handler) TagRPC(ctx context.Context, info *stats.RPCTagInfo) context.Context {
	hub, kind := h.cfg.hub, grpcconv.ServerKind
	// Skip instrumentation for OTLP exporter endpoints to prevent infinite recursion
	if grpcsemconv.IsOTELExporterPath(info.FullMethodName) {
		return ctx
	}
	if !shared.Instrumented(instrumentationKey) || !hub.Enabled(kind) {
		return ctx
	}

	md, _ := metadata.FromIncomingContext(ctx)
	var remote net.Addr
	if p, ok := peer.FromContext(ctx); ok {
		remote = p.Addr
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
	h.cfg.store.Run(ctx, func() {
		hub.Start(kind, st.id, grpcsemconv.ServerStartAttrs(info.FullMethodName, md, remote, hub.Requested(kind, capture.PhaseStart)))
		// The inbound bridge made the server span active.
		if active := h.cfg.store.Active(); trace.SpanContextFromContext(active).IsValid() {
			ctx = active
		}
	})
	return context.WithValue(ctx, rpcStateKey{}, st)
}

// HandleRPC processes RPC stats events
func (h *handler) HandleRPC(ctx context.Context, rs stats.RPCStats) {
	st, ok := ctx.Value(rpcStateKey{}).(*rpcState)
	if !ok {
		return
	}
	hub, kind := h.cfg.hub, grpcconv.ServerKind

	switch rs := rs.(type) {
	case *stats.InPayload:
		received := st.received.Add(1)
		h.requestSize.RecordSet(ctx, int64(rs.Length), st.metricAttrs)
		hub.Progress(kind, st.id, grpcsemconv.ProgressAttrs(received, st.sent.Load(), hub.Requested(kind, capture.PhaseProgress)))
	case *stats.OutPayload:
		sent := st.sent.Add(1)
		h.responseSize.RecordSet(ctx, int64(rs.Length), st.metricAttrs)
		hub.Progress(kind, st.id, grpcsemconv.ProgressAttrs(st.received.Load(), sent, hub.Requested(kind, capture.PhaseProgress)))
	case *stats.End:
		hub.End(kind, st.id, grpcsemconv.EndAttrs(rs.Error, rs.EndTime.Sub(rs.BeginTime), nil, hub.Requested(kind, capture.PhaseEnd)))
		opt := metric.WithAttributeSet(st.metricAttrs)
		h.requestsPerRPC.Inst().Record(ctx, st.received.Load(), opt)
		h.responsesPerRPC.Inst().Record(ctx, st.sent.Load(), opt)
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
