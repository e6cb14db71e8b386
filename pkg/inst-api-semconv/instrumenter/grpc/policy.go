// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package grpc holds the capture policies of gRPC server and client calls.
package grpc

import (
	"go.opentelemetry.io/otel/propagation"

	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/capture"
)

// Config tunes a gRPC policy. The zero value injects trace context and takes
// durations from the gRPC runtime.
type Config struct {
	Version string
	// DisableInjection opts the client out of trace-context injection.
	DisableInjection bool
	// LocalDuration measures durations with the bridge clock instead of the
	// begin and end times reported by grpc-go.
	LocalDuration bool
	// Propagator extracts the remote parent on the server side. Nil means
	// the global propagator.
	Propagator propagation.TextMapPropagator
}

// TraceContextMetadata are the W3C entries injected by default.
var TraceContextMetadata = []string{"traceparent", "tracestate"}

// ServerPolicy is the capture policy of calls handled by a gRPC server.
func ServerPolicy(cfg Config) (*capture.Policy, error) {
	b := capture.NewBuilder(ServerKind, capture.KindInbound).
		SetVersion(cfg.Version).
		TraceAttributes(capture.PhaseStart, SystemKey, ServiceKey, MethodKey, ClientAddressKey, ClientPortKey).
		TraceAttributes(capture.PhaseProgress, MessagesReceivedKey, MessagesSentKey).
		TraceAttributes(capture.PhaseEnd, StatusCodeKey).
		TraceAttributes(capture.PhaseError, ErrorTypeKey).
		MetricDimensions(capture.PhaseStart, SystemKey, ServiceKey, MethodKey).
		MetricDimensions(capture.PhaseEnd, StatusCodeKey).
		RequestOnly(capture.PhaseStart, capture.ParentKeys(TraceContextKeys())...).
		RequestOnly(capture.PhaseEnd, StatusMessageKey).
		SetNameFunc(SpanName).
		SetIsErrorFunc(ServerStatus).
		SetParentFunc(capture.TraceContextParent(cfg.Propagator, TraceContextKeys())).
		SetMetricNames(capture.MetricNames{
			Duration: "rpc.server.call.duration",
			Count:    "rpc.server.call.count",
		})
	applyDuration(b, cfg)
	return b.Build()
}

// ClientPolicy is the capture policy of calls made by a gRPC client.
func ClientPolicy(cfg Config) (*capture.Policy, error) {
	b := capture.NewBuilder(ClientKind, capture.KindOutbound).
		SetVersion(cfg.Version).
		TraceAttributes(capture.PhaseStart, SystemKey, ServiceKey, MethodKey).
		TraceAttributes(capture.PhaseProgress, MessagesReceivedKey, MessagesSentKey).
		TraceAttributes(capture.PhaseEnd, StatusCodeKey, ServerAddressKey, ServerPortKey).
		TraceAttributes(capture.PhaseError, ErrorTypeKey).
		MetricDimensions(capture.PhaseStart, SystemKey, ServiceKey, MethodKey).
		MetricDimensions(capture.PhaseEnd, StatusCodeKey, ServerAddressKey).
		RequestOnly(capture.PhaseEnd, StatusMessageKey).
		SetNameFunc(SpanName).
		SetIsErrorFunc(ClientStatus).
		SetMetricNames(capture.MetricNames{
			Duration: "rpc.client.call.duration",
			Count:    "rpc.client.call.count",
		})
	if !cfg.DisableInjection {
		b.InjectHeaders(capture.Headers{Request: TraceContextMetadata})
	}
	applyDuration(b, cfg)
	return b.Build()
}

func applyDuration(b *capture.Builder, cfg Config) {
	if cfg.LocalDuration {
		return
	}
	b.SetDuration(capture.DurationNativeAtEnd, DurationKey)
}
