// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package http holds the capture policies of HTTP server and client
// operations.
package http

import (
	"go.opentelemetry.io/otel/propagation"

	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/capture"
)

// Config tunes an HTTP policy. The zero value captures no headers, injects
// trace context and measures durations on the bridge clock.
type Config struct {
	Version string
	// RequestHeaders and ResponseHeaders are recorded as
	// http.request.header.<name> and http.response.header.<name>.
	RequestHeaders  []string
	ResponseHeaders []string
	// DisableInjection opts the instrument out of trace-context injection.
	DisableInjection bool
	// NativeDuration takes the duration from the nanoseconds the event
	// source reports under DurationKey at end.
	NativeDuration bool
	// Propagator extracts the remote parent on the server side. Nil means
	// the global propagator.
	Propagator propagation.TextMapPropagator
}

// TraceContextHeaders are the W3C headers injected by default.
var TraceContextHeaders = []string{"traceparent", "tracestate"}

// ServerPolicy is the capture policy of inbound HTTP requests.
func ServerPolicy(cfg Config) (*capture.Policy, error) {
	b := capture.NewBuilder(ServerKind, capture.KindInbound).
		SetVersion(cfg.Version).
		TraceAttributes(capture.PhaseStart,
			MethodKey, MethodOriginalKey, URLPathKey, URLQueryKey, URLSchemeKey,
			ServerAddressKey, ServerPortKey, ClientAddressKey, PeerAddressKey, PeerPortKey,
			UserAgentKey, ProtocolNameKey, ProtocolVersionKey, RouteKey).
		TraceAttributes(capture.PhaseEnd, StatusCodeKey, RequestBodySizeKey, BodySizeKey, ErrorTypeKey, RouteKey).
		TraceAttributes(capture.PhaseError, ErrorTypeKey).
		MetricDimensions(capture.PhaseStart,
			MethodKey, URLSchemeKey, ServerAddressKey, ServerPortKey,
			ProtocolNameKey, ProtocolVersionKey, RouteKey).
		// ServeMux sets the pattern only when it dispatches, so the route
		// usually arrives at end.
		MetricDimensions(capture.PhaseEnd, StatusCodeKey, ErrorTypeKey, RouteKey).
		SetNameFunc(ServerSpanName).
		SetIsErrorFunc(ServerStatus).
		SetParentFunc(capture.TraceContextParent(cfg.Propagator, capture.W3CKeys())).
		RequestOnly(capture.PhaseStart, capture.ParentKeys(capture.W3CKeys())...).
		SetMetricNames(capture.MetricNames{
			Duration: "http.server.request.duration",
			Count:    "http.server.request.count",
		}).
		CaptureHeaders(capture.Headers{Request: cfg.RequestHeaders, Response: cfg.ResponseHeaders})
	if !cfg.DisableInjection {
		b.InjectHeaders(capture.Headers{Response: TraceContextHeaders})
	}
	applyDuration(b, cfg)
	return b.Build()
}

// ClientPolicy is the capture policy of outbound HTTP requests.
func ClientPolicy(cfg Config) (*capture.Policy, error) {
	b := capture.NewBuilder(ClientKind, capture.KindOutbound).
		SetVersion(cfg.Version).
		TraceAttributes(capture.PhaseStart,
			MethodKey, MethodOriginalKey, URLFullKey, ServerAddressKey, ServerPortKey,
			ResendCountKey, UserAgentKey, ProtocolNameKey, ProtocolVersionKey).
		TraceAttributes(capture.PhaseEnd, StatusCodeKey, RequestBodySizeKey, BodySizeKey, ErrorTypeKey).
		TraceAttributes(capture.PhaseError, ErrorTypeKey).
		MetricDimensions(capture.PhaseStart,
			MethodKey, ServerAddressKey, ServerPortKey, ProtocolNameKey, ProtocolVersionKey, URLSchemeKey).
		MetricDimensions(capture.PhaseEnd, StatusCodeKey, ErrorTypeKey).
		SetNameFunc(ClientSpanName).
		SetIsErrorFunc(ClientStatus).
		SetMetricNames(capture.MetricNames{
			Duration: "http.client.request.duration",
			Count:    "http.client.request.count",
		}).
		CaptureHeaders(capture.Headers{Request: cfg.RequestHeaders, Response: cfg.ResponseHeaders})
	if !cfg.DisableInjection {
		b.InjectHeaders(capture.Headers{Request: TraceContextHeaders})
	}
	applyDuration(b, cfg)
	return b.Build()
}

func applyDuration(b *capture.Builder, cfg Config) {
	if cfg.NativeDuration {
		b.SetDuration(capture.DurationNativeAtEnd, DurationKey)
	}
}
