// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package grpc

import (
	"strings"

	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// Operation kinds the gRPC event sources report under.
const (
	ServerKind = "grpc.server"
	ClientKind = "grpc.client"
)

// Attribute keys exchanged with the gRPC event sources.
var (
	SystemKey        = string(semconv.RPCSystemKey)
	ServiceKey       = string(semconv.RPCServiceKey)
	MethodKey        = string(semconv.RPCMethodKey)
	StatusCodeKey    = string(semconv.RPCGRPCStatusCodeKey)
	ServerAddressKey = string(semconv.ServerAddressKey)
	ServerPortKey    = string(semconv.ServerPortKey)
	ClientAddressKey = string(semconv.ClientAddressKey)
	ClientPortKey    = string(semconv.ClientPortKey)
	ErrorTypeKey     = string(semconv.ErrorTypeKey)
)

const (
	// StatusMessageKey carries the status message of a finished call. It
	// feeds the span status description and is never recorded itself.
	StatusMessageKey = "rpc.grpc.status_message"
	// MessagesReceivedKey and MessagesSentKey count the messages exchanged
	// so far. Progress events carry them.
	MessagesReceivedKey = "rpc.grpc.messages.received"
	MessagesSentKey     = "rpc.grpc.messages.sent"
	// DurationKey carries the call duration in nanoseconds as measured by
	// the gRPC runtime.
	DurationKey = "rpc.grpc.duration_ns"
	// MetadataPrefix prefixes request metadata attributes.
	MetadataPrefix = "rpc.grpc.request.metadata."
)

// MetadataKey is the attribute key carrying the request metadata entry name.
func MetadataKey(name string) string {
	return MetadataPrefix + strings.ToLower(name)
}

// TraceContextKeys maps the W3C carrier fields onto request metadata
// attributes.
func TraceContextKeys() map[string]string {
	return map[string]string{
		"traceparent": MetadataKey("traceparent"),
		"tracestate":  MetadataKey("tracestate"),
	}
}
