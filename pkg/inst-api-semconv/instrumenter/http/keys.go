// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// Operation kinds the net/http event sources report under.
const (
	ServerKind = "nethttp.server"
	ClientKind = "nethttp.client"
)

// Attribute keys exchanged with the net/http event sources.
var (
	MethodKey          = string(semconv.HTTPRequestMethodKey)
	MethodOriginalKey  = string(semconv.HTTPRequestMethodOriginalKey)
	RouteKey           = string(semconv.HTTPRouteKey)
	StatusCodeKey      = string(semconv.HTTPResponseStatusCodeKey)
	RequestBodySizeKey = string(semconv.HTTPRequestBodySizeKey)
	BodySizeKey        = string(semconv.HTTPResponseBodySizeKey)
	ResendCountKey     = string(semconv.HTTPRequestResendCountKey)
	URLFullKey         = string(semconv.URLFullKey)
	URLPathKey         = string(semconv.URLPathKey)
	URLQueryKey        = string(semconv.URLQueryKey)
	URLSchemeKey       = string(semconv.URLSchemeKey)
	ServerAddressKey   = string(semconv.ServerAddressKey)
	ServerPortKey      = string(semconv.ServerPortKey)
	ClientAddressKey   = string(semconv.ClientAddressKey)
	PeerAddressKey     = string(semconv.NetworkPeerAddressKey)
	PeerPortKey        = string(semconv.NetworkPeerPortKey)
	ProtocolNameKey    = string(semconv.NetworkProtocolNameKey)
	ProtocolVersionKey = string(semconv.NetworkProtocolVersionKey)
	UserAgentKey       = string(semconv.UserAgentOriginalKey)
	ErrorTypeKey       = string(semconv.ErrorTypeKey)
)

// DurationKey carries the request duration in nanoseconds as measured by the
// middleware or transport.
const DurationKey = "http.duration_ns"
