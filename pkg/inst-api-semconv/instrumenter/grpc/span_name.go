// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package grpc

import "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/capture"

const fallbackName = "grpc"

// SpanName names a call "{service}/{method}", as grpc-go spells FullMethod
// without the leading slash.
func SpanName(attrs capture.Attrs) string {
	service, _ := attrs.String(ServiceKey)
	method, _ := attrs.String(MethodKey)
	switch {
	case service != "" && method != "":
		return service + "/" + method
	case service != "":
		return service
	case method != "":
		return method
	default:
		return fallbackName
	}
}
