// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package http

import "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/capture"

/**
HTTP span names SHOULD be {method} {target} if there is a (low-cardinality) target available.
If there is no (low-cardinality) {target} available, HTTP span names SHOULD be {method}.
*/

const otherMethod = "_OTHER"

// ClientSpanName names a client span after the request method.
func ClientSpanName(attrs capture.Attrs) string {
	return spanMethod(attrs)
}

// ServerSpanName names a server span "{method} {route}", or "{method}" when
// no route is known.
func ServerSpanName(attrs capture.Attrs) string {
	method := spanMethod(attrs)
	route, _ := attrs.String(RouteKey)
	if route == "" {
		return method
	}
	return method + " " + route
}

func spanMethod(attrs capture.Attrs) string {
	method, _ := attrs.String(MethodKey)
	if method == "" || method == otherMethod {
		return "HTTP"
	}
	return method
}
