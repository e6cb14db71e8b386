// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"fmt"

	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/capture"
)

/**
For HttpServer, status code >= 500 or < 100 is treated as error.
For HttpClient, status code >= 400 or < 100 is treated as error.
*/

// ServerStatus is the error predicate of server spans. 4xx responses are the
// client's fault and do not fail the server span.
func ServerStatus(attrs capture.Attrs) (bool, string) {
	return statusAbove(attrs, 500)
}

// ClientStatus is the error predicate of client spans.
func ClientStatus(attrs capture.Attrs) (bool, string) {
	return statusAbove(attrs, 400)
}

func statusAbove(attrs capture.Attrs, threshold int64) (bool, string) {
	code, ok := attrs.Int64(StatusCodeKey)
	if !ok {
		return false, ""
	}
	if code < 100 || code >= 600 {
		return true, fmt.Sprintf("Invalid HTTP status code %d", code)
	}
	if code >= threshold {
		return true, fmt.Sprintf("HTTP %d", code)
	}
	return false, ""
}
