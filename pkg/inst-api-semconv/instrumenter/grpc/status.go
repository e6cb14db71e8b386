// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package grpc

import (
	"math"

	grpccodes "google.golang.org/grpc/codes"

	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/capture"
)

// serverErrors are the codes a server reports as its own failure. Every other
// code blames the caller.
var serverErrors = map[grpccodes.Code]struct{}{
	grpccodes.Unknown:          {},
	grpccodes.DeadlineExceeded: {},
	grpccodes.Unimplemented:    {},
	grpccodes.Internal:         {},
	grpccodes.Unavailable:      {},
	grpccodes.DataLoss:         {},
}

// ServerStatus marks a server call failed for Unknown, DeadlineExceeded,
// Unimplemented, Internal, Unavailable, DataLoss and codes outside the known
// range.
func ServerStatus(attrs capture.Attrs) (bool, string) {
	code, ok := statusCode(attrs)
	if !ok {
		return false, ""
	}
	if _, failed := serverErrors[code]; !failed && code <= grpccodes.Unauthenticated {
		return false, ""
	}
	return true, statusMessage(attrs, code)
}

// ClientStatus marks every non-OK client call failed.
func ClientStatus(attrs capture.Attrs) (bool, string) {
	code, ok := statusCode(attrs)
	if !ok || code == grpccodes.OK {
		return false, ""
	}
	return true, statusMessage(attrs, code)
}

func statusCode(attrs capture.Attrs) (grpccodes.Code, bool) {
	v, ok := attrs.Int64(StatusCodeKey)
	// Codes are uint32 on the wire; anything wider is not a status.
	if !ok || v < 0 || v > math.MaxUint32 {
		return 0, false
	}
	return grpccodes.Code(v), true
}

func statusMessage(attrs capture.Attrs, code grpccodes.Code) string {
	if msg, _ := attrs.String(StatusMessageKey); msg != "" {
		return msg
	}
	return code.String()
}
