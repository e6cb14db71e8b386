// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/capture"

// OperationError describes a failure reported by the native layer.
type OperationError struct {
	Type    string
	Message string
}

func (e *OperationError) Error() string {
	if e.Type == "" {
		return e.Message
	}
	return e.Type + ": " + e.Message
}

// OperationErrorFrom reads the failure description out of error-phase
// attributes.
func OperationErrorFrom(attrs capture.Attrs) *OperationError {
	e := &OperationError{Type: "Error", Message: defaultErrorMessage}
	if v, ok := attrs.String(ErrorTypeKey); ok && v != "" {
		e.Type = v
	}
	if v, ok := attrs.String(ErrorMessageKey); ok && v != "" {
		e.Message = v
	}
	return e
}
