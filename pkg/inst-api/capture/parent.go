// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"context"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TraceContextParent returns a ParentFunc that reads a propagated trace
// context out of the start attributes. keys maps carrier field names (for
// example "traceparent") to the attribute keys holding them. When no valid
// remote span context is found the ambient context is used. A nil prop means
// the global propagator at the time of extraction.
func TraceContextParent(prop propagation.TextMapPropagator, keys map[string]string) ParentFunc {
	return func(active context.Context, attrs Attrs) (context.Context, bool) {
		carrier := make(propagation.MapCarrier, len(keys))
		for field, key := range keys {
			if v, ok := attrs.String(key); ok && v != "" {
				carrier[field] = v
			}
		}
		if len(carrier) == 0 {
			return nil, false
		}
		p := prop
		if p == nil {
			p = otel.GetTextMapPropagator()
		}
		ctx := p.Extract(active, carrier)
		sc := trace.SpanContextFromContext(ctx)
		if !sc.IsValid() || !sc.IsRemote() {
			return nil, false
		}
		return ctx, true
	}
}

// W3CKeys maps the W3C trace-context carrier fields onto captured request
// header attributes.
func W3CKeys() map[string]string {
	return map[string]string{
		"traceparent": RequestHeaderKey("traceparent"),
		"tracestate":  RequestHeaderKey("tracestate"),
	}
}

// ParentKeys lists the attribute keys of a carrier-field mapping, for use
// with Builder.RequestOnly.
func ParentKeys(keys map[string]string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
