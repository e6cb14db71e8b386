// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// ErrInvalidPolicy is wrapped by every error returned from Builder.Build.
var ErrInvalidPolicy = errors.New("invalid capture policy")

const (
	DefaultName        = "operation"
	DefaultDurationKey = "operation.duration"

	RequestHeaderPrefix  = "http.request.header."
	ResponseHeaderPrefix = "http.response.header."
)

type (
	// NameFunc derives the span name from the start attributes.
	NameFunc func(Attrs) string
	// SpanKindFunc derives the span kind from the start attributes.
	SpanKindFunc func(Attrs) trace.SpanKind
	// IsErrorFunc decides from the end attributes whether the operation
	// failed, with an optional status message.
	IsErrorFunc func(Attrs) (bool, string)
	// ParentFunc extracts an explicit parent from the start attributes. It
	// returns false to fall back to the ambient context.
	ParentFunc func(active context.Context, attrs Attrs) (context.Context, bool)
)

// Headers names header-like attributes for the request and response side.
type Headers struct {
	Request  []string
	Response []string
}

// Empty reports whether no header is named on either side.
func (h Headers) Empty() bool {
	return len(h.Request) == 0 && len(h.Response) == 0
}

// MetricNames overrides the instrument names used for metric recording.
type MetricNames struct {
	Duration string
	Count    string
}

// Policy is the immutable, per-instrument declaration of which attributes
// matter at which phase, plus the derivation functions. Build one with
// NewBuilder.
type Policy struct {
	name           string
	version        string
	kind           Kind
	ownsContext    bool
	trace          [numPhases][]string
	metric         [numPhases][]string
	extra          [numPhases][]string
	nameFunc       NameFunc
	spanKindFunc   SpanKindFunc
	isErrorFunc    IsErrorFunc
	parentFunc     ParentFunc
	durationSource DurationSource
	durationKey    string
	capture        Headers
	inject         Headers
	metricNames    MetricNames
}

func (p *Policy) Name() string                   { return p.name }
func (p *Policy) Version() string                { return p.version }
func (p *Policy) Kind() Kind                     { return p.kind }
func (p *Policy) OwnsContext() bool              { return p.ownsContext }
func (p *Policy) DurationSource() DurationSource { return p.durationSource }
func (p *Policy) DurationKey() string            { return p.durationKey }
func (p *Policy) Capture() Headers               { return p.capture }
func (p *Policy) Inject() Headers                { return p.inject }
func (p *Policy) MetricNames() MetricNames       { return p.metricNames }

// NeedsStartTime reports whether the bridge has to remember a start timestamp.
func (p *Policy) NeedsStartTime() bool {
	return !p.durationSource.Native()
}

// TraceKeys returns the keys copied onto the span in phase. A phase without a
// list copies nothing.
func (p *Policy) TraceKeys(phase Phase) []string {
	if !phase.valid() {
		return nil
	}
	return p.trace[phase]
}

// MetricKeys returns the keys merged into the metric dimensions in phase.
func (p *Policy) MetricKeys(phase Phase) []string {
	if !phase.valid() {
		return nil
	}
	return p.metric[phase]
}

// SpanName derives the span name for the start attributes.
func (p *Policy) SpanName(attrs Attrs) string {
	if name := p.nameFunc(attrs); name != "" {
		return name
	}
	return DefaultName
}

// SpanKind derives the span kind for the start attributes.
func (p *Policy) SpanKind(attrs Attrs) trace.SpanKind {
	return p.spanKindFunc(attrs)
}

// IsError applies the error predicate to the end attributes.
func (p *Policy) IsError(attrs Attrs) (bool, string) {
	return p.isErrorFunc(attrs)
}

// Parent returns the parent context for a new span: the extracted one if the
// policy finds it in attrs, otherwise active.
func (p *Policy) Parent(active context.Context, attrs Attrs) context.Context {
	if ctx, ok := p.parentFunc(active, attrs); ok && ctx != nil {
		return ctx
	}
	return active
}

// RequestedAttributes is the set of keys the native layer has to produce for
// phase: the union of trace, metric and request-only keys, deduplicated, in
// declaration order.
func (p *Policy) RequestedAttributes(phase Phase) []string {
	if !phase.valid() {
		return nil
	}
	n := len(p.trace[phase]) + len(p.metric[phase]) + len(p.extra[phase])
	seen := make(map[string]struct{}, n)
	keys := make([]string, 0, n)
	for _, list := range [3][]string{p.trace[phase], p.metric[phase], p.extra[phase]} {
		for _, k := range list {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	if phase == PhaseProgress && p.durationSource == DurationNativeAtProgress {
		keys = appendMissing(keys, seen, p.durationKey)
	}
	if phase == PhaseEnd && p.durationSource.Native() {
		keys = appendMissing(keys, seen, p.durationKey)
	}
	return keys
}

func appendMissing(keys []string, seen map[string]struct{}, k string) []string {
	if _, ok := seen[k]; ok {
		return keys
	}
	seen[k] = struct{}{}
	return append(keys, k)
}

// RequestHeaderKey is the attribute key carrying the captured request header.
func RequestHeaderKey(header string) string {
	return RequestHeaderPrefix + strings.ToLower(header)
}

// ResponseHeaderKey is the attribute key carrying the captured response header.
func ResponseHeaderKey(header string) string {
	return ResponseHeaderPrefix + strings.ToLower(header)
}

func neverError(Attrs) (bool, string) { return false, "" }

func ambientParent(context.Context, Attrs) (context.Context, bool) { return nil, false }
