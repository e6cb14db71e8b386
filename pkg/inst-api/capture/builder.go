// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"slices"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/ex"
)

// Builder assembles a Policy. The zero value is not usable, start from
// NewBuilder.
type Builder struct {
	p          Policy
	ownsForced *bool
}

func NewBuilder(name string, kind Kind) *Builder {
	return &Builder{p: Policy{
		name:        name,
		kind:        kind,
		durationKey: DefaultDurationKey,
	}}
}

func (b *Builder) SetVersion(version string) *Builder {
	b.p.version = version
	return b
}

// TraceAttributes appends keys copied onto the span in phase.
func (b *Builder) TraceAttributes(phase Phase, keys ...string) *Builder {
	if phase.valid() {
		b.p.trace[phase] = append(b.p.trace[phase], keys...)
	}
	return b
}

// MetricDimensions appends keys merged into the metric dimensions in phase.
func (b *Builder) MetricDimensions(phase Phase, keys ...string) *Builder {
	if phase.valid() {
		b.p.metric[phase] = append(b.p.metric[phase], keys...)
	}
	return b
}

// RequestOnly appends keys the native layer has to produce in phase although
// they are neither recorded on the span nor used as dimensions, for example
// the inputs of a ParentFunc.
func (b *Builder) RequestOnly(phase Phase, keys ...string) *Builder {
	if phase.valid() {
		b.p.extra[phase] = append(b.p.extra[phase], keys...)
	}
	return b
}

func (b *Builder) SetNameFunc(f NameFunc) *Builder {
	b.p.nameFunc = f
	return b
}

func (b *Builder) SetSpanKindFunc(f SpanKindFunc) *Builder {
	b.p.spanKindFunc = f
	return b
}

func (b *Builder) SetIsErrorFunc(f IsErrorFunc) *Builder {
	b.p.isErrorFunc = f
	return b
}

func (b *Builder) SetParentFunc(f ParentFunc) *Builder {
	b.p.parentFunc = f
	return b
}

// SetDuration selects the duration source. key names the nanosecond attribute
// for the native sources and is ignored for DurationLocal.
func (b *Builder) SetDuration(source DurationSource, key string) *Builder {
	b.p.durationSource = source
	b.p.durationKey = key
	return b
}

// CaptureHeaders names the request and response headers recorded as span
// attributes. Request headers are requested at start, response headers at
// end.
func (b *Builder) CaptureHeaders(h Headers) *Builder {
	b.p.capture = Headers{Request: lowerAll(h.Request), Response: lowerAll(h.Response)}
	return b
}

// InjectHeaders names the trace-context headers the native layer may ask for
// on outgoing requests and responses. Leaving both empty opts out of
// injection.
func (b *Builder) InjectHeaders(h Headers) *Builder {
	b.p.inject = Headers{Request: lowerAll(h.Request), Response: lowerAll(h.Response)}
	return b
}

// SetOwnsContext overrides the variant's ambient-context ownership.
func (b *Builder) SetOwnsContext(owns bool) *Builder {
	b.ownsForced = &owns
	return b
}

func (b *Builder) SetMetricNames(names MetricNames) *Builder {
	b.p.metricNames = names
	return b
}

// Build validates the declaration and returns an immutable Policy.
func (b *Builder) Build() (*Policy, error) {
	p := b.p
	if strings.TrimSpace(p.name) == "" {
		return nil, ex.Wrapf(ErrInvalidPolicy, "instrument name is empty")
	}
	if !p.kind.valid() {
		return nil, ex.Wrapf(ErrInvalidPolicy, "%s: unknown instrument kind %d", p.name, p.kind)
	}
	if p.durationSource > DurationNativeAtProgress {
		return nil, ex.Wrapf(ErrInvalidPolicy, "%s: unknown duration source %d", p.name, p.durationSource)
	}
	if p.durationSource.Native() && p.durationKey == "" {
		return nil, ex.Wrapf(ErrInvalidPolicy, "%s: native duration requires a duration key", p.name)
	}
	p.ownsContext = p.kind.OwnsContext()
	if b.ownsForced != nil {
		if *b.ownsForced && p.kind == KindOutbound {
			return nil, ex.Wrapf(ErrInvalidPolicy, "%s: outbound instruments cannot own the ambient context", p.name)
		}
		p.ownsContext = *b.ownsForced
	}
	for _, h := range slices.Concat(p.capture.Request, p.capture.Response) {
		if IsSensitiveHeader(h) {
			return nil, ex.Wrapf(ErrInvalidPolicy, "%s: header %q carries credentials and cannot be captured", p.name, h)
		}
	}
	for side, list := range map[string][]string{
		"capture request":  p.capture.Request,
		"capture response": p.capture.Response,
		"inject request":   p.inject.Request,
		"inject response":  p.inject.Response,
	} {
		if err := validateHeaders(list); err != nil {
			return nil, ex.Wrapf(err, "%s: %s headers", p.name, side)
		}
	}

	for i := range p.trace {
		p.trace[i] = slices.Clone(dedup(p.trace[i]))
		p.metric[i] = slices.Clone(dedup(p.metric[i]))
		p.extra[i] = slices.Clone(dedup(p.extra[i]))
	}
	for _, h := range p.capture.Request {
		p.trace[PhaseStart] = appendUnique(p.trace[PhaseStart], RequestHeaderKey(h))
	}
	for _, h := range p.capture.Response {
		p.trace[PhaseEnd] = appendUnique(p.trace[PhaseEnd], ResponseHeaderKey(h))
	}

	if p.nameFunc == nil {
		p.nameFunc = func(Attrs) string { return DefaultName }
	}
	if p.spanKindFunc == nil {
		kind := p.kind.SpanKind()
		p.spanKindFunc = func(Attrs) trace.SpanKind { return kind }
	}
	if p.isErrorFunc == nil {
		p.isErrorFunc = neverError
	}
	if p.parentFunc == nil {
		p.parentFunc = ambientParent
	}
	if p.metricNames.Duration == "" {
		p.metricNames.Duration = p.name + ".operation.duration"
	}
	if p.metricNames.Count == "" {
		p.metricNames.Count = p.name + ".operation.count"
	}
	return &p, nil
}

// MustBuild is Build for package-level policy tables; it panics on error.
func (b *Builder) MustBuild() *Policy {
	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return p
}

var sensitiveHeaders = map[string]struct{}{
	"authorization":       {},
	"proxy-authorization": {},
	"cookie":              {},
	"set-cookie":          {},
	"x-api-key":           {},
	"x-auth-token":        {},
	"x-csrf-token":        {},
}

// IsSensitiveHeader reports whether the header carries credentials. Such
// headers are never captured as attributes.
func IsSensitiveHeader(name string) bool {
	_, ok := sensitiveHeaders[strings.ToLower(name)]
	return ok
}

func validateHeaders(list []string) error {
	seen := make(map[string]struct{}, len(list))
	for _, h := range list {
		if h == "" {
			return ex.Wrapf(ErrInvalidPolicy, "empty header name")
		}
		if strings.ContainsAny(h, " \t\r\n:") {
			return ex.Wrapf(ErrInvalidPolicy, "malformed header name %q", h)
		}
		if _, dup := seen[h]; dup {
			return ex.Wrapf(ErrInvalidPolicy, "duplicate header name %q", h)
		}
		seen[h] = struct{}{}
	}
	return nil
}

func lowerAll(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = strings.ToLower(s)
	}
	return out
}

func dedup(list []string) []string {
	if len(list) < 2 {
		return list
	}
	out := make([]string, 0, len(list))
	for _, k := range list {
		out = appendUnique(out, k)
	}
	return out
}

func appendUnique(list []string, k string) []string {
	for _, existing := range list {
		if existing == k {
			return list
		}
	}
	return append(list, k)
}
