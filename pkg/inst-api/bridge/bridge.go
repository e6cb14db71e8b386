// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge turns the start/progress/end/error callbacks of a native event
// source into spans and metrics.
//
// Every operation is tracked by the integer id the native layer assigned to
// it. A Bridge never returns errors or panics from a phase callback: an
// unknown id is a silent no-op, a missing provider disables the matching
// signal, and a failure while recording is logged and swallowed.
package bridge

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/ex"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api-semconv/instrumenter/utils"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/capture"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/ctxstore"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/registry"
)

const (
	// ErrorMessageKey and ErrorTypeKey are read from error-phase attributes
	// to describe the recorded exception.
	ErrorMessageKey = "error.message"
	ErrorTypeKey    = "error.type"

	defaultErrorMessage = "operation failed"
	detachedMessage     = "instrument detached"
	exceptionEvent      = "exception"
)

// Bridge is the lifecycle bridge of one instrument.
type Bridge struct {
	policy     *capture.Policy
	store      *ctxstore.Store
	states     *registry.Registry
	tracer     trace.Tracer
	duration   metric.Float64Histogram
	count      metric.Int64Counter
	propagator propagation.TextMapPropagator
	logger     *slog.Logger
	now        func() time.Time
}

// New builds a bridge for policy. It only fails on a nil policy; problems
// creating metric instruments disable metrics and are logged.
func New(policy *capture.Policy, opts ...Option) (*Bridge, error) {
	if policy == nil {
		return nil, ex.Wrapf(capture.ErrInvalidPolicy, "nil policy")
	}
	cfg := newConfig(opts)
	b := &Bridge{
		policy:     policy,
		store:      cfg.store,
		states:     registry.New(),
		propagator: cfg.propagator,
		logger:     cfg.logger.With("instrument", policy.Name()),
		now:        cfg.now,
	}
	if cfg.tracerProvider != nil {
		b.tracer = cfg.tracerProvider.Tracer(policy.Name(),
			trace.WithInstrumentationVersion(policy.Version()),
			trace.WithSchemaURL(semconv.SchemaURL))
	}
	if cfg.meterProvider != nil {
		b.initMetrics(cfg.meterProvider)
	}
	return b, nil
}

// MustNew is New that panics on error.
func MustNew(policy *capture.Policy, opts ...Option) *Bridge {
	b, err := New(policy, opts...)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Bridge) initMetrics(mp metric.MeterProvider) {
	meter := mp.Meter(b.policy.Name(),
		metric.WithInstrumentationVersion(b.policy.Version()),
		metric.WithSchemaURL(semconv.SchemaURL))
	names := b.policy.MetricNames()

	duration, err := utils.NewFloat64Histogram(names.Duration, "s",
		"Duration of "+b.policy.Name()+" operations.", meter, utils.DurationBuckets...)
	if err != nil {
		b.logger.Warn("failed to create duration histogram, metrics disabled", "error", err)
		return
	}
	count, err := utils.NewInt64Counter(names.Count, "{operation}",
		"Number of completed "+b.policy.Name()+" operations.", meter)
	if err != nil {
		b.logger.Warn("failed to create operation counter, metrics disabled", "error", err)
		return
	}
	b.duration, b.count = duration, count
}

func (b *Bridge) Policy() *capture.Policy { return b.policy }
func (b *Bridge) Store() *ctxstore.Store  { return b.store }

func (b *Bridge) tracing() bool { return b.tracer != nil }
func (b *Bridge) metrics() bool { return b.duration != nil }

// InFlight reports the number of tracked operations.
func (b *Bridge) InFlight() int {
	return b.states.Len()
}

// SpanContext returns the span context of an in-flight operation.
func (b *Bridge) SpanContext(id registry.OpID) (trace.SpanContext, bool) {
	st, ok := b.states.Get(id)
	if !ok || st.Span == nil {
		return trace.SpanContext{}, false
	}
	return st.Span.SpanContext(), true
}

// Context returns the context carrying the span of an in-flight operation.
func (b *Bridge) Context(id registry.OpID) (context.Context, bool) {
	st, ok := b.states.Get(id)
	if !ok || st.Ctx == nil {
		return nil, false
	}
	return st.Ctx, true
}

// Begin starts tracking operation id.
func (b *Bridge) Begin(id registry.OpID, attrs capture.Attrs) {
	if !b.tracing() && !b.metrics() {
		return
	}
	defer b.recoverPhase(capture.PhaseStart, id)

	if _, tracked := b.states.Get(id); tracked {
		b.logger.Debug("ignoring start for an operation already in flight", "id", uint64(id))
		return
	}

	st := &registry.State{}
	if b.policy.NeedsStartTime() {
		st.Start, st.HasStart = b.now(), true
	}
	if b.tracing() {
		parent := b.policy.Parent(b.store.Active(), attrs)
		opts := []trace.SpanStartOption{
			trace.WithSpanKind(b.policy.SpanKind(attrs)),
			trace.WithAttributes(attrs.KeyValues(b.policy.TraceKeys(capture.PhaseStart))...),
		}
		if st.HasStart {
			opts = append(opts, trace.WithTimestamp(st.Start))
		}
		st.Ctx, st.Span = b.tracer.Start(parent, b.policy.SpanName(attrs), opts...)
	}
	if b.metrics() {
		st.Dims = attrs.Pick(nil, b.policy.MetricKeys(capture.PhaseStart))
	}

	if prev := b.states.Put(id, st); prev != nil {
		// Lost a race with a concurrent start for the same id.
		b.release(prev, "operation restarted")
	}
	if st.Span != nil && b.policy.OwnsContext() {
		st.Leave = b.store.EnterOwned(st.Ctx)
	}
}

// Progress records intermediate attributes of an in-flight operation.
func (b *Bridge) Progress(id registry.OpID, attrs capture.Attrs) {
	st, ok := b.states.Get(id)
	if !ok {
		return
	}
	defer b.recoverPhase(capture.PhaseProgress, id)

	if st.Span != nil {
		st.Span.SetAttributes(attrs.KeyValues(b.policy.TraceKeys(capture.PhaseProgress))...)
	}
	if b.policy.DurationSource() == capture.DurationNativeAtProgress {
		if ns, ok := attrs.Int64(b.policy.DurationKey()); ok {
			st.NativeDuration, st.HasNativeDuration = ns, true
		}
	}
}

// End completes operation id successfully from the native layer's point of
// view; the policy's error predicate still decides the span status.
func (b *Bridge) End(id registry.OpID, attrs capture.Attrs) {
	st, ok := b.states.Take(id)
	if !ok {
		return
	}
	defer b.recoverPhase(capture.PhaseEnd, id)
	defer leave(st)

	var finished time.Time
	if st.HasStart {
		finished = b.now()
	}
	if st.Span != nil {
		if st.HasStart {
			defer st.Span.End(trace.WithTimestamp(finished))
		} else {
			defer st.Span.End()
		}
		st.Span.SetAttributes(attrs.KeyValues(b.policy.TraceKeys(capture.PhaseEnd))...)
		if failed, msg := b.policy.IsError(attrs); failed {
			st.Span.SetStatus(codes.Error, msg)
		} else {
			st.Span.SetStatus(codes.Ok, "")
		}
	}
	if b.metrics() {
		b.record(st, attrs, finished)
	}
}

// Error completes operation id with a failure. No duration is recorded for
// failed operations.
func (b *Bridge) Error(id registry.OpID, attrs capture.Attrs) {
	st, ok := b.states.Take(id)
	if !ok {
		return
	}
	defer b.recoverPhase(capture.PhaseError, id)
	defer leave(st)

	if st.Span == nil {
		return
	}
	defer st.Span.End()
	err := OperationErrorFrom(attrs)
	st.Span.AddEvent(exceptionEvent, trace.WithAttributes(
		semconv.ExceptionTypeKey.String(err.Type),
		semconv.ExceptionMessageKey.String(err.Message),
	))
	st.Span.SetStatus(codes.Error, err.Message)
	st.Span.SetAttributes(attrs.KeyValues(b.policy.TraceKeys(capture.PhaseError))...)
}

// Inject renders the trace context of operation id into the named header
// fields. It reports false when injection is disabled, the operation is not
// tracked, or it has no valid span context.
func (b *Bridge) Inject(id registry.OpID, fields []string) (map[string]string, bool) {
	if len(fields) == 0 {
		return nil, false
	}
	st, ok := b.states.Get(id)
	if !ok || st.Span == nil || !st.Span.SpanContext().IsValid() {
		return nil, false
	}
	carrier := propagation.MapCarrier{}
	b.propagator.Inject(st.Ctx, carrier)
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if v := carrier.Get(f); v != "" {
			out[f] = v
		}
	}
	return out, len(out) > 0
}

// Close ends every in-flight operation with an error status and empties the
// registry. It is used when the instrument is detached.
func (b *Bridge) Close() {
	for _, st := range b.states.Drain() {
		b.release(st, detachedMessage)
	}
}

func (b *Bridge) release(st *registry.State, reason string) {
	leave(st)
	if st.Span == nil {
		return
	}
	st.Span.SetStatus(codes.Error, reason)
	st.Span.End()
}

// leave hands the ambient slot back once the operation is over, unless a Run
// scope owns it.
func leave(st *registry.State) {
	if st.Leave != nil {
		st.Leave()
	}
}

func (b *Bridge) record(st *registry.State, attrs capture.Attrs, finished time.Time) {
	dims := attrs.Pick(st.Dims, b.policy.MetricKeys(capture.PhaseEnd))
	set := metric.WithAttributeSet(dims.Set())
	ctx := context.Background()
	if st.Ctx != nil {
		ctx = st.Ctx
	}
	if seconds, ok := b.durationSeconds(st, attrs, finished); ok {
		b.duration.Record(ctx, seconds, set)
	}
	b.count.Add(ctx, 1, set)
}

func (b *Bridge) durationSeconds(st *registry.State, attrs capture.Attrs, finished time.Time) (float64, bool) {
	var ns int64
	switch b.policy.DurationSource() {
	case capture.DurationLocal:
		if !st.HasStart {
			return 0, false
		}
		ns = int64(finished.Sub(st.Start))
	case capture.DurationNativeAtEnd:
		v, ok := attrs.Int64(b.policy.DurationKey())
		if !ok {
			return 0, false
		}
		ns = v
	case capture.DurationNativeAtProgress:
		if v, ok := attrs.Int64(b.policy.DurationKey()); ok {
			ns = v
		} else if st.HasNativeDuration {
			ns = st.NativeDuration
		} else {
			return 0, false
		}
	}
	return NanosToSeconds(ns), true
}

// NanosToSeconds converts a nanosecond duration to seconds, clamping negative
// values to zero.
func NanosToSeconds(ns int64) float64 {
	if ns <= 0 {
		return 0
	}
	return float64(ns) / float64(time.Second)
}

func (b *Bridge) recoverPhase(phase capture.Phase, id registry.OpID) {
	if rec := recover(); rec != nil {
		b.logger.Warn("recovered panic in phase handler",
			"phase", phase.String(),
			"id", uint64(id),
			"panic", rec)
	}
}
