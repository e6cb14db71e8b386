// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/ctxstore"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/instrumentation/shared"
)

type config struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	propagator     propagation.TextMapPropagator
	store          *ctxstore.Store
	logger         *slog.Logger
	now            func() time.Time
}

func newConfig(opts []Option) *config {
	cfg := &config{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		propagator:     otel.GetTextMapPropagator(),
		store:          ctxstore.Default(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = shared.Logger()
	}
	if cfg.store == nil {
		cfg.store = ctxstore.Default()
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if cfg.propagator == nil {
		cfg.propagator = propagation.TraceContext{}
	}
	return cfg
}

// Option configures a Bridge.
type Option func(*config)

// WithTracerProvider selects the provider spans are created with. A nil
// provider disables tracing for the bridge. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *config) {
		cfg.tracerProvider = tp
	}
}

// WithMeterProvider selects the provider metrics are recorded with. A nil
// provider disables metrics for the bridge. Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *config) {
		cfg.meterProvider = mp
	}
}

// WithPropagator sets the propagator used to produce injected headers.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(cfg *config) {
		cfg.propagator = p
	}
}

// WithStore sets the ambient context store. Defaults to ctxstore.Default().
func WithStore(s *ctxstore.Store) Option {
	return func(cfg *config) {
		cfg.store = s
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = l
	}
}

// WithClock replaces the time source used for locally tracked durations.
func WithClock(now func() time.Time) Option {
	return func(cfg *config) {
		cfg.now = now
	}
}
