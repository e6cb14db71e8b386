// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package otelsetup installs the OpenTelemetry SDK providers the bridges
// record into. Exporters are chosen from the standard OTEL_* environment
// variables; with nothing configured the providers stay unset and every
// bridge degrades to a no-op.
package otelsetup

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/exporters/autoexport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

const (
	defaultTraceBatchTimeout = 5 * time.Second
	defaultTraceBatchSize    = 512
	defaultServiceName       = "otel-native-bridge"
)

var (
	mu             sync.Mutex
	initialized    bool
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
)

// Config holds configuration for OpenTelemetry setup
type Config struct {
	ServiceName            string
	ServiceVersion         string
	InstrumentationName    string
	InstrumentationVersion string
	Logger                 *slog.Logger
}

// Initialize sets up the SDK once per lifetime. Calling it again before
// Shutdown is a no-op. Setup failures are logged, never returned: the
// application being observed must keep running without telemetry.
func Initialize(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if initialized {
		return
	}
	initialized = true

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("panic during OpenTelemetry initialization", "panic", rec)
		}
	}()
	setupOpenTelemetry(cfg, logger)
}

// TracerProvider returns the installed tracer provider, or nil when tracing
// was not configured.
func TracerProvider() *sdktrace.TracerProvider {
	mu.Lock()
	defer mu.Unlock()
	return tracerProvider
}

// MeterProvider returns the installed meter provider, or nil when metrics were
// not configured.
func MeterProvider() *sdkmetric.MeterProvider {
	mu.Lock()
	defer mu.Unlock()
	return meterProvider
}

func setupOpenTelemetry(cfg Config, logger *slog.Logger) {
	ctx := context.Background()

	serviceName := os.Getenv("OTEL_SERVICE_NAME")
	if serviceName == "" {
		serviceName = cfg.ServiceName
	}
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	serviceVersion := cfg.ServiceVersion
	if serviceVersion == "" {
		serviceVersion = cfg.InstrumentationVersion
	}

	// WithFromEnv goes last so OTEL_RESOURCE_ATTRIBUTES wins over defaults.
	res, err := resource.New(ctx,
		resource.WithProcess(),
		resource.WithOS(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
		),
		resource.WithFromEnv(),
	)
	if err != nil {
		logger.Warn("failed to create resource", "error", err)
		res = resource.Default()
	}

	if err := setupTraceProvider(ctx, res, logger); err != nil {
		logger.Warn("failed to setup trace provider", "error", err)
	}
	if err := setupMeterProvider(ctx, res, logger); err != nil {
		logger.Warn("failed to setup meter provider", "error", err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("OpenTelemetry initialized",
		"service_name", serviceName,
		"instrumentation_name", cfg.InstrumentationName,
		"instrumentation_version", cfg.InstrumentationVersion)
}

func exportConfigured(signal string) bool {
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" ||
		os.Getenv("OTEL_EXPORTER_OTLP_"+signal+"_ENDPOINT") != "" ||
		os.Getenv("OTEL_"+signal+"_EXPORTER") != ""
}

func setupTraceProvider(ctx context.Context, res *resource.Resource, logger *slog.Logger) error {
	if !exportConfigured("TRACES") {
		logger.Debug("no trace exporter configured, skipping trace provider setup")
		return nil
	}
	// autoexport honours OTEL_TRACES_EXPORTER and OTEL_EXPORTER_OTLP_PROTOCOL.
	exporter, err := autoexport.NewSpanExporter(ctx)
	if err != nil {
		return err
	}
	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(defaultTraceBatchTimeout),
			sdktrace.WithMaxExportBatchSize(defaultTraceBatchSize),
		),
	)
	otel.SetTracerProvider(tracerProvider)
	logger.Info("trace provider initialized")
	return nil
}

func setupMeterProvider(ctx context.Context, res *resource.Resource, logger *slog.Logger) error {
	if !exportConfigured("METRICS") {
		logger.Debug("no metric exporter configured, skipping meter provider setup")
		return nil
	}
	reader, err := autoexport.NewMetricReader(ctx)
	if err != nil {
		return err
	}
	meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(meterProvider)
	logger.Info("meter provider initialized with auto-export")
	return nil
}

// Shutdown flushes and stops the providers and ends the current lifetime, so
// a later Initialize starts from scratch.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	tp, mp := tracerProvider, meterProvider
	tracerProvider, meterProvider = nil, nil
	initialized = false
	mu.Unlock()

	var errs []error
	if tp != nil {
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if mp != nil {
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
