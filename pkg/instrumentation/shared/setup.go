// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package shared

import (
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"

	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/otelsetup"
)

const (
	serviceName    = "otel-native-bridge"
	serviceVersion = "0.1.0"
)

var (
	logger             *slog.Logger
	loggerOnce         sync.Once
	runtimeMetricsOnce sync.Once
)

// Logger returns the shared logger. The level comes from OTEL_LOG_LEVEL
// (debug, info, warn, error) and defaults to info.
func Logger() *slog.Logger {
	loggerOnce.Do(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel(),
		}))
	})
	return logger
}

func logLevel() slog.Level {
	switch strings.ToLower(os.Getenv("OTEL_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupOTelSDK initializes the OpenTelemetry SDK for the calling
// instrumentation. It is idempotent within one SDK lifetime.
//
// The SDK configures exporters from the environment:
//   - OTEL_EXPORTER_OTLP_ENDPOINT / OTEL_EXPORTER_OTLP_{TRACES,METRICS}_ENDPOINT
//   - OTEL_TRACES_EXPORTER, OTEL_METRICS_EXPORTER
//   - OTEL_SERVICE_NAME
//   - OTEL_LOG_LEVEL
func SetupOTelSDK(instrumentationName, instrumentationVersion string) error {
	otelsetup.Initialize(otelsetup.Config{
		ServiceName:            serviceName,
		ServiceVersion:         serviceVersion,
		InstrumentationName:    instrumentationName,
		InstrumentationVersion: instrumentationVersion,
		Logger:                 Logger(),
	})
	return nil
}

// StartRuntimeMetrics enables Go runtime metrics collection once per process.
// Disable it with OTEL_GO_DISABLED_INSTRUMENTATIONS=runtimemetrics.
func StartRuntimeMetrics() error {
	var startErr error
	runtimeMetricsOnce.Do(func() {
		if !Instrumented("runtimemetrics") {
			Logger().Debug("runtime metrics disabled via environment variable")
			return
		}
		if err := runtime.Start(runtime.WithMeterProvider(otel.GetMeterProvider())); err != nil {
			Logger().Warn("failed to start runtime metrics", "error", err)
			startErr = err
			return
		}
		Logger().Info("runtime metrics enabled")
	})
	return startErr
}

// Instrumented checks if instrumentation is enabled via environment variables.
//
//   - OTEL_GO_ENABLED_INSTRUMENTATIONS: comma-separated allow list (e.g. "nethttp,grpc")
//   - OTEL_GO_DISABLED_INSTRUMENTATIONS: comma-separated deny list, applied after the allow list
//
// With neither set every instrumentation is enabled. Names are case-insensitive.
func Instrumented(instrumentationName string) bool {
	name := strings.ToLower(instrumentationName)

	if enabledList := os.Getenv("OTEL_GO_ENABLED_INSTRUMENTATIONS"); enabledList != "" {
		if !slices.Contains(parseInstrumentationList(enabledList), name) {
			return false
		}
	}
	if disabledList := os.Getenv("OTEL_GO_DISABLED_INSTRUMENTATIONS"); disabledList != "" {
		if slices.Contains(parseInstrumentationList(disabledList), name) {
			return false
		}
	}
	return true
}

func parseInstrumentationList(list string) []string {
	var result []string
	for _, item := range strings.Split(list, ",") {
		trimmed := strings.TrimSpace(strings.ToLower(item))
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
