// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package nethttp attaches the net/http server and client instruments. The
// event sources live in the server and client subpackages.
package nethttp

import (
	httpconv "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api-semconv/instrumenter/http"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/adapter"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/bridge"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/capture"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/instrumentation/shared"
)

const instrumentationKey = "NETHTTP"

// Attach builds the server and client instruments from cfg and attaches both
// to hub. Nothing is attached when the instrumentation is disabled through
// OTEL_GO_ENABLED_INSTRUMENTATIONS or OTEL_GO_DISABLED_INSTRUMENTATIONS.
func Attach(hub *adapter.Hub, cfg httpconv.Config, opts ...bridge.Option) ([]adapter.Ref, error) {
	if !shared.Instrumented(instrumentationKey) {
		shared.Logger().Debug("net/http instrumentation disabled")
		return nil, nil
	}
	if cfg.Version == "" {
		cfg.Version = shared.ModuleVersion()
	}

	server, err := httpconv.ServerPolicy(cfg)
	if err != nil {
		return nil, err
	}
	client, err := httpconv.ClientPolicy(cfg)
	if err != nil {
		return nil, err
	}
	refs, err := hub.AttachPolicies([]*capture.Policy{server, client}, opts...)
	if err != nil {
		return nil, err
	}
	shared.Logger().Info("net/http instrumentation attached", "version", cfg.Version)
	return refs, nil
}
