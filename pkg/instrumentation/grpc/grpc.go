// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package grpc attaches the gRPC server and client instruments. The stats
// handlers feeding them live in the server and client subpackages.
package grpc

import (
	grpcconv "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api-semconv/instrumenter/grpc"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/adapter"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/bridge"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/capture"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/instrumentation/shared"
)

const instrumentationKey = "GRPC"

// Attach builds the server and client instruments from cfg and attaches both
// to hub. Nothing is attached when the instrumentation is disabled.
func Attach(hub *adapter.Hub, cfg grpcconv.Config, opts ...bridge.Option) ([]adapter.Ref, error) {
	if !shared.Instrumented(instrumentationKey) {
		shared.Logger().Debug("gRPC instrumentation disabled")
		return nil, nil
	}
	if cfg.Version == "" {
		cfg.Version = shared.ModuleVersion()
	}

	server, err := grpcconv.ServerPolicy(cfg)
	if err != nil {
		return nil, err
	}
	client, err := grpcconv.ClientPolicy(cfg)
	if err != nil {
		return nil, err
	}
	refs, err := hub.AttachPolicies([]*capture.Policy{server, client}, opts...)
	if err != nil {
		return nil, err
	}
	shared.Logger().Info("gRPC instrumentation attached", "version", cfg.Version)
	return refs, nil
}
