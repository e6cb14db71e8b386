// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package semconv

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	grpcconv "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api-semconv/instrumenter/grpc"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/capture"
)

func requested(t *testing.T, server bool, phase capture.Phase) []string {
	t.Helper()
	build := grpcconv.ClientPolicy
	if server {
		build = grpcconv.ServerPolicy
	}
	p, err := build(grpcconv.Config{})
	require.NoError(t, err)
	return p.RequestedAttributes(phase)
}

func TestParseFullMethod(t *testing.T) {
	tests := []struct {
		name       string
		fullMethod string
		service    string
		method     string
	}{
		{name: "valid full method", fullMethod: "/grpc.testing.TestService/UnaryCall", service: "grpc.testing.TestService", method: "UnaryCall"},
		{name: "no leading slash", fullMethod: "grpc.testing.TestService/UnaryCall"},
		{name: "no method separator", fullMethod: "/grpc.testing.TestService"},
		{name: "empty service", fullMethod: "//Method", method: "Method"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, method := ParseFullMethod(tt.fullMethod)
			assert.Equal(t, tt.service, service)
			assert.Equal(t, tt.method, method)
		})
	}
}

func TestIsOTELExporterPath(t *testing.T) {
	assert.True(t, IsOTELExporterPath(OTELExporterTracePath))
	assert.True(t, IsOTELExporterPath(OTELExporterMetricPath))
	assert.True(t, IsOTELExporterPath(OTELExporterLogPath))
	assert.False(t, IsOTELExporterPath("/grpc.health.v1.Health/Check"))
	assert.False(t, IsOTELExporterPath(""))
}

func TestServerStartAttrs(t *testing.T) {
	md := metadata.Pairs(
		"traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0bb902b7-01",
		"x-other", "ignored",
	)
	remote := &net.TCPAddr{IP: net.ParseIP("10.1.2.3"), Port: 51000}

	attrs := ServerStartAttrs("/grpc.health.v1.Health/Check", md, remote, requested(t, true, capture.PhaseStart))
	assert.Equal(t, capture.Attrs{
		grpcconv.SystemKey:                  "grpc",
		grpcconv.ServiceKey:                 "grpc.health.v1.Health",
		grpcconv.MethodKey:                  "Check",
		grpcconv.ClientAddressKey:           "10.1.2.3",
		grpcconv.ClientPortKey:              51000,
		grpcconv.MetadataKey("traceparent"): "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0bb902b7-01",
	}, attrs)
}

func TestClientStartAttrsOnlyRequested(t *testing.T) {
	attrs := ClientStartAttrs("/svc/M", []string{grpcconv.MethodKey})
	assert.Equal(t, capture.Attrs{grpcconv.MethodKey: "M"}, attrs)
}

func TestProgressAttrs(t *testing.T) {
	attrs := ProgressAttrs(2, 3, requested(t, false, capture.PhaseProgress))
	assert.Equal(t, capture.Attrs{
		grpcconv.MessagesReceivedKey: int64(2),
		grpcconv.MessagesSentKey:     int64(3),
	}, attrs)
}

func TestEndAttrs(t *testing.T) {
	keys := requested(t, false, capture.PhaseEnd)
	remote := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9090}

	tests := []struct {
		name    string
		err     error
		code    int64
		message string
	}{
		{name: "ok", code: int64(grpccodes.OK)},
		{name: "status error", err: status.Error(grpccodes.NotFound, "unknown service"), code: int64(grpccodes.NotFound), message: "unknown service"},
		{name: "plain error", err: errors.New("boom"), code: int64(grpccodes.Unknown), message: "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := EndAttrs(tt.err, 1500*time.Millisecond, remote, keys)
			assert.Equal(t, tt.code, attrs[grpcconv.StatusCodeKey])
			if tt.message == "" {
				assert.NotContains(t, attrs, grpcconv.StatusMessageKey)
			} else {
				assert.Equal(t, tt.message, attrs[grpcconv.StatusMessageKey])
			}
			assert.Equal(t, int64(1_500_000_000), attrs[grpcconv.DurationKey])
			assert.Equal(t, "127.0.0.1", attrs[grpcconv.ServerAddressKey])
			assert.Equal(t, 9090, attrs[grpcconv.ServerPortKey])
		})
	}

	attrs := EndAttrs(nil, -time.Second, nil, keys)
	assert.Equal(t, int64(0), attrs[grpcconv.DurationKey])
	assert.NotContains(t, attrs, grpcconv.ServerAddressKey)
}
