// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package grpc

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	grpccodes "google.golang.org/grpc/codes"

	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/capture"
)

func TestSpanName(t *testing.T) {
	tests := []struct {
		attrs capture.Attrs
		want  string
	}{
		{capture.Attrs{ServiceKey: "grpc.health.v1.Health", MethodKey: "Check"}, "grpc.health.v1.Health/Check"},
		{capture.Attrs{ServiceKey: "svc"}, "svc"},
		{capture.Attrs{MethodKey: "m"}, "m"},
		{nil, "grpc"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, SpanName(tt.attrs))
		})
	}
}

func TestServerStatus(t *testing.T) {
	failing := map[grpccodes.Code]bool{
		grpccodes.Unknown:          true,
		grpccodes.DeadlineExceeded: true,
		grpccodes.Unimplemented:    true,
		grpccodes.Internal:         true,
		grpccodes.Unavailable:      true,
		grpccodes.DataLoss:         true,
	}
	for code := grpccodes.OK; code <= grpccodes.Unauthenticated; code++ {
		t.Run(code.String(), func(t *testing.T) {
			failed, msg := ServerStatus(capture.Attrs{StatusCodeKey: int64(code)})
			assert.Equal(t, failing[code], failed)
			if failed {
				assert.Equal(t, code.String(), msg)
			}
		})
	}

	failed, msg := ServerStatus(capture.Attrs{StatusCodeKey: 42, StatusMessageKey: "odd"})
	assert.True(t, failed, "unknown codes are server failures")
	assert.Equal(t, "odd", msg)

	failed, _ = ServerStatus(capture.Attrs{})
	assert.False(t, failed)
}

func TestStatusCodeOutOfRange(t *testing.T) {
	for _, v := range []int64{-1, math.MaxUint32 + 1, math.MaxUint32 + int64(grpccodes.Canceled) + 1} {
		failed, msg := ServerStatus(capture.Attrs{StatusCodeKey: v})
		assert.False(t, failed, "%d", v)
		assert.Empty(t, msg)

		failed, _ = ClientStatus(capture.Attrs{StatusCodeKey: v})
		assert.False(t, failed, "%d", v)
	}

	failed, _ := ServerStatus(capture.Attrs{StatusCodeKey: int64(math.MaxUint32)})
	assert.True(t, failed, "the widest code is still outside the known range")
}

func TestClientStatus(t *testing.T) {
	failed, _ := ClientStatus(capture.Attrs{StatusCodeKey: 0})
	assert.False(t, failed)

	failed, msg := ClientStatus(capture.Attrs{StatusCodeKey: int(grpccodes.NotFound), StatusMessageKey: "unknown service"})
	assert.True(t, failed)
	assert.Equal(t, "unknown service", msg)

	failed, msg = ClientStatus(capture.Attrs{StatusCodeKey: "14"})
	assert.True(t, failed)
	assert.Equal(t, "Unavailable", msg)
}

func TestServerPolicy(t *testing.T) {
	p, err := ServerPolicy(Config{Version: "v1"})
	require.NoError(t, err)

	assert.Equal(t, ServerKind, p.Name())
	assert.Equal(t, capture.KindInbound, p.Kind())
	assert.True(t, p.OwnsContext())
	assert.Equal(t, capture.DurationNativeAtEnd, p.DurationSource())
	assert.Equal(t, DurationKey, p.DurationKey())
	assert.True(t, p.Inject().Empty())
	assert.Equal(t, "rpc.server.call.duration", p.MetricNames().Duration)

	start := p.RequestedAttributes(capture.PhaseStart)
	assert.Contains(t, start, MetadataKey("traceparent"))
	assert.NotContains(t, p.TraceKeys(capture.PhaseStart), MetadataKey("traceparent"))

	end := p.RequestedAttributes(capture.PhaseEnd)
	assert.Contains(t, end, StatusMessageKey)
	assert.Contains(t, end, DurationKey)
	assert.NotContains(t, p.TraceKeys(capture.PhaseEnd), StatusMessageKey)
}

func TestServerPolicyExtractsParent(t *testing.T) {
	p, err := ServerPolicy(Config{Propagator: propagation.TraceContext{}})
	require.NoError(t, err)

	ctx := p.Parent(context.Background(), capture.Attrs{
		MetadataKey("traceparent"): "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0bb902b7-01",
	})
	sc := trace.SpanContextFromContext(ctx)
	require.True(t, sc.IsValid())
	assert.True(t, sc.IsRemote())
	assert.Equal(t, "00f067aa0bb902b7", sc.SpanID().String())
}

func TestClientPolicy(t *testing.T) {
	p, err := ClientPolicy(Config{LocalDuration: true})
	require.NoError(t, err)

	assert.Equal(t, capture.KindOutbound, p.Kind())
	assert.False(t, p.OwnsContext())
	assert.Equal(t, capture.DurationLocal, p.DurationSource())
	assert.Equal(t, TraceContextMetadata, p.Inject().Request)

	p, err = ClientPolicy(Config{DisableInjection: true})
	require.NoError(t, err)
	assert.True(t, p.Inject().Empty())
	assert.Equal(t, capture.DurationNativeAtEnd, p.DurationSource())
}
