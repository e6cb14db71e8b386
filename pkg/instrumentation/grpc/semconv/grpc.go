// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package semconv computes the attributes the gRPC event sources report,
// following the RPC semantic conventions.
package semconv

import (
	"net"
	"strings"
	"time"

	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	grpcconv "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api-semconv/instrumenter/grpc"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/capture"
	httpsemconv "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/instrumentation/nethttp/semconv"
)

const (
	// OTELExporterTracePath is the gRPC method for OTLP trace export
	OTELExporterTracePath = "/opentelemetry.proto.collector.trace.v1.TraceService/Export"
	// OTELExporterMetricPath is the gRPC method for OTLP metric export
	OTELExporterMetricPath = "/opentelemetry.proto.collector.metrics.v1.MetricsService/Export"
	// OTELExporterLogPath is the gRPC method for OTLP log export
	OTELExporterLogPath = "/opentelemetry.proto.collector.logs.v1.LogsService/Export"
)

var systemGRPC = semconv.RPCSystemGRPC.Value.AsString()

// ParseFullMethod splits a gRPC FullMethod of the form /package.service/method.
// Parsing is consistent with grpc-go: anything else yields empty parts.
func ParseFullMethod(fullMethod string) (service, method string) {
	name, ok := strings.CutPrefix(fullMethod, "/")
	if !ok {
		return "", ""
	}
	pos := strings.LastIndex(name, "/")
	if pos < 0 {
		return "", ""
	}
	return name[:pos], name[pos+1:]
}

// IsOTELExporterPath returns true if the method is an OpenTelemetry exporter endpoint.
// These methods should be excluded from instrumentation to prevent infinite recursion.
func IsOTELExporterPath(fullMethod string) bool {
	return fullMethod == OTELExporterTracePath ||
		fullMethod == OTELExporterMetricPath ||
		fullMethod == OTELExporterLogPath
}

// ServerStartAttrs returns the requested start attributes of a call received
// by a server. md is the incoming metadata and remote the caller's address.
func ServerStartAttrs(fullMethod string, md metadata.MD, remote net.Addr, requested []string) capture.Attrs {
	s := capture.NewSink(requested)
	setMethod(s, fullMethod)
	if remote != nil {
		host, port := httpsemconv.SplitHostPort(remote.String())
		s.SetNonEmpty(grpcconv.ClientAddressKey, host)
		s.SetNonEmpty(grpcconv.ClientPortKey, port)
	}
	s.Prefixed(grpcconv.MetadataPrefix, func(name string) string {
		if v := md.Get(name); len(v) > 0 {
			return v[0]
		}
		return ""
	})
	return s.Attrs()
}

// ClientStartAttrs returns the requested start attributes of a call made by
// a client.
func ClientStartAttrs(fullMethod string, requested []string) capture.Attrs {
	s := capture.NewSink(requested)
	setMethod(s, fullMethod)
	return s.Attrs()
}

// ProgressAttrs reports the messages exchanged so far.
func ProgressAttrs(received, sent int64, requested []string) capture.Attrs {
	s := capture.NewSink(requested)
	s.Set(grpcconv.MessagesReceivedKey, received)
	s.Set(grpcconv.MessagesSentKey, sent)
	return s.Attrs()
}

// EndAttrs describes a finished call. A nil err is status OK and any error
// that does not carry a status is Unknown. remote is the server address a
// client talked to; servers pass nil.
func EndAttrs(err error, elapsed time.Duration, remote net.Addr, requested []string) capture.Attrs {
	s := capture.NewSink(requested)
	st, _ := status.FromError(err)
	s.Set(grpcconv.StatusCodeKey, int64(st.Code()))
	s.SetNonEmpty(grpcconv.StatusMessageKey, st.Message())
	s.Set(grpcconv.DurationKey, max(elapsed.Nanoseconds(), 0))
	if remote != nil {
		host, port := httpsemconv.SplitHostPort(remote.String())
		s.SetNonEmpty(grpcconv.ServerAddressKey, host)
		s.SetNonEmpty(grpcconv.ServerPortKey, port)
	}
	return s.Attrs()
}

func setMethod(s *capture.Sink, fullMethod string) {
	service, method := ParseFullMethod(fullMethod)
	s.Set(grpcconv.SystemKey, systemGRPC)
	s.SetNonEmpty(grpcconv.ServiceKey, service)
	s.SetNonEmpty(grpcconv.MethodKey, method)
}
