// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package semconv

import (
	"net/http"
	"strconv"
	"time"

	httpconv "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api-semconv/instrumenter/http"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/capture"
)

// ServerResponse describes a finished server response.
type ServerResponse struct {
	StatusCode int
	ReadBytes  int64
	WriteBytes int64
	Header     http.Header
	// Route is the mux pattern that served the request. ServeMux sets it
	// only once it dispatches, after the start attributes are gone.
	Route   string
	Elapsed time.Duration
}

// ServerRequestAttrs returns the requested start attributes of a request
// received by a server. server is the primary server name if known.
func ServerRequestAttrs(server string, req *http.Request, requested []string) capture.Attrs {
	s := capture.NewSink(requested)

	var host string
	var p int
	if server == "" {
		host, p = SplitHostPort(req.Host)
	} else {
		host, p = SplitHostPort(server)
		if p < 0 {
			_, p = SplitHostPort(req.Host)
		}
	}
	s.Set(httpconv.ServerAddressKey, host)
	if port := RequiredHTTPPort(req.TLS != nil, p); port > 0 {
		s.Set(httpconv.ServerPortKey, port)
	}

	method, original := Method(req.Method)
	s.Set(httpconv.MethodKey, method)
	s.SetNonEmpty(httpconv.MethodOriginalKey, original)
	s.Set(httpconv.URLSchemeKey, serverScheme(req.TLS != nil))

	peer, peerPort := SplitHostPort(req.RemoteAddr)
	s.SetNonEmpty(httpconv.PeerAddressKey, peer)
	if peer != "" && peerPort > 0 {
		s.Set(httpconv.PeerPortKey, peerPort)
	}

	// For client IP, use, in order:
	// 1. The value in the X-Forwarded-For header
	// 2. The peer address
	if s.Wants(httpconv.ClientAddressKey) {
		clientIP := ServerClientIP(req.Header.Get("X-Forwarded-For"))
		if clientIP == "" {
			clientIP = peer
		}
		s.SetNonEmpty(httpconv.ClientAddressKey, clientIP)
	}

	s.SetNonEmpty(httpconv.UserAgentKey, req.UserAgent())
	if req.URL != nil {
		s.SetNonEmpty(httpconv.URLPathKey, req.URL.Path)
		s.SetNonEmpty(httpconv.URLQueryKey, req.URL.RawQuery)
	}

	protoName, protoVersion := NetProtocol(req.Proto)
	if protoName != "http" {
		s.SetNonEmpty(httpconv.ProtocolNameKey, protoName)
	}
	s.SetNonEmpty(httpconv.ProtocolVersionKey, protoVersion)

	// Use r.Pattern for HTTP route detection (Go 1.22+)
	s.SetNonEmpty(httpconv.RouteKey, HTTPRoute(req.Pattern))

	s.Prefixed(capture.RequestHeaderPrefix, req.Header.Get)
	return s.Attrs()
}

// ServerResponseAttrs returns the requested end attributes of a server
// response.
func ServerResponseAttrs(resp ServerResponse, requested []string) capture.Attrs {
	s := capture.NewSink(requested)
	s.SetNonEmpty(httpconv.RequestBodySizeKey, resp.ReadBytes)
	s.SetNonEmpty(httpconv.BodySizeKey, resp.WriteBytes)
	s.SetNonEmpty(httpconv.StatusCodeKey, resp.StatusCode)
	s.SetNonEmpty(httpconv.RouteKey, HTTPRoute(resp.Route))
	s.Set(httpconv.DurationKey, max(resp.Elapsed.Nanoseconds(), 0))
	// Add error.type for 5xx status codes
	if resp.StatusCode >= 500 && resp.StatusCode < 600 {
		s.Set(httpconv.ErrorTypeKey, strconv.Itoa(resp.StatusCode))
	}
	s.Prefixed(capture.ResponseHeaderPrefix, resp.Header.Get)
	return s.Attrs()
}

func serverScheme(https bool) string {
	if https {
		return "https"
	}
	return "http"
}
