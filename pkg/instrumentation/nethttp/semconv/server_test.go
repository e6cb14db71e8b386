// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package semconv

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpconv "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api-semconv/instrumenter/http"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/capture"
)

func serverRequested(t *testing.T, phase capture.Phase) []string {
	t.Helper()
	p, err := httpconv.ServerPolicy(httpconv.Config{
		RequestHeaders:  []string{"X-Request-Id"},
		ResponseHeaders: []string{"Content-Type"},
	})
	require.NoError(t, err)
	return p.RequestedAttributes(phase)
}

func TestServerRequestAttrs(t *testing.T) {
	tests := []struct {
		name     string
		server   string
		req      *http.Request
		expected map[string]any
	}{
		{
			name: "basic GET request",
			req: &http.Request{
				Method:     "GET",
				Host:       "example.com",
				RemoteAddr: "192.168.1.1:12345",
				URL: &url.URL{
					Path: "/api/v1/users",
				},
				Proto: "HTTP/1.1",
				Header: http.Header{
					"User-Agent": []string{"test-agent/1.0"},
				},
			},
			expected: map[string]any{
				"http.request.method":      "GET",
				"server.address":           "example.com",
				"url.scheme":               "http",
				"network.peer.address":     "192.168.1.1",
				"network.peer.port":        12345,
				"user_agent.original":      "test-agent/1.0",
				"client.address":           "192.168.1.1",
				"url.path":                 "/api/v1/users",
				"network.protocol.version": "1.1",
			},
		},
		{
			name:   "TLS with explicit server, forwarded client and route",
			server: "api.example.com:8443",
			req: &http.Request{
				Method:     "post",
				Host:       "ignored.example.com",
				RemoteAddr: "10.0.0.2:4000",
				TLS:        &tls.ConnectionState{},
				URL: &url.URL{
					Path:     "/users/42",
					RawQuery: "verbose=1",
				},
				Pattern: "POST /users/{id}",
				Proto:   "HTTP/2",
				Header: http.Header{
					"X-Forwarded-For": []string{"203.0.113.7, 10.0.0.1"},
					"X-Request-Id":    []string{"abc"},
					"Traceparent":     []string{"00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"},
				},
			},
			expected: map[string]any{
				"http.request.method":              "POST",
				"http.request.method_original":     "post",
				"server.address":                   "api.example.com",
				"server.port":                      8443,
				"url.scheme":                       "https",
				"network.peer.address":             "10.0.0.2",
				"network.peer.port":                4000,
				"client.address":                   "203.0.113.7",
				"url.path":                         "/users/42",
				"url.query":                        "verbose=1",
				"network.protocol.version":         "2",
				"http.route":                       "/users/{id}",
				"http.request.header.x-request-id": "abc",
				"http.request.header.traceparent":  "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := ServerRequestAttrs(tt.server, tt.req, serverRequested(t, capture.PhaseStart))
			assert.Equal(t, tt.expected, map[string]any(attrs))
		})
	}
}

func TestServerRequestAttrsOnlyRequested(t *testing.T) {
	req := &http.Request{Method: "GET", Host: "example.com", RemoteAddr: "1.2.3.4:5", URL: &url.URL{Path: "/"}}
	attrs := ServerRequestAttrs("", req, []string{httpconv.MethodKey})
	assert.Equal(t, capture.Attrs{httpconv.MethodKey: "GET"}, attrs)
	assert.Empty(t, ServerRequestAttrs("", req, nil))
}

func TestServerResponseAttrs(t *testing.T) {
	tests := []struct {
		name     string
		resp     ServerResponse
		expected map[string]any
	}{
		{
			name: "success",
			resp: ServerResponse{
				StatusCode: 200,
				WriteBytes: 512,
				Header:     http.Header{"Content-Type": []string{"application/json"}},
			},
			expected: map[string]any{
				"http.response.status_code":          200,
				"http.response.body.size":            int64(512),
				"http.response.header.content-type": "application/json",
			},
		},
		{
			name: "server error",
			resp: ServerResponse{StatusCode: 503, ReadBytes: 10},
			expected: map[string]any{
				"http.response.status_code": 503,
				"http.request.body.size":    int64(10),
				"error.type":                "503",
			},
		},
		{
			name: "client error is not an error type",
			resp: ServerResponse{StatusCode: 404},
			expected: map[string]any{
				"http.response.status_code": 404,
			},
		},
		{
			name: "route from mux pattern",
			resp: ServerResponse{StatusCode: 200, Route: "GET /users/{id}", Elapsed: time.Millisecond},
			expected: map[string]any{
				"http.response.status_code": 200,
				"http.route":                "/users/{id}",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := ServerResponseAttrs(tt.resp, serverRequested(t, capture.PhaseEnd))
			assert.Equal(t, tt.expected, map[string]any(attrs))
		})
	}
}

func TestServerResponseAttrsNativeDuration(t *testing.T) {
	p, err := httpconv.ServerPolicy(httpconv.Config{NativeDuration: true})
	require.NoError(t, err)

	attrs := ServerResponseAttrs(ServerResponse{StatusCode: 200, Elapsed: 3 * time.Millisecond},
		p.RequestedAttributes(capture.PhaseEnd))
	assert.Equal(t, int64(3*time.Millisecond), attrs[httpconv.DurationKey])

	attrs = ServerResponseAttrs(ServerResponse{StatusCode: 200, Elapsed: -time.Second},
		p.RequestedAttributes(capture.PhaseEnd))
	assert.Equal(t, int64(0), attrs[httpconv.DurationKey], "clock steps never yield negative durations")
}
