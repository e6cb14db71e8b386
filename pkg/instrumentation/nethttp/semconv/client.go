// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package semconv

import (
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"time"

	httpconv "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api-semconv/instrumenter/http"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/bridge"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/capture"
)

// ClientRequestAttrs returns the requested start attributes of a request made
// by a client.
func ClientRequestAttrs(req *http.Request, requested []string) capture.Attrs {
	s := capture.NewSink(requested)

	var urlHost string
	if req.URL != nil {
		urlHost = req.URL.Host
	}
	var requestHost string
	var requestPort int
	for _, hostport := range []string{urlHost, req.Header.Get("Host")} {
		requestHost, requestPort = SplitHostPort(hostport)
		if requestHost != "" || requestPort > 0 {
			break
		}
	}
	s.Set(httpconv.ServerAddressKey, requestHost)
	if port := RequiredHTTPPort(req.URL != nil && req.URL.Scheme == "https", requestPort); port > 0 {
		s.Set(httpconv.ServerPortKey, port)
	}

	method, original := Method(req.Method)
	s.Set(httpconv.MethodKey, method)
	s.SetNonEmpty(httpconv.MethodOriginalKey, original)

	if req.URL != nil && s.Wants(httpconv.URLFullKey) {
		// Remove any username/password info that may be in the URL.
		u := *req.URL
		u.User = nil
		s.Set(httpconv.URLFullKey, u.String())
	}
	s.Set(httpconv.URLSchemeKey, clientScheme(req))

	protoName, protoVersion := NetProtocol(req.Proto)
	if protoName != "http" {
		s.SetNonEmpty(httpconv.ProtocolNameKey, protoName)
	}
	s.SetNonEmpty(httpconv.ProtocolVersionKey, protoVersion)
	s.SetNonEmpty(httpconv.UserAgentKey, req.UserAgent())

	s.Prefixed(capture.RequestHeaderPrefix, req.Header.Get)
	return s.Attrs()
}

// ClientResponseAttrs returns the requested end attributes of a response
// received by a client. elapsed is the round-trip time up to the headers.
func ClientResponseAttrs(resp *http.Response, elapsed time.Duration, requested []string) capture.Attrs {
	s := capture.NewSink(requested)
	s.SetNonEmpty(httpconv.StatusCodeKey, resp.StatusCode)
	s.Set(httpconv.DurationKey, max(elapsed.Nanoseconds(), 0))
	if resp.ContentLength > 0 {
		s.Set(httpconv.BodySizeKey, resp.ContentLength)
	}
	if isErrorStatusCode(resp.StatusCode) {
		s.Set(httpconv.ErrorTypeKey, strconv.Itoa(resp.StatusCode))
	}
	s.Prefixed(capture.ResponseHeaderPrefix, resp.Header.Get)
	return s.Attrs()
}

// ErrorAttrs describes a failed round trip for the error phase.
func ErrorAttrs(err error) capture.Attrs {
	// bridge.ErrorTypeKey is error.type, so the same value feeds both the
	// recorded exception and the span attribute.
	return capture.Attrs{
		bridge.ErrorTypeKey:    ErrorType(err),
		bridge.ErrorMessageKey: err.Error(),
	}
}

// ErrorType returns the error.type value for a given error.
func ErrorType(err error) string {
	t := reflect.TypeOf(err)
	if t == nil {
		return "_OTHER"
	}
	var value string
	if t.PkgPath() == "" && t.Name() == "" {
		// Likely a builtin type.
		value = t.String()
	} else {
		value = fmt.Sprintf("%s.%s", t.PkgPath(), t.Name())
	}
	if value == "" {
		return "_OTHER"
	}
	return value
}

func clientScheme(req *http.Request) string {
	if req.URL != nil && req.URL.Scheme != "" {
		return req.URL.Scheme
	}
	if req.TLS != nil {
		return "https"
	}
	return "http"
}

// isErrorStatusCode returns true if the HTTP status code indicates an error.
func isErrorStatusCode(code int) bool {
	return code >= 400 || code < 100
}
