// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package instconfig loads the per-instrumentation settings of a bridge
// deployment from a YAML or JSON document.
//
//	http:
//	  enabled: true
//	  request_headers: [X-Request-Id]
//	  response_headers: [Content-Type]
//	  inject: true
//	  duration: local
//	grpc:
//	  enabled: true
//	  duration: native
//
// Keys left out keep the values of Default.
package instconfig

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/ex"
	grpcconv "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api-semconv/instrumenter/grpc"
	httpconv "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api-semconv/instrumenter/http"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/capture"
)

// Format is the encoding of a configuration document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported config format")
	ErrInvalidConfig     = errors.New("invalid instrumentation config")
)

// Config holds the settings of every instrumentation.
type Config struct {
	HTTP HTTP `koanf:"http"`
	GRPC GRPC `koanf:"grpc"`
}

// HTTP configures the net/http server and client instruments.
type HTTP struct {
	Enabled         bool     `koanf:"enabled"`
	RequestHeaders  []string `koanf:"request_headers"`
	ResponseHeaders []string `koanf:"response_headers"`
	Inject          bool     `koanf:"inject"`
	// Duration is local or native. Native durations are measured by the
	// middleware and transport around the wrapped handler or round trip.
	Duration string `koanf:"duration"`
}

// GRPC configures the gRPC server and client instruments.
type GRPC struct {
	Enabled bool `koanf:"enabled"`
	Inject  bool `koanf:"inject"`
	// Duration is local or native. Native durations are the begin and end
	// times reported by grpc-go.
	Duration string `koanf:"duration"`
}

// Default enables every instrumentation with trace-context injection and no
// header capture.
func Default() Config {
	return Config{
		HTTP: HTTP{Enabled: true, Inject: true, Duration: capture.DurationLocal.String()},
		GRPC: GRPC{Enabled: true, Inject: true, Duration: capture.DurationNativeAtEnd.String()},
	}
}

// Load reads the document at path. The format follows the file extension.
func Load(path string) (Config, error) {
	format, err := detectFormat(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, ex.Wrapf(err, "read %s", path)
	}
	return Parse(data, format)
}

// Parse decodes data over Default and validates the result.
func Parse(data []byte, format Format) (Config, error) {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return Config{}, ex.Wrapf(ErrUnsupportedFormat, "%q", format)
	}

	cfg := Default()
	if len(data) == 0 {
		return cfg, nil
	}
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return Config{}, ex.Wrapf(err, "parse %s config", format)
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, ex.Wrapf(err, "decode %s config", format)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that policies would otherwise reject later.
func (c Config) Validate() error {
	if err := checkDuration("http", c.HTTP.Duration); err != nil {
		return err
	}
	return checkDuration("grpc", c.GRPC.Duration)
}

// Event sources report durations only at end, so native-progress is never
// reachable.
func checkDuration(section, v string) error {
	src, ok := capture.ParseDurationSource(v)
	if !ok || src == capture.DurationNativeAtProgress {
		return ex.Wrapf(ErrInvalidConfig, "%s: unsupported duration source %q", section, v)
	}
	return nil
}

func nativeDuration(v string) bool {
	src, _ := capture.ParseDurationSource(v)
	return src == capture.DurationNativeAtEnd
}

// HTTPConfig is the policy configuration of the HTTP instruments.
func (c Config) HTTPConfig() httpconv.Config {
	return httpconv.Config{
		RequestHeaders:   c.HTTP.RequestHeaders,
		ResponseHeaders:  c.HTTP.ResponseHeaders,
		DisableInjection: !c.HTTP.Inject,
		NativeDuration:   nativeDuration(c.HTTP.Duration),
	}
}

// GRPCConfig is the policy configuration of the gRPC instruments.
func (c Config) GRPCConfig() grpcconv.Config {
	return grpcconv.Config{
		DisableInjection: !c.GRPC.Inject,
		LocalDuration:    !nativeDuration(c.GRPC.Duration),
	}
}

func detectFormat(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", ex.Wrapf(ErrUnsupportedFormat, "extension %q", ext)
	}
}
