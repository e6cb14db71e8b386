// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel"

	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/ex"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/adapter"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/ctxstore"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/instconfig"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/instrumentation/shared"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/otelsetup"
)

const (
	instrumentationName = "github.com/open-telemetry/opentelemetry-go-native-bridge/cmd/bridgedemo"
	shutdownTimeout     = 5 * time.Second
	readHeaderTimeout   = 5 * time.Second
)

//nolint:gochecknoglobals // Implementation of a CLI command
var commandServe = cli.Command{
	Name:        "serve",
	Description: "Serve the demo HTTP front end and gRPC back end until interrupted",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "instrumentation config file (.yaml, .yml or .json)",
		},
		&cli.StringFlag{
			Name:  "http-addr",
			Usage: "listen address of the HTTP front end",
			Value: ":8080",
		},
		&cli.StringFlag{
			Name:  "grpc-addr",
			Usage: "listen address of the gRPC back end",
			Value: ":9090",
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		cfg := instconfig.Default()
		if path := cmd.String("config"); path != "" {
			var err error
			if cfg, err = instconfig.Load(path); err != nil {
				return ex.Wrapf(err, "failed to load config")
			}
		}
		return serve(ctx, cfg, cmd.String("http-addr"), cmd.String("grpc-addr"))
	},
}

func serve(ctx context.Context, cfg instconfig.Config, httpAddr, grpcAddr string) error {
	logger := shared.Logger()
	if err := shared.SetupOTelSDK(instrumentationName, Version); err != nil {
		return ex.Wrapf(err, "failed to set up OpenTelemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelsetup.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to shut down OpenTelemetry", "error", err)
		}
	}()
	if err := shared.StartRuntimeMetrics(); err != nil {
		logger.Warn("runtime metrics unavailable", "error", err)
	}

	grpcLis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return ex.Wrapf(err, "failed to listen on %s", grpcAddr)
	}
	d, err := newDemo(cfg, grpcLis, adapter.DefaultHub(), ctxstore.Default(), otel.GetTextMapPropagator())
	if err != nil {
		_ = grpcLis.Close()
		return err
	}
	defer d.close()

	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           d.handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	errCh := make(chan error, 2)
	go func() { errCh <- d.serveGRPC() }()
	go func() {
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logger.Info("bridgedemo serving", "http", httpAddr, "grpc", grpcLis.Addr().String())

	select {
	case <-ctx.Done():
	case err = <-errCh:
		logger.Error("server stopped", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := httpSrv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("failed to shut down HTTP server", "error", shutdownErr)
	}
	return err
}
