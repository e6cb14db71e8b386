// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Command bridgedemo runs an HTTP front end and a gRPC back end wired through
// the native bridges, so one request produces a server span, a gRPC client
// span and a gRPC server span in a single trace.
//
//	bridgedemo serve --config bridge.yaml --http-addr :8080 --grpc-addr :9090
//
// Exporters follow the standard OTEL_* environment variables.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

const (
	exitCodeSuccess = 0
	exitCodeFailure = 1
)

// These variables are set by the linker.
//
//nolint:gochecknoglobals // these variables are set by the linker
var (
	Version    = "v0.0.0"
	CommitHash = "unknown"
	BuildTime  = "unknown"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeFailure
	}
	return exitCodeSuccess
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "bridgedemo",
		Usage:   "run a demo service instrumented through the native bridges",
		Version: fmt.Sprintf("%s+%s (%s)", Version, CommitHash, BuildTime),
		Commands: []*cli.Command{
			&commandServe,
		},
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
}
