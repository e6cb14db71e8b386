// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"net"
	"net/http"

	"go.opentelemetry.io/otel/propagation"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/ex"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/adapter"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/bridge"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/inst-api/ctxstore"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/instconfig"
	grpcinst "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/instrumentation/grpc"
	grpcclient "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/instrumentation/grpc/client"
	grpcserver "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/instrumentation/grpc/server"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/instrumentation/nethttp"
	httpserver "github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/instrumentation/nethttp/server"
	"github.com/open-telemetry/opentelemetry-go-native-bridge/pkg/instrumentation/shared"
)

type greetResponse struct {
	Message string `json:"message"`
	Backend string `json:"backend"`
}

// demo is an HTTP front end that checks a gRPC back end on every request.
type demo struct {
	hub   *adapter.Hub
	store *ctxstore.Store
	refs  []adapter.Ref

	grpcLis  net.Listener
	grpcSrv  *grpc.Server
	grpcConn *grpc.ClientConn
	backend  healthpb.HealthClient
}

func newDemo(cfg instconfig.Config, grpcLis net.Listener, hub *adapter.Hub, store *ctxstore.Store,
	propagator propagation.TextMapPropagator, opts ...bridge.Option,
) (*demo, error) {
	d := &demo{hub: hub, store: store, grpcLis: grpcLis}
	// A store disabled by an earlier close starts a new lifetime here.
	store.Enable()
	opts = append([]bridge.Option{bridge.WithStore(store), bridge.WithPropagator(propagator)}, opts...)

	if cfg.HTTP.Enabled {
		httpCfg := cfg.HTTPConfig()
		httpCfg.Propagator = propagator
		refs, err := nethttp.Attach(hub, httpCfg, opts...)
		if err != nil {
			return nil, ex.Wrapf(err, "failed to attach net/http instrumentation")
		}
		d.refs = append(d.refs, refs...)
	}
	if cfg.GRPC.Enabled {
		grpcCfg := cfg.GRPCConfig()
		grpcCfg.Propagator = propagator
		refs, err := grpcinst.Attach(hub, grpcCfg, opts...)
		if err != nil {
			d.detach()
			return nil, ex.Wrapf(err, "failed to attach gRPC instrumentation")
		}
		d.refs = append(d.refs, refs...)
	}

	d.grpcSrv = grpc.NewServer(grpcserver.ServerOptions(grpcserver.WithHub(hub), grpcserver.WithStore(store))...)
	healthpb.RegisterHealthServer(d.grpcSrv, health.NewServer())

	conn, err := grpc.NewClient(grpcLis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpcclient.DialOption(grpcclient.WithHub(hub), grpcclient.WithStore(store)),
	)
	if err != nil {
		d.detach()
		return nil, ex.Wrapf(err, "failed to create gRPC client")
	}
	d.grpcConn = conn
	d.backend = healthpb.NewHealthClient(conn)
	return d, nil
}

func (d *demo) serveGRPC() error {
	return d.grpcSrv.Serve(d.grpcLis)
}

func (d *demo) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /greet", d.greet)
	return httpserver.Middleware(mux, httpserver.WithHub(d.hub), httpserver.WithStore(d.store))
}

func (d *demo) greet(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "world"
	}
	resp, err := d.backend.Check(r.Context(), &healthpb.HealthCheckRequest{})
	if err != nil {
		shared.Logger().Warn("backend check failed", "error", err)
		http.Error(w, "backend unavailable", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(greetResponse{
		Message: "hello " + name,
		Backend: resp.GetStatus().String(),
	})
}

func (d *demo) detach() {
	for _, ref := range d.refs {
		_ = d.hub.Detach(ref)
	}
	d.refs = nil
}

// close stops the back end, detaches every instrument and drops all
// ambient slots still held by the store.
func (d *demo) close() {
	_ = d.grpcConn.Close()
	d.grpcSrv.GracefulStop()
	d.detach()
	d.store.Disable()
}
