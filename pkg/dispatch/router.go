package dispatch

import (
	"context"
	"net/http"

	chimd "github.com/go-chi/chi/v5/middleware"
	"github.com/joeydtaylor/steeze-services/pkg/endpoint"
	"github.com/joeydtaylor/steeze-services/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-services/pkg/middleware/logger"
	hmetrics "github.com/joeydtaylor/steeze-services/pkg/middleware/metrics"
	"github.com/joeydtaylor/steeze-services/pkg/transport/httpx"
)

// BuildDeps are the collaborators of BuildRouter. Auth, LogMW and Metrics
// are optional.
type BuildDeps struct {
	Server  *Server
	Store   endpoint.Store
	Auth    *auth.Middleware
	LogMW   *logger.Middleware
	Metrics http.Handler
	Router  httpx.Router
}

// BuildRouter installs the middleware chain, /metrics, the CSRF token route
// and the service routes on d.Router.
func BuildRouter(ctx context.Context, d BuildDeps) (http.Handler, []RouteEntry, error) {
	table, err := BuildTable(ctx, d.Store)
	if err != nil {
		return nil, nil, err
	}

	r := d.Router
	r.Use(chimd.RequestID, chimd.Recoverer, chimd.Heartbeat("/ping"))
	if d.Auth != nil {
		r.Use(d.Auth.Middleware())
	}
	if d.LogMW != nil {
		r.Use(d.LogMW.Middleware(d.Auth))
	}
	r.Use(hmetrics.Collect(d.Auth))

	if d.Metrics != nil {
		r.Get("/metrics", d.Metrics)
	}
	d.Server.Install(r, table)
	return r.Mux(), table, nil
}
