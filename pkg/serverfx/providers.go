package serverfx

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/joeydtaylor/steeze-services/pkg/codec"
	"github.com/joeydtaylor/steeze-services/pkg/csrf"
	"github.com/joeydtaylor/steeze-services/pkg/definitions"
	"github.com/joeydtaylor/steeze-services/pkg/dispatch"
	"github.com/joeydtaylor/steeze-services/pkg/endpoint"
	"github.com/joeydtaylor/steeze-services/pkg/manifest"
	"github.com/joeydtaylor/steeze-services/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-services/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-services/pkg/relay"
	"github.com/joeydtaylor/steeze-services/pkg/service"
	"github.com/joeydtaylor/steeze-services/pkg/transport/httpx"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func provideManifest(opts Options, log *zap.Logger) (manifest.Config, error) {
	path := opts.ManifestPath()
	cfg, err := manifest.Load(path)
	if err != nil {
		return manifest.Config{}, fmt.Errorf("manifest %s: %w", path, err)
	}
	log.Info("manifest loaded", zap.String("path", path), zap.Int("endpoints", len(cfg.Endpoints)))
	return cfg, nil
}

// providePublisher closes the relay on stop when it holds a connection.
func providePublisher(lc fx.Lifecycle, log *zap.Logger) (relay.Publisher, error) {
	pub, err := relay.NewFromEnv(log.Named("relay"))
	if err != nil {
		return nil, err
	}
	if c, ok := pub.(io.Closer); ok {
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return c.Close() }})
	}
	return pub, nil
}

// NewRegistry registers the built-in definitions.
func NewRegistry(pub relay.Publisher) (*service.Registry, error) {
	reg := service.NewRegistry()
	if err := definitions.Register(reg, definitions.Deps{Publisher: pub}); err != nil {
		return nil, err
	}
	return reg, nil
}

func providePipeline(cfg manifest.Config, log *zap.Logger) (*service.Pipeline, error) {
	base := codec.NewSerializer(codec.JSONStrict, codec.XML, codec.YAML, codec.NewJSON("jsonld", "application/ld+json"))
	s, err := base.WithDefault(cfg.Server.DefaultFormat)
	if err != nil {
		return nil, fmt.Errorf("server.default_format: %w", err)
	}
	return service.NewPipeline(s, log.Named("pipeline")), nil
}

func provideStore(cfg manifest.Config, reg *service.Registry) (endpoint.Store, error) {
	return endpoint.NewManifestStore(cfg, reg)
}

func provideDispatcher(store endpoint.Store, p *service.Pipeline, log *zap.Logger) *dispatch.Dispatcher {
	return dispatch.NewDispatcher(store, p, log.Named("dispatch"))
}

func provideCSRF(cfg manifest.Config, log *zap.Logger) *csrf.Service {
	return csrf.NewFromEnv(cfg.CSRF.CookieName, cfg.CSRF.SecureOnly, log.Named("csrf"))
}

func provideServer(d *dispatch.Dispatcher, a *auth.Middleware, c *csrf.Service, cfg manifest.Config, log *zap.Logger) *dispatch.Server {
	return dispatch.NewServer(d, a, c, dispatch.OptionsFrom(cfg), log.Named("dispatch"))
}

// ---- Router ----

type routerDeps struct {
	fx.In

	Server *dispatch.Server
	Store  endpoint.Store

	AuthMW *auth.Middleware
	LogMW  *logger.Middleware

	Metrics http.Handler `name:"metrics"`

	R   httpx.Router
	Log *zap.Logger
}

func provideRouter(d routerDeps) (http.Handler, error) {
	h, table, err := dispatch.BuildRouter(context.Background(), dispatch.BuildDeps{
		Server:  d.Server,
		Store:   d.Store,
		Auth:    d.AuthMW,
		LogMW:   d.LogMW,
		Metrics: d.Metrics,
		Router:  d.R,
	})
	if err != nil {
		return nil, err
	}
	for _, e := range table {
		d.Log.Debug("route installed",
			zap.String("name", e.Spec.Name),
			zap.String("path", e.Spec.Path),
			zap.Strings("methods", e.Spec.Methods),
		)
	}
	d.Log.Info("routes installed", zap.Int("count", len(table)))
	return h, nil
}
