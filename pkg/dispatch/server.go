package dispatch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/joeydtaylor/steeze-services/pkg/csrf"
	"github.com/joeydtaylor/steeze-services/pkg/manifest"
	"github.com/joeydtaylor/steeze-services/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-services/pkg/middleware/metrics"
	"github.com/joeydtaylor/steeze-services/pkg/service"
	"github.com/joeydtaylor/steeze-services/pkg/transport/httpx"
	"go.uber.org/zap"
)

// Options are the server-wide rendering and CSRF settings.
type Options struct {
	PermanentMaxAge int
	DebugHeaders    bool
	CSRFPath        string
	CSRFRealm       string
}

// OptionsFrom takes the settings from a normalized manifest.
func OptionsFrom(cfg manifest.Config) Options {
	return Options{
		PermanentMaxAge: cfg.Server.PermanentMaxAge,
		DebugHeaders:    cfg.Server.CacheDebugHeaders,
		CSRFPath:        cfg.Server.CSRFPath,
		CSRFRealm:       cfg.CSRF.Realm,
	}
}

// Server adapts the Dispatcher to HTTP.
type Server struct {
	d    *Dispatcher
	auth *auth.Middleware
	csrf *csrf.Service
	opts Options
	log  *zap.Logger
}

// NewServer may be given a nil auth middleware; every caller is then anonymous.
func NewServer(d *Dispatcher, a *auth.Middleware, c *csrf.Service, o Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if o.CSRFPath == "" {
		o.CSRFPath = manifest.DefaultCSRFPath
	}
	if o.CSRFRealm == "" {
		o.CSRFRealm = manifest.DefaultCSRFRealm
	}
	return &Server{d: d, auth: a, csrf: c, opts: o, log: log}
}

func (s *Server) writeOptions() service.WriteOptions {
	return service.WriteOptions{PermanentMaxAge: s.opts.PermanentMaxAge, DebugHeaders: s.opts.DebugHeaders}
}

// Install registers the CSRF token route and every table entry on r.
func (s *Server) Install(r httpx.Router, table []RouteEntry) {
	r.Get(s.opts.CSRFPath, s.TokenHandler())
	for _, e := range table {
		h := s.handler(e)
		for _, m := range e.Spec.Methods {
			r.Handle(m, e.Spec.Path, h)
		}
	}
}

// handler applies, outermost first: route requirements, the manifest guard,
// the rate limit, the timeout, then dispatch.
func (s *Server) handler(e RouteEntry) http.Handler {
	limiter := (*keyedLimiter)(nil)
	if rl := e.Resource.Policy.RateLimit; rl != nil {
		limiter = newKeyedLimiter(rl.RPS, rl.Burst)
	}
	timeout := time.Duration(e.Resource.Policy.TimeoutMS) * time.Millisecond

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.checkRequirements(r, e.Spec); err != nil {
			s.writeError(w, r, e, err)
			return
		}
		if err := s.checkGuard(r, e.Resource.Guard); err != nil {
			s.writeError(w, r, e, err)
			return
		}
		if !limiter.Allow(callerKey(r), time.Now()) {
			w.Header().Set("Retry-After", "1")
			s.writeError(w, r, e, service.NewDomainError(http.StatusTooManyRequests, "rate_limited", "too many requests"))
			return
		}
		if timeout > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			r = r.WithContext(ctx)
		}
		s.serve(w, r, e)
	})
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, e RouteEntry) {
	start := time.Now()
	match := service.RouteMatch{Name: e.Spec.Name, Pattern: e.Spec.Path, Params: httpx.URLParams(r)}

	env, err := s.d.Dispatch(r.Context(), r, match, e.Endpoint, e.Definition())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = &service.DomainError{Status: http.StatusGatewayTimeout, Code: "timeout", Message: "request timed out", Err: err}
		}
		s.writeError(w, r, e, err)
		return
	}
	metrics.ObserveDispatch(e.Endpoint, e.Definition(), env.Status, time.Since(start))
	if err := env.Write(w, s.writeOptions()); err != nil {
		s.log.Debug("response write failed", zap.String("route", e.Spec.Name), zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, e RouteEntry, err error) {
	env := s.d.Pipeline().ErrorResponse(err, r)
	fields := []zap.Field{
		zap.String("endpoint", e.Endpoint),
		zap.String("definition", e.Definition()),
		zap.Int("status", env.Status),
		zap.Error(err),
	}
	switch {
	case env.Status >= 500:
		s.log.Error("dispatch failed", fields...)
	case env.Status == http.StatusNotFound:
		s.log.Debug("dispatch target missing", fields...)
	default:
		s.log.Info("dispatch rejected", fields...)
	}
	metrics.ObserveDispatch(e.Endpoint, e.Definition(), env.Status, 0)
	_ = env.Write(w, s.writeOptions())
}

// TokenHandler serves the CSRF token for the configured realm as plain text.
// Anonymous callers get a session cookie the token is bound to.
func (s *Server) TokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, _ := auth.UserFrom(r.Context())
		seed := s.csrf.SessionSeed(w, r, u.Username, true)
		token, err := s.csrf.Token(csrf.WithSeed(r.Context(), seed), s.opts.CSRFRealm)
		if err != nil {
			s.log.Error("csrf token failed", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Cache-Control", "no-cache, private")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(token))
	}
}

// callerKey identifies the caller for rate limiting.
func callerKey(r *http.Request) string {
	if u, ok := auth.UserFrom(r.Context()); ok {
		return "user:" + u.Username
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
