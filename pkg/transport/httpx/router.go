// Package httpx is the HTTP router abstraction the services server is
// built on.
package httpx

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
)

// Router is the routing surface the dispatcher installs service routes on.
type Router interface {
	Handle(method, path string, h http.Handler)
	Get(path string, h http.Handler)
	Post(path string, h http.Handler)
	Put(path string, h http.Handler)
	Patch(path string, h http.Handler)
	Delete(path string, h http.Handler)
	Use(mw ...func(http.Handler) http.Handler)
	Mux() http.Handler
	Routes() []Route
}

// Route is one installed method/pattern pair.
type Route struct {
	Method  string
	Pattern string
}

type chiRouter struct{ r *chi.Mux }

// NewChi returns a chi-backed Router.
func NewChi() Router { return &chiRouter{r: chi.NewRouter()} }

func (c *chiRouter) Handle(method, path string, h http.Handler) { c.r.Method(method, path, h) }
func (c *chiRouter) Get(path string, h http.Handler)            { c.Handle(http.MethodGet, path, h) }
func (c *chiRouter) Post(path string, h http.Handler)           { c.Handle(http.MethodPost, path, h) }
func (c *chiRouter) Put(path string, h http.Handler)            { c.Handle(http.MethodPut, path, h) }
func (c *chiRouter) Patch(path string, h http.Handler)          { c.Handle(http.MethodPatch, path, h) }
func (c *chiRouter) Delete(path string, h http.Handler)         { c.Handle(http.MethodDelete, path, h) }
func (c *chiRouter) Use(mw ...func(http.Handler) http.Handler)  { c.r.Use(mw...) }
func (c *chiRouter) Mux() http.Handler                          { return c.r }

// Routes lists installed routes sorted by pattern then method.
func (c *chiRouter) Routes() []Route {
	var out []Route
	_ = chi.Walk(c.r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		out = append(out, Route{Method: method, Pattern: route})
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pattern != out[j].Pattern {
			return out[i].Pattern < out[j].Pattern
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// URLParams returns the path parameters chi matched for r.
func URLParams(r *http.Request) map[string]string {
	rc := chi.RouteContext(r.Context())
	if rc == nil {
		return nil
	}
	out := make(map[string]string, len(rc.URLParams.Keys))
	for i, k := range rc.URLParams.Keys {
		if k == "*" {
			continue
		}
		out[k] = rc.URLParams.Values[i]
	}
	return out
}

// RoutePattern returns the matched chi pattern for r, if any.
func RoutePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}
