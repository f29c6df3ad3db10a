// pkg/service/base.go
package service

import (
	"context"
	"net/http"

	"github.com/joeydtaylor/steeze-services/pkg/cache"
)

// Requirement keys understood by the route builder.
const (
	RequireAccess    = "_access"
	RequireAuth      = "_auth"
	RequireRole      = "_role"
	RequireCSRFToken = "_csrf_request_header_token"
)

// Base carries the default behaviour of a ServiceDefinition. Variants embed
// it and override what they need.
type Base struct {
	def Definition
}

func NewBase(def Definition) Base { return Base{def: def.normalized()} }

func (b Base) PluginID() string          { return b.def.ID }
func (b Base) Title() string             { return b.def.Title }
func (b Base) Category() string          { return b.def.Category }
func (b Base) Path() string              { return b.def.Path }
func (b Base) Description() string       { return b.def.Description }
func (b Base) SupportsTranslation() bool { return b.def.Translatable }
func (b Base) ResponseCode() int         { return b.def.ResponseCode }
func (b Base) Methods() []string         { return append([]string(nil), b.def.Methods...) }
func (b Base) Arguments() []Argument     { return append([]Argument(nil), b.def.Arguments...) }

// PluginDefinition returns the normalized registered metadata.
func (b Base) PluginDefinition() Definition { return b.def }

func (b Base) ContextDefinitions() map[string]ContextDefinition {
	out := make(map[string]ContextDefinition, len(b.def.Context))
	for k, v := range b.def.Context {
		out[k] = v
	}
	return out
}

func (b Base) Cacheability() cache.Metadata {
	if b.def.Cache == nil {
		return cache.New()
	}
	return cache.New().Merge(*b.def.Cache)
}

// ProcessRoute opens the route to everyone and demands a CSRF header token
// on methods that change state.
func (b Base) ProcessRoute(route *RouteSpec) {
	route.AddRequirements(map[string]string{RequireAccess: "TRUE"})
	for _, m := range route.Methods {
		if !isSafeMethod(m) {
			route.AddRequirements(map[string]string{RequireCSRFToken: "TRUE"})
			break
		}
	}
}

func (b Base) ProcessRequest(context.Context, *Invocation) (any, error) { return nil, nil }

func (b Base) ProcessResponse(*Envelope) {}

// DecodeArguments decodes the request body and checks it against the
// declared arguments.
func (b Base) DecodeArguments(inv *Invocation) (map[string]any, error) {
	values := map[string]any{}
	if err := inv.DecodeBody(&values); err != nil {
		return nil, err
	}
	if err := ValidateArguments(values, b.def.Arguments); err != nil {
		return nil, err
	}
	return values, nil
}

func isSafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
