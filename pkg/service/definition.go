// pkg/service/definition.go
package service

import (
	"context"
	"net/http"
	"strings"

	"github.com/joeydtaylor/steeze-services/pkg/cache"
)

// Definition is the static metadata of one plugin variant. It is shared by
// every instance and must not be mutated after registration.
type Definition struct {
	ID           string
	Title        string
	Category     string
	Path         string
	Description  string
	Translatable bool
	Methods      []string
	Arguments    []Argument
	ResponseCode int
	Context      map[string]ContextDefinition
	// Cache is the plugin's own contribution; nil contributes nothing.
	Cache *cache.Metadata
}

// Argument describes one value a definition accepts in the request body.
type Argument struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// RouteSpec is the route descriptor handed to ProcessRoute before the route
// is installed.
type RouteSpec struct {
	Name         string
	Path         string
	Methods      []string
	Requirements map[string]string
	Options      map[string]string
}

// AddRequirements merges reqs into the route's requirements.
func (r *RouteSpec) AddRequirements(reqs map[string]string) {
	if r.Requirements == nil {
		r.Requirements = make(map[string]string, len(reqs))
	}
	for k, v := range reqs {
		r.Requirements[k] = v
	}
}

// Requirement returns a requirement value, "" when unset.
func (r *RouteSpec) Requirement(key string) string { return r.Requirements[key] }

// RouteMatch is what the routing layer knows about the route that matched.
type RouteMatch struct {
	Name    string
	Pattern string
	Params  map[string]string
}

// Param returns a matched path parameter.
func (m RouteMatch) Param(key string) string { return m.Params[key] }

// ServiceDefinition is the contract every plugin variant implements.
type ServiceDefinition interface {
	cache.Cacheable

	PluginID() string
	Title() string
	Category() string
	Path() string
	Description() string
	SupportsTranslation() bool
	Methods() []string
	Arguments() []Argument
	ResponseCode() int
	ContextDefinitions() map[string]ContextDefinition

	// ProcessRoute runs once while the route table is built.
	ProcessRoute(route *RouteSpec)
	// ProcessRequest is the domain logic. The returned value is serialized.
	ProcessRequest(ctx context.Context, inv *Invocation) (any, error)
	// ProcessResponse may adjust the assembled envelope before it is sent.
	ProcessResponse(env *Envelope)
}

func (d Definition) normalized() Definition {
	d.ID = strings.TrimSpace(d.ID)
	d.Path = strings.Trim(strings.TrimSpace(d.Path), "/")
	if len(d.Methods) == 0 {
		d.Methods = []string{http.MethodGet}
	}
	methods := make([]string, 0, len(d.Methods))
	for _, m := range d.Methods {
		methods = append(methods, strings.ToUpper(strings.TrimSpace(m)))
	}
	d.Methods = methods
	if d.ResponseCode == 0 {
		d.ResponseCode = http.StatusOK
	}
	return d
}
