package dispatch

import (
	"context"
	"fmt"

	"github.com/joeydtaylor/steeze-services/pkg/endpoint"
	"github.com/joeydtaylor/steeze-services/pkg/manifest"
	"github.com/joeydtaylor/steeze-services/pkg/service"
)

// Route option keys carrying the dispatch target.
const (
	OptionEndpoint   = "_endpoint"
	OptionDefinition = "_definition"
)

// RouteEntry is one processed route of the table.
type RouteEntry struct {
	Spec     service.RouteSpec
	Endpoint string
	Resource manifest.Resource
}

// Definition is the target definition id.
func (e RouteEntry) Definition() string { return e.Resource.Definition }

// BuildTable creates a route for every enabled resource of every endpoint.
// ProcessRoute runs here, once per route, on a throwaway instance.
func BuildTable(ctx context.Context, store endpoint.Store) ([]RouteEntry, error) {
	eps, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []RouteEntry
	seen := map[string]string{}
	for _, ep := range eps {
		for _, res := range ep.Resources {
			if res.Disabled {
				continue
			}
			factory, err := store.ResolveDefinition(ctx, ep, res.Definition)
			if err != nil {
				return nil, fmt.Errorf("endpoint %q: %w", ep.ID, err)
			}
			def := factory()
			spec := service.RouteSpec{
				Name:         "services." + ep.ID + "." + def.PluginID(),
				Path:         manifest.JoinRoute(ep.Path, def.Path()),
				Methods:      def.Methods(),
				Requirements: map[string]string{},
				Options: map[string]string{
					OptionEndpoint:   ep.ID,
					OptionDefinition: def.PluginID(),
				},
			}
			def.ProcessRoute(&spec)
			for _, m := range spec.Methods {
				key := m + " " + spec.Path
				if other, dup := seen[key]; dup {
					return nil, fmt.Errorf("route %s of %s collides with %s", key, spec.Name, other)
				}
				seen[key] = spec.Name
			}
			out = append(out, RouteEntry{Spec: spec, Endpoint: ep.ID, Resource: res})
		}
	}
	return out, nil
}
