// Package endpoint resolves service endpoints and the definitions they
// expose.
package endpoint

import (
	"context"
	"fmt"
	"sort"

	"github.com/joeydtaylor/steeze-services/pkg/cache"
	"github.com/joeydtaylor/steeze-services/pkg/manifest"
	"github.com/joeydtaylor/steeze-services/pkg/service"
)

// ServiceEndpoint is a registered path segment and the resources enabled on it.
type ServiceEndpoint struct {
	ID        string
	Label     string
	Path      string
	Resources []manifest.Resource
}

// CacheTag is invalidated whenever the endpoint's configuration changes.
func (e ServiceEndpoint) CacheTag() string { return "config:service_endpoint." + e.ID }

// Cacheability makes responses that read the endpoint depend on its config.
func (e ServiceEndpoint) Cacheability() cache.Metadata {
	return cache.New().WithTags(e.CacheTag())
}

// Resource returns the enabled resource for a definition id.
func (e ServiceEndpoint) Resource(definitionID string) (manifest.Resource, bool) {
	for _, r := range e.Resources {
		if r.Definition == definitionID && !r.Disabled {
			return r, true
		}
	}
	return manifest.Resource{}, false
}

// Store is the read side of endpoint configuration.
type Store interface {
	Load(ctx context.Context, id string) (ServiceEndpoint, error)
	ResolveDefinition(ctx context.Context, ep ServiceEndpoint, definitionID string) (service.Factory, error)
	List(ctx context.Context) ([]ServiceEndpoint, error)
}

// ManifestStore serves endpoints from a validated manifest. It is immutable
// and safe for concurrent use.
type ManifestStore struct {
	endpoints map[string]ServiceEndpoint
	order     []string
	registry  *service.Registry
}

// NewManifestStore indexes cfg and checks that every enabled resource names a
// registered definition.
func NewManifestStore(cfg manifest.Config, reg *service.Registry) (*ManifestStore, error) {
	s := &ManifestStore{endpoints: make(map[string]ServiceEndpoint, len(cfg.Endpoints)), registry: reg}
	for _, ep := range cfg.Endpoints {
		for _, r := range ep.Enabled() {
			if _, ok := reg.Definition(r.Definition); !ok {
				return nil, fmt.Errorf("endpoint %q: definition %q is not registered", ep.ID, r.Definition)
			}
		}
		s.endpoints[ep.ID] = ServiceEndpoint{
			ID:        ep.ID,
			Label:     ep.Label,
			Path:      ep.Path,
			Resources: append([]manifest.Resource(nil), ep.Resources...),
		}
		s.order = append(s.order, ep.ID)
	}
	return s, nil
}

func (s *ManifestStore) Load(_ context.Context, id string) (ServiceEndpoint, error) {
	ep, ok := s.endpoints[id]
	if !ok {
		return ServiceEndpoint{}, &service.NotFoundError{Kind: "endpoint", ID: id}
	}
	return ep, nil
}

// ResolveDefinition fails with a NotFoundError unless the definition is both
// enabled on ep and registered.
func (s *ManifestStore) ResolveDefinition(_ context.Context, ep ServiceEndpoint, definitionID string) (service.Factory, error) {
	if _, ok := ep.Resource(definitionID); !ok {
		return nil, &service.NotFoundError{Kind: "definition", ID: definitionID}
	}
	f, ok := s.registry.Lookup(definitionID)
	if !ok {
		return nil, &service.NotFoundError{Kind: "definition", ID: definitionID}
	}
	return f, nil
}

// List returns endpoints in manifest order.
func (s *ManifestStore) List(context.Context) ([]ServiceEndpoint, error) {
	out := make([]ServiceEndpoint, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.endpoints[id])
	}
	return out, nil
}

// IDs returns the endpoint ids sorted.
func (s *ManifestStore) IDs() []string {
	out := append([]string(nil), s.order...)
	sort.Strings(out)
	return out
}
