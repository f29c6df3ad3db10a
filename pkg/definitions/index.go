package definitions

import (
	"context"
	"net/http"

	"github.com/joeydtaylor/steeze-services/pkg/endpoint"
	"github.com/joeydtaylor/steeze-services/pkg/manifest"
	"github.com/joeydtaylor/steeze-services/pkg/service"
)

// Index lists the resources of the endpoint it is served on. The endpoint
// attribute carries its config tag, so the listing is invalidated with it.
type Index struct {
	service.Base
	registry *service.Registry
}

type indexEndpoint struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
	Path  string `json:"path"`
}

type indexResource struct {
	ID          string             `json:"id"`
	Title       string             `json:"title,omitempty"`
	Category    string             `json:"category,omitempty"`
	Description string             `json:"description,omitempty"`
	Path        string             `json:"path"`
	Methods     []string           `json:"methods"`
	Arguments   []service.Argument `json:"arguments,omitempty"`
}

type indexResult struct {
	Endpoint  indexEndpoint   `json:"endpoint"`
	Resources []indexResource `json:"resources"`
}

func indexDefinition() service.Definition {
	return service.Definition{
		ID:          IndexID,
		Title:       "Index",
		Category:    "system",
		Path:        "",
		Description: "Lists the resources enabled on this endpoint.",
		Context: map[string]service.ContextDefinition{
			service.AttrEndpoint: {DataType: "entity:service_endpoint", Label: "Endpoint", Required: true},
		},
	}
}

func (x *Index) ProcessRequest(_ context.Context, inv *service.Invocation) (any, error) {
	v, ok := inv.Context.Get(service.AttrEndpoint)
	if !ok {
		return nil, service.NewDomainError(http.StatusInternalServerError, "endpoint_unbound", "endpoint not available")
	}
	ep, ok := v.Value.(endpoint.ServiceEndpoint)
	if !ok {
		return nil, service.NewDomainError(http.StatusInternalServerError, "endpoint_unbound", "endpoint not available")
	}

	out := indexResult{
		Endpoint:  indexEndpoint{ID: ep.ID, Label: ep.Label, Path: manifest.JoinRoute(ep.Path)},
		Resources: []indexResource{},
	}
	for _, res := range ep.Resources {
		if res.Disabled {
			continue
		}
		def, ok := x.registry.Definition(res.Definition)
		if !ok {
			continue
		}
		out.Resources = append(out.Resources, indexResource{
			ID:          def.ID,
			Title:       def.Title,
			Category:    def.Category,
			Description: def.Description,
			Path:        manifest.JoinRoute(ep.Path, def.Path),
			Methods:     def.Methods,
			Arguments:   def.Arguments,
		})
	}
	return out, nil
}
