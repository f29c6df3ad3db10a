// Package dispatch turns matched routes into service responses: it resolves
// endpoint and definition ids, builds the route table, enforces route
// requirements and resource policies, and writes envelopes.
package dispatch

import (
	"context"
	"net/http"

	"github.com/joeydtaylor/steeze-services/pkg/endpoint"
	"github.com/joeydtaylor/steeze-services/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-services/pkg/service"
	"go.uber.org/zap"
)

// Dispatcher resolves (endpoint, definition) pairs and drives the pipeline.
// One definition instance is created per call.
type Dispatcher struct {
	store    endpoint.Store
	pipeline *service.Pipeline
	log      *zap.Logger
}

func NewDispatcher(store endpoint.Store, p *service.Pipeline, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{store: store, pipeline: p, log: log}
}

// Pipeline is the pipeline responses are built with.
func (d *Dispatcher) Pipeline() *service.Pipeline { return d.pipeline }

// Dispatch fails with a *service.NotFoundError when either id does not
// resolve; no envelope is built in that case.
func (d *Dispatcher) Dispatch(ctx context.Context, r *http.Request, match service.RouteMatch, endpointID, definitionID string) (*service.Envelope, error) {
	ep, err := d.store.Load(ctx, endpointID)
	if err != nil {
		d.log.Debug("endpoint not found", zap.String("endpoint", endpointID), zap.Error(err))
		return nil, err
	}
	factory, err := d.store.ResolveDefinition(ctx, ep, definitionID)
	if err != nil {
		d.log.Debug("definition not found", zap.String("endpoint", endpointID), zap.String("definition", definitionID), zap.Error(err))
		return nil, err
	}
	return d.pipeline.BuildRequestResponse(ctx, factory(), r, match, Attributes(ctx, ep, definitionID, match))
}

// Attributes collects what the binder may read: route parameters, the
// caller, and the endpoint being served.
func Attributes(ctx context.Context, ep endpoint.ServiceEndpoint, definitionID string, match service.RouteMatch) service.Attributes {
	attrs := make(service.Attributes, len(match.Params)+3)
	for k, v := range match.Params {
		attrs[k] = v
	}
	if u, ok := auth.UserFrom(ctx); ok {
		attrs[service.AttrUser] = u
	}
	attrs[service.AttrEndpoint] = ep
	attrs[service.AttrDefinition] = definitionID
	return attrs
}
