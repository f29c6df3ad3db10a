package definitions

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/joeydtaylor/steeze-services/pkg/cache"
	"github.com/joeydtaylor/steeze-services/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-services/pkg/relay"
	"github.com/joeydtaylor/steeze-services/pkg/service"
)

// Publish forwards the request payload to the relay under the path topic.
type Publish struct {
	service.Base
	pub relay.Publisher
}

func publishDefinition() service.Definition {
	return service.Definition{
		ID:           PublishID,
		Title:        "Publish",
		Category:     "relay",
		Path:         "publish/{topic}",
		Description:  "Publishes the payload to the relay.",
		Methods:      []string{http.MethodPost},
		ResponseCode: http.StatusAccepted,
		Arguments: []service.Argument{
			{Name: "payload", Type: service.TypeAny, Description: "Message body.", Required: true},
			{Name: "headers", Type: "object", Description: "String headers sent with the message."},
		},
		Context: map[string]service.ContextDefinition{
			"topic": {
				DataType:    service.TypeString,
				Label:       "Topic",
				Required:    true,
				Constraints: service.Constraints{Pattern: `^[A-Za-z0-9._-]+$`},
			},
			service.AttrUser: {DataType: "entity:user"},
		},
		Cache: ptr(cache.Uncacheable()),
	}
}

func (p *Publish) ProcessRoute(route *service.RouteSpec) {
	p.Base.ProcessRoute(route)
	route.AddRequirements(map[string]string{service.RequireAuth: "required"})
}

func (p *Publish) ProcessRequest(ctx context.Context, inv *service.Invocation) (any, error) {
	if err := inv.Context.Require("topic"); err != nil {
		return nil, err
	}
	topic, _ := inv.Context.Text("topic")

	args, err := p.DecodeArguments(inv)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(args["payload"])
	if err != nil {
		return nil, service.NewDomainError(http.StatusBadRequest, "invalid_argument", "payload is not encodable")
	}

	headers := map[string]string{"definition": p.PluginID()}
	if h, ok := args["headers"].(map[string]any); ok {
		for k, v := range h {
			if s, ok := v.(string); ok {
				headers[k] = s
			}
		}
	}
	if v, ok := inv.Context.Get(service.AttrUser); ok {
		if u, ok := v.Value.(auth.User); ok {
			headers["user"] = u.Username
		}
	}

	if err := p.pub.Publish(ctx, relay.Message{Topic: topic, Body: body, Headers: headers}); err != nil {
		return nil, &service.DomainError{
			Status:  http.StatusBadGateway,
			Code:    "relay_failed",
			Message: "message could not be relayed",
			Err:     err,
		}
	}
	return map[string]any{"accepted": true, "topic": topic}, nil
}
