package definitions

import (
	"context"

	"github.com/joeydtaylor/steeze-services/pkg/cache"
	"github.com/joeydtaylor/steeze-services/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-services/pkg/service"
)

// WhoAmI describes the calling user.
type WhoAmI struct {
	service.Base
}

type whoAmIResult struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username"`
	Role          string `json:"role"`
	Provider      string `json:"provider,omitempty"`
}

func whoAmIDefinition() service.Definition {
	return service.Definition{
		ID:          WhoAmIID,
		Title:       "Current user",
		Category:    "system",
		Path:        "user/current",
		Description: "Returns the authenticated caller, or an anonymous result.",
		Context: map[string]service.ContextDefinition{
			service.AttrUser: {
				DataType: "entity:user",
				Label:    "User",
				Cache:    ptr(cache.New().WithContexts("user")),
			},
		},
	}
}

func (w *WhoAmI) ProcessRequest(_ context.Context, inv *service.Invocation) (any, error) {
	// Anonymous responses still vary by caller.
	inv.Cache.AddContexts("user")

	v, ok := inv.Context.Get(service.AttrUser)
	if !ok {
		return whoAmIResult{}, nil
	}
	u, ok := v.Value.(auth.User)
	if !ok || !u.Authenticated() {
		return whoAmIResult{}, nil
	}
	return whoAmIResult{
		Authenticated: true,
		Username:      u.Username,
		Role:          u.Role.Name,
		Provider:      u.AuthenticationSource.Provider,
	}, nil
}
