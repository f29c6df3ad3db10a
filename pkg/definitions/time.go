package definitions

import (
	"context"
	"time"

	"github.com/joeydtaylor/steeze-services/pkg/cache"
	"github.com/joeydtaylor/steeze-services/pkg/service"
)

// Time reports the server clock. Its responses are never cached.
type Time struct {
	service.Base
	now func() time.Time
}

func timeDefinition() service.Definition {
	return service.Definition{
		ID:          TimeID,
		Title:       "Server time",
		Category:    "system",
		Path:        "time",
		Description: "Returns the current server time in RFC 3339.",
		Cache:       ptr(cache.New().WithMaxAge(0)),
	}
}

func (t *Time) ProcessRequest(_ context.Context, inv *service.Invocation) (any, error) {
	now := t.now().UTC()
	inv.Messages.Add(service.MessageStatus, "clock read at "+now.Format(time.RFC3339))
	return map[string]any{"now": now.Format(time.RFC3339)}, nil
}
