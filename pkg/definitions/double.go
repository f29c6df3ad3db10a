package definitions

import (
	"context"
	"math"
	"net/http"

	"github.com/joeydtaylor/steeze-services/pkg/cache"
	"github.com/joeydtaylor/steeze-services/pkg/service"
)

// Double returns twice the integer in the path.
type Double struct {
	service.Base
}

func doubleDefinition() service.Definition {
	return service.Definition{
		ID:          DoubleID,
		Title:       "Double",
		Category:    "arithmetic",
		Path:        "double/{id}",
		Description: "Returns twice the given integer.",
		Context: map[string]service.ContextDefinition{
			"id": {
				DataType: service.TypeInteger,
				Label:    "Number",
				Required: true,
				Cache:    ptr(cache.New().WithContexts("url.path")),
			},
		},
	}
}

func (d *Double) ProcessRequest(_ context.Context, inv *service.Invocation) (any, error) {
	n, ok := inv.Context.Int("id")
	if !ok {
		return nil, service.NewDomainError(http.StatusBadRequest, "missing_argument", `missing required context "id"`)
	}
	if n > math.MaxInt64/2 || n < math.MinInt64/2 {
		return nil, service.NewDomainError(http.StatusBadRequest, "invalid_argument", "id is too large to double")
	}
	return map[string]any{"value": 2 * n}, nil
}
