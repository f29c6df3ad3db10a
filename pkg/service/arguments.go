// pkg/service/arguments.go
package service

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
)

// ValidateArguments checks presence of required arguments and the primitive
// type of every declared argument that is present.
func ValidateArguments(values map[string]any, args []Argument) error {
	for _, a := range args {
		v, ok := values[a.Name]
		if !ok || v == nil {
			if a.Required {
				return &DomainError{
					Status:  http.StatusBadRequest,
					Code:    "missing_argument",
					Message: fmt.Sprintf("missing required argument %q", a.Name),
				}
			}
			continue
		}
		if !argumentTypeMatches(a.Type, v) {
			return &DomainError{
				Status:  http.StatusBadRequest,
				Code:    "invalid_argument",
				Message: fmt.Sprintf("argument %q must be %s", a.Name, a.Type),
			}
		}
	}
	return nil
}

func argumentTypeMatches(t string, v any) bool {
	switch t {
	case "", TypeAny:
		return true
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeInteger:
		switch n := v.(type) {
		case int, int64:
			return true
		case float64:
			return n == math.Trunc(n)
		case json.Number:
			_, err := n.Int64()
			return err == nil
		}
	case TypeFloat, "number":
		switch v.(type) {
		case int, int64, float64, json.Number:
			return true
		}
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	}
	return false
}
