// pkg/service/binder.go
package service

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Attributes are the named values the routing layer extracted from a request.
type Attributes map[string]any

// Bind builds an ExecutionContext from attrs for every declared context id.
// Ids the request does not carry are skipped; presence checks belong to the
// definition. A value that cannot be converted or violates a constraint fails
// with a *BindError.
func Bind(attrs Attributes, defs map[string]ContextDefinition) (*ExecutionContext, error) {
	ec := NewExecutionContext()
	for id, def := range defs {
		raw, ok := attrs[id]
		if !ok {
			continue
		}
		v, err := convert(def.DataType, raw)
		if err != nil {
			return nil, &BindError{ContextID: id, Err: err}
		}
		if err := checkConstraints(def.Constraints, v); err != nil {
			return nil, &BindError{ContextID: id, Err: err}
		}
		ec.Set(ContextValue{ID: id, Definition: def, Value: v})
	}
	return ec, nil
}

// KnownDataType reports whether the binder understands t.
func KnownDataType(t string) bool {
	switch t {
	case "", TypeAny, TypeString, TypeInteger, TypeFloat, TypeBoolean:
		return true
	}
	return strings.HasPrefix(t, "entity:") && len(t) > len("entity:")
}

func convert(dataType string, raw any) (any, error) {
	switch dataType {
	case "", TypeAny:
		return raw, nil
	case TypeString:
		switch t := raw.(type) {
		case string:
			return t, nil
		case fmt.Stringer:
			return t.String(), nil
		}
	case TypeInteger:
		switch t := raw.(type) {
		case int:
			return int64(t), nil
		case int32:
			return int64(t), nil
		case int64:
			return t, nil
		case float64:
			if t < math.MinInt64 || t >= math.MaxInt64 {
				return nil, fmt.Errorf("%v is out of integer range", t)
			}
			if t == math.Trunc(t) {
				return int64(t), nil
			}
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not an integer", t)
			}
			return n, nil
		}
	case TypeFloat:
		switch t := raw.(type) {
		case float64:
			return t, nil
		case float32:
			return float64(t), nil
		case int:
			return float64(t), nil
		case int64:
			return float64(t), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not a number", t)
			}
			return f, nil
		}
	case TypeBoolean:
		switch t := raw.(type) {
		case bool:
			return t, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(t))
			if err != nil {
				return nil, fmt.Errorf("%q is not a boolean", t)
			}
			return b, nil
		}
	default:
		if strings.HasPrefix(dataType, "entity:") {
			if raw == nil {
				return nil, errors.New("entity value is nil")
			}
			return raw, nil
		}
		return nil, fmt.Errorf("unknown data type %q", dataType)
	}
	return nil, fmt.Errorf("cannot use %T as %s", raw, dataType)
}

func checkConstraints(c Constraints, v any) error {
	if c.Min != nil || c.Max != nil {
		var f float64
		switch t := v.(type) {
		case int64:
			f = float64(t)
		case float64:
			f = t
		default:
			return fmt.Errorf("range constraint on non-numeric %T", v)
		}
		if c.Min != nil && f < *c.Min {
			return fmt.Errorf("%v is below minimum %v", v, *c.Min)
		}
		if c.Max != nil && f > *c.Max {
			return fmt.Errorf("%v is above maximum %v", v, *c.Max)
		}
	}
	if len(c.AllowedValues) > 0 {
		s := fmt.Sprint(v)
		found := false
		for _, a := range c.AllowedValues {
			if a == s {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%q is not an allowed value", s)
		}
	}
	if c.Pattern != "" {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("pattern constraint on non-string %T", v)
		}
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return fmt.Errorf("bad pattern: %w", err)
		}
		if !re.MatchString(s) {
			return fmt.Errorf("%q does not match %s", s, c.Pattern)
		}
	}
	return nil
}
