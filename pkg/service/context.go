// pkg/service/context.go
package service

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/joeydtaylor/steeze-services/pkg/cache"
)

// Context data types understood by the binder. Any "entity:<kind>" type is
// accepted as-is when the attribute value is non-nil.
const (
	TypeAny     = "any"
	TypeString  = "string"
	TypeInteger = "integer"
	TypeFloat   = "float"
	TypeBoolean = "boolean"
)

// ContextDefinition declares one named input a definition may consume.
type ContextDefinition struct {
	DataType    string
	Label       string
	Description string
	// Required is advisory: the binder never fails on an absent value.
	Required    bool
	Constraints Constraints
	// Cache is the contract every value bound under this id carries.
	Cache *cache.Metadata
}

// Constraints restrict bound values.
type Constraints struct {
	Min           *float64
	Max           *float64
	AllowedValues []string
	Pattern       string
}

// ContextValue is one bound, typed input.
type ContextValue struct {
	ID         string
	Definition ContextDefinition
	Value      any
}

// Cacheability merges the definition's contract with the value's own one.
func (v ContextValue) Cacheability() cache.Metadata {
	m := cache.New()
	if v.Definition.Cache != nil {
		m = m.Merge(*v.Definition.Cache)
	}
	if c, ok := v.Value.(cache.Cacheable); ok {
		m = m.Merge(c.Cacheability())
	}
	return m
}

// ExecutionContext maps context ids to bound values for a single request.
type ExecutionContext struct {
	values map[string]ContextValue
}

func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{values: map[string]ContextValue{}}
}

func (c *ExecutionContext) Set(v ContextValue) { c.values[v.ID] = v }

func (c *ExecutionContext) Get(id string) (ContextValue, bool) {
	v, ok := c.values[id]
	return v, ok
}

func (c *ExecutionContext) Has(id string) bool {
	_, ok := c.values[id]
	return ok
}

// Value returns the raw bound value or nil.
func (c *ExecutionContext) Value(id string) any { return c.values[id].Value }

func (c *ExecutionContext) Int(id string) (int64, bool) {
	n, ok := c.values[id].Value.(int64)
	return n, ok
}

func (c *ExecutionContext) Float(id string) (float64, bool) {
	f, ok := c.values[id].Value.(float64)
	return f, ok
}

func (c *ExecutionContext) Text(id string) (string, bool) {
	s, ok := c.values[id].Value.(string)
	return s, ok
}

func (c *ExecutionContext) Bool(id string) (bool, bool) {
	b, ok := c.values[id].Value.(bool)
	return b, ok
}

// IDs lists bound ids in sorted order.
func (c *ExecutionContext) IDs() []string {
	out := make([]string, 0, len(c.values))
	for id := range c.values {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Values lists bound values ordered by id.
func (c *ExecutionContext) Values() []ContextValue {
	ids := c.IDs()
	out := make([]ContextValue, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.values[id])
	}
	return out
}

func (c *ExecutionContext) Len() int { return len(c.values) }

// Require fails with a 400 DomainError naming the first absent id.
func (c *ExecutionContext) Require(ids ...string) error {
	for _, id := range ids {
		if !c.Has(id) {
			return &DomainError{
				Status:  http.StatusBadRequest,
				Code:    "missing_argument",
				Message: fmt.Sprintf("missing required argument %q", id),
			}
		}
	}
	return nil
}
