// pkg/service/registry.go
package service

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
)

// Factory creates a fresh definition instance for one request.
type Factory func() ServiceDefinition

// Constructor builds an instance from the registered metadata.
type Constructor func(def Definition) ServiceDefinition

type plugin struct {
	def  Definition
	ctor Constructor
}

// Registry maps plugin ids to constructors. Definitions are immutable once
// registered; lookups are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]plugin
}

func NewRegistry() *Registry { return &Registry{plugins: map[string]plugin{}} }

// Register validates def and makes it available under def.ID.
func (r *Registry) Register(def Definition, ctor Constructor) error {
	if ctor == nil {
		return errors.New("service: constructor required")
	}
	def = def.normalized()
	if err := validateDefinition(def); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.plugins[def.ID]; dup {
		return fmt.Errorf("service: definition %q already registered", def.ID)
	}
	r.plugins[def.ID] = plugin{def: def, ctor: ctor}
	return nil
}

func (r *Registry) MustRegister(def Definition, ctor Constructor) {
	if err := r.Register(def, ctor); err != nil {
		panic(err)
	}
}

// Lookup returns a factory for id.
func (r *Registry) Lookup(id string) (Factory, bool) {
	r.mu.RLock()
	p, ok := r.plugins[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return func() ServiceDefinition { return p.ctor(p.def) }, true
}

// Definition returns the registered metadata for id.
func (r *Registry) Definition(id string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[id]
	return p.def, ok
}

// IDs lists registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.plugins))
	for id := range r.plugins {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func validateDefinition(def Definition) error {
	if def.ID == "" {
		return errors.New("service: definition id required")
	}
	if def.ResponseCode < 100 || def.ResponseCode > 599 {
		return fmt.Errorf("service: %s: invalid response code %d", def.ID, def.ResponseCode)
	}
	for _, m := range def.Methods {
		switch m {
		case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions:
		default:
			return fmt.Errorf("service: %s: unsupported method %q", def.ID, m)
		}
	}
	for id, cd := range def.Context {
		if !KnownDataType(cd.DataType) {
			return fmt.Errorf("service: %s: context %q has unknown type %q", def.ID, id, cd.DataType)
		}
	}
	return nil
}
