// Package definitions holds the service definitions shipped with servicesd.
package definitions

import (
	"time"

	"github.com/joeydtaylor/steeze-services/pkg/cache"
	"github.com/joeydtaylor/steeze-services/pkg/relay"
	"github.com/joeydtaylor/steeze-services/pkg/service"
)

// Definition ids.
const (
	DoubleID  = "arithmetic:double"
	WhoAmIID  = "system:whoami"
	TimeID    = "system:time"
	IndexID   = "system:index"
	PublishID = "relay:publish"
)

// Deps are shared by every instance created from the registry.
type Deps struct {
	Clock     func() time.Time
	Publisher relay.Publisher
	// Registry is read by system:index; defaults to the one registered into.
	Registry *service.Registry
}

// Register adds every built-in definition to reg.
func Register(reg *service.Registry, d Deps) error {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Publisher == nil {
		d.Publisher = relay.Noop{}
	}
	if d.Registry == nil {
		d.Registry = reg
	}

	regs := []struct {
		def  service.Definition
		ctor service.Constructor
	}{
		{doubleDefinition(), func(def service.Definition) service.ServiceDefinition { return &Double{Base: service.NewBase(def)} }},
		{whoAmIDefinition(), func(def service.Definition) service.ServiceDefinition { return &WhoAmI{Base: service.NewBase(def)} }},
		{timeDefinition(), func(def service.Definition) service.ServiceDefinition {
			return &Time{Base: service.NewBase(def), now: d.Clock}
		}},
		{indexDefinition(), func(def service.Definition) service.ServiceDefinition {
			return &Index{Base: service.NewBase(def), registry: d.Registry}
		}},
		{publishDefinition(), func(def service.Definition) service.ServiceDefinition {
			return &Publish{Base: service.NewBase(def), pub: d.Publisher}
		}},
	}
	for _, r := range regs {
		if err := reg.Register(r.def, r.ctor); err != nil {
			return err
		}
	}
	return nil
}

func ptr(m cache.Metadata) *cache.Metadata { return &m }
