package manifest

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Endpoint binds a path segment to a set of service definitions.
type Endpoint struct {
	ID        string     `toml:"id"`
	Label     string     `toml:"label"`
	Path      string     `toml:"path"`
	Resources []Resource `toml:"resource"`
}

// Resource enables one service definition on an endpoint.
type Resource struct {
	Definition string `toml:"definition"`
	Disabled   bool   `toml:"disabled"`
	Guard      Guard  `toml:"guard"`
	Policy     Policy `toml:"policy"`
}

type Guard struct {
	Roles       []string `toml:"roles"`
	Users       []string `toml:"users"`
	RequireAuth bool     `toml:"require_auth"`
}

// Empty reports whether the guard lets everyone through.
func (g Guard) Empty() bool { return !g.RequireAuth && len(g.Roles) == 0 && len(g.Users) == 0 }

type Policy struct {
	TimeoutMS int        `toml:"timeout_ms"`
	RateLimit *RateLimit `toml:"rate_limit"`
}

type RateLimit struct {
	RPS   int `toml:"rps"`
	Burst int `toml:"burst"`
}

// Enabled lists the resources that are not disabled, in manifest order.
func (e Endpoint) Enabled() []Resource {
	out := make([]Resource, 0, len(e.Resources))
	for _, r := range e.Resources {
		if !r.Disabled {
			out = append(out, r)
		}
	}
	return out
}

// Resource returns the resource for definition id, enabled or not.
func (e Endpoint) Resource(definition string) (Resource, bool) {
	for _, r := range e.Resources {
		if r.Definition == definition {
			return r, true
		}
	}
	return Resource{}, false
}

func (e *Endpoint) normalize() {
	e.ID = strings.TrimSpace(e.ID)
	e.Path = strings.Trim(cleanRoute(e.Path), "/")
	for i := range e.Resources {
		e.Resources[i].Definition = strings.TrimSpace(e.Resources[i].Definition)
	}
}

func (e *Endpoint) validate() error {
	if e.ID == "" {
		return errors.New("id is required")
	}
	if e.Path == "" {
		return errors.New("path is required")
	}
	if strings.ContainsAny(e.Path, "{}*") {
		return fmt.Errorf("path %q must not contain route patterns", e.Path)
	}
	seen := map[string]struct{}{}
	for i, r := range e.Resources {
		if r.Definition == "" {
			return fmt.Errorf("resource %d: definition is required", i)
		}
		if _, dup := seen[r.Definition]; dup {
			return fmt.Errorf("resource %d: duplicate definition %q", i, r.Definition)
		}
		seen[r.Definition] = struct{}{}
		if err := r.Policy.validate(); err != nil {
			return fmt.Errorf("resource %q: %w", r.Definition, err)
		}
	}
	return nil
}

func (p Policy) validate() error {
	if p.TimeoutMS < 0 {
		return errors.New("policy.timeout_ms must be >= 0")
	}
	if rl := p.RateLimit; rl != nil {
		if rl.RPS < 0 || rl.Burst < 0 {
			return errors.New("policy.rate_limit values must be >= 0")
		}
		if rl.RPS == 0 && rl.Burst > 0 {
			return errors.New("policy.rate_limit.burst needs rps > 0")
		}
	}
	return nil
}

// cleanRoute returns p as a clean absolute route path.
func cleanRoute(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// JoinRoute joins route segments into a clean absolute path.
func JoinRoute(parts ...string) string {
	return cleanRoute(path.Join(parts...))
}
