package manifest

import (
	"errors"
	"fmt"
	"strings"
)

// Defaults applied by Normalize.
const (
	DefaultFormat          = "json"
	DefaultPermanentMaxAge = 3600
	DefaultCSRFPath        = "/services/session/token"
	DefaultCSRFRealm       = "services"
	DefaultCSRFCookie      = "services_session"
)

// Config is the top-level services manifest.
type Config struct {
	Server    Server     `toml:"server"`
	CSRF      CSRF       `toml:"csrf"`
	Endpoints []Endpoint `toml:"endpoint"`
}

// Server holds response rendering knobs shared by every endpoint.
type Server struct {
	DefaultFormat     string `toml:"default_format"`
	PermanentMaxAge   int    `toml:"permanent_max_age"`
	CacheDebugHeaders bool   `toml:"cache_debug_headers"`
	CSRFPath          string `toml:"csrf_path"`
}

// CSRF configures the token endpoint. The secret itself comes from the
// environment, never from the manifest.
type CSRF struct {
	Realm      string `toml:"realm"`
	CookieName string `toml:"cookie_name"`
	SecureOnly bool   `toml:"secure_cookie"`
}

// Normalize fills defaults and canonicalizes paths in place.
func (c *Config) Normalize() {
	s := &c.Server
	s.DefaultFormat = strings.ToLower(strings.TrimSpace(s.DefaultFormat))
	if s.DefaultFormat == "" {
		s.DefaultFormat = DefaultFormat
	}
	if s.PermanentMaxAge == 0 {
		s.PermanentMaxAge = DefaultPermanentMaxAge
	}
	s.CSRFPath = cleanRoute(s.CSRFPath)
	if s.CSRFPath == "/" {
		s.CSRFPath = DefaultCSRFPath
	}
	if strings.TrimSpace(c.CSRF.Realm) == "" {
		c.CSRF.Realm = DefaultCSRFRealm
	}
	if strings.TrimSpace(c.CSRF.CookieName) == "" {
		c.CSRF.CookieName = DefaultCSRFCookie
	}
	for i := range c.Endpoints {
		c.Endpoints[i].normalize()
	}
}

// Validate normalizes the manifest and checks it for structural errors.
// Whether resource definitions exist is checked by the endpoint store.
func (c *Config) Validate() error {
	c.Normalize()
	if c.Server.PermanentMaxAge < 0 {
		return errors.New("server.permanent_max_age must be >= 0")
	}
	if len(c.Endpoints) == 0 {
		return errors.New("at least one [[endpoint]] is required")
	}
	ids := map[string]struct{}{}
	paths := map[string]string{}
	for i := range c.Endpoints {
		ep := &c.Endpoints[i]
		if err := ep.validate(); err != nil {
			return fmt.Errorf("endpoint %d (%s): %w", i, ep.ID, err)
		}
		if _, dup := ids[ep.ID]; dup {
			return fmt.Errorf("endpoint %d: duplicate id %q", i, ep.ID)
		}
		ids[ep.ID] = struct{}{}
		if other, dup := paths[ep.Path]; dup {
			return fmt.Errorf("endpoint %q: path %q already used by %q", ep.ID, ep.Path, other)
		}
		paths[ep.Path] = ep.ID
		if "/"+ep.Path == c.Server.CSRFPath {
			return fmt.Errorf("endpoint %q: path collides with server.csrf_path", ep.ID)
		}
	}
	return nil
}

// Endpoint returns the endpoint with id.
func (c *Config) Endpoint(id string) (Endpoint, bool) {
	for _, ep := range c.Endpoints {
		if ep.ID == id {
			return ep, true
		}
	}
	return Endpoint{}, false
}
