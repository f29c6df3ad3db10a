package dispatch

import (
	"net/http"
	"slices"
	"strings"

	"github.com/joeydtaylor/steeze-services/pkg/csrf"
	"github.com/joeydtaylor/steeze-services/pkg/manifest"
	"github.com/joeydtaylor/steeze-services/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-services/pkg/service"
)

var (
	errUnauthorized = service.NewDomainError(http.StatusUnauthorized, "unauthorized", "authentication required")
	errForbidden    = service.NewDomainError(http.StatusForbidden, "forbidden", "access denied")
	errCSRF         = service.NewDomainError(http.StatusForbidden, "csrf_token_invalid", "missing or invalid "+csrf.HeaderName+" header")
)

// checkRequirements enforces what ProcessRoute put on the route. A route
// without an _access requirement is closed.
func (s *Server) checkRequirements(r *http.Request, spec service.RouteSpec) error {
	if !strings.EqualFold(spec.Requirement(service.RequireAccess), "TRUE") {
		return errForbidden
	}
	ctx := r.Context()
	u, authed := auth.UserFrom(ctx)

	if v := spec.Requirement(service.RequireAuth); v != "" && !strings.EqualFold(v, "none") && !authed {
		return errUnauthorized
	}
	if v := spec.Requirement(service.RequireRole); v != "" {
		if !authed {
			return errUnauthorized
		}
		ok := false
		for _, role := range strings.Split(v, ",") {
			if s.hasRole(r, strings.TrimSpace(role)) {
				ok = true
				break
			}
		}
		if !ok {
			return errForbidden
		}
	}
	if strings.EqualFold(spec.Requirement(service.RequireCSRFToken), "TRUE") {
		seed := s.csrf.SessionSeed(nil, r, u.Username, false)
		if !s.csrf.Valid(csrf.WithSeed(ctx, seed), s.opts.CSRFRealm, r.Header.Get(csrf.HeaderName)) {
			return errCSRF
		}
	}
	return nil
}

// checkGuard enforces the manifest guard of a resource. Without auth
// middleware only unguarded resources are reachable.
func (s *Server) checkGuard(r *http.Request, g manifest.Guard) error {
	if g.Empty() {
		return nil
	}
	u, authed := auth.UserFrom(r.Context())
	if !authed {
		return errUnauthorized
	}
	if len(g.Users) > 0 {
		if slices.Contains(g.Users, u.Username) || s.isAdmin(r) {
			return nil
		}
		return errForbidden
	}
	if len(g.Roles) > 0 {
		for _, role := range g.Roles {
			if s.hasRole(r, role) {
				return nil
			}
		}
		return errForbidden
	}
	return nil
}

func (s *Server) hasRole(r *http.Request, role string) bool {
	if s.auth != nil {
		return s.auth.HasRole(r.Context(), role)
	}
	u, ok := auth.UserFrom(r.Context())
	return ok && u.Role.Name == role
}

func (s *Server) isAdmin(r *http.Request) bool {
	return s.auth != nil && s.auth.IsAdmin(r.Context())
}
