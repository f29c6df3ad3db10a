package auth

import (
	"errors"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

type assertionClaims struct {
	jwt.RegisteredClaims
	UID   string   `json:"uid"`
	Roles []string `json:"roles"`
	Role  string   `json:"role"`
}

// validateAssertion checks an RS256 assertion against the current key,
// issuer and audience.
func (m *Middleware) validateAssertion(raw string) (User, error) {
	pub := m.getKey()
	if pub == nil {
		return User{}, errors.New("assertion key not configured")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(m.opts.Leeway),
	}
	if m.opts.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.opts.Issuer))
	}

	var claims assertionClaims
	tok, err := jwt.NewParser(opts...).ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return pub, nil
	})
	if err != nil || !tok.Valid {
		return User{}, errors.New("invalid assertion")
	}
	if m.opts.Audience != "" && !slices.Contains(claims.Audience, m.opts.Audience) {
		return User{}, errors.New("bad audience")
	}

	username := first(claims.UID, claims.Subject)
	if username == "" {
		return User{}, errors.New("missing uid")
	}
	return User{
		Username:             username,
		AuthenticationSource: AuthenticationSource{Provider: "assert"},
		Role:                 Role{Name: first(claims.Role, first(claims.Roles...))},
	}, nil
}
