package auth

import (
	"context"

	"github.com/joeydtaylor/steeze-services/pkg/cache"
)

type Role struct {
	Name string `json:"name"`
}

type AuthenticationSource struct {
	Provider string `json:"provider"`
}

type User struct {
	Username             string               `json:"username"`
	AuthenticationSource AuthenticationSource `json:"authenticationSource"`
	Role                 Role                 `json:"role"`
}

// Authenticated reports whether u names a user.
func (u User) Authenticated() bool { return u.Username != "" }

// Cacheability makes a response that read the user vary per user.
func (u User) Cacheability() cache.Metadata {
	m := cache.New().WithContexts("user")
	if u.Authenticated() {
		m = m.WithTags("user:" + u.Username)
	}
	return m
}

type contextKey struct{ name string }

var userCtxKey = &contextKey{"user"}

// WithUser stores u on ctx.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userCtxKey, u)
}

// UserFrom returns the user stored by the middleware, if any.
func UserFrom(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userCtxKey).(User)
	return u, ok && u.Authenticated()
}
