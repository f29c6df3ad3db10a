package auth

import (
	"context"
	"encoding/base64"
)

func (m *Middleware) GetUser(ctx context.Context) User {
	u, _ := ctx.Value(userCtxKey).(User)
	return u
}

func (m *Middleware) IsAuthenticated(ctx context.Context) bool {
	_, ok := UserFrom(ctx)
	return ok
}

func (m *Middleware) IsAdmin(ctx context.Context) bool {
	u, ok := UserFrom(ctx)
	return ok && m.opts.AdminRole != "" && u.Role.Name == m.opts.AdminRole
}

// HasRole is true for the named role and for admins.
func (m *Middleware) HasRole(ctx context.Context, role string) bool {
	u, ok := UserFrom(ctx)
	if !ok {
		return false
	}
	return u.Role.Name == role || m.IsAdmin(ctx)
}

// IsUser is true for the named user and for admins.
func (m *Middleware) IsUser(ctx context.Context, username string) bool {
	u, ok := UserFrom(ctx)
	if !ok {
		return false
	}
	return u.Username == username || m.IsAdmin(ctx)
}

func first(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}

func b64url(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }

// bytesToInt decodes a big-endian RSA exponent.
func bytesToInt(b []byte) int {
	n := 0
	for _, v := range b {
		n = n<<8 | int(v)
	}
	if n == 0 {
		return 65537
	}
	return n
}
