package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Middleware resolves the caller into a User on the request context:
// dev headers (bypass only), then the assertion cookie, then the session
// API. A session cookie the API rejects is a 401; no cookies at all
// continues anonymously.
func (m *Middleware) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.opts.DevBypass {
				if u := devUserFromHeaders(r); u.Authenticated() {
					next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
					return
				}
			}

			if ac, _ := r.Cookie(m.opts.AssertionCookie); ac != nil && ac.Value != "" && m.getKey() != nil {
				u, err := m.validateAssertion(ac.Value)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
					return
				}
				m.log.Debug("assertion rejected", zap.Error(err))
			}

			if m.opts.SessionCookie != "" {
				if c, err := r.Cookie(m.opts.SessionCookie); err == nil && c.Value != "" {
					u, err := m.validateSession(r.Context(), c)
					if err == nil && u.Authenticated() {
						next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
						return
					}
					m.log.Debug("session rejected", zap.Error(err))
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) validateSession(ctx context.Context, c *http.Cookie) (User, error) {
	if m.opts.SessionAPI == "" {
		return User{}, fmt.Errorf("SESSION_STATE_API not set")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.opts.SessionAPI, nil)
	if err != nil {
		return User{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.AddCookie(c)

	res, err := m.opts.HTTPClient.Do(req)
	if err != nil {
		return User{}, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return User{}, fmt.Errorf("session api status %d", res.StatusCode)
	}
	var u User
	if err := json.NewDecoder(res.Body).Decode(&u); err != nil {
		return User{}, err
	}
	return u, nil
}
