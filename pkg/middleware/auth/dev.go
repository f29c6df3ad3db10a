package auth

import "net/http"

// devUserFromHeaders trusts X-Dev-User/X-Dev-Role/X-Dev-Provider. Only
// consulted when AUTH_DEV_BYPASS=true.
func devUserFromHeaders(r *http.Request) User {
	name := r.Header.Get("X-Dev-User")
	if name == "" {
		return User{}
	}
	provider := r.Header.Get("X-Dev-Provider")
	if provider == "" {
		provider = "dev"
	}
	return User{
		Username:             name,
		AuthenticationSource: AuthenticationSource{Provider: provider},
		Role:                 Role{Name: r.Header.Get("X-Dev-Role")},
	}
}
