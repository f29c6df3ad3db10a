package auth

import "net/http"

// HTTPDoer is satisfied by *http.Client; used for the session API and key fetches.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}
