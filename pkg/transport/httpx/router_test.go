package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChiRouter(t *testing.T) {
	r := NewChi()
	var params map[string]string
	var pattern string
	r.Get("/api/double/{id}", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		params = URLParams(req)
		pattern = RoutePattern(req)
	}))
	r.Patch("/api/item/{id}", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	r.Handle("OPTIONS", "/api", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	r.Mux().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/double/42", nil))
	assert.Equal(t, map[string]string{"id": "42"}, params)
	assert.Equal(t, "/api/double/{id}", pattern)

	assert.Equal(t, []Route{
		{Method: "OPTIONS", Pattern: "/api"},
		{Method: http.MethodGet, Pattern: "/api/double/{id}"},
		{Method: http.MethodPatch, Pattern: "/api/item/{id}"},
	}, r.Routes())

	assert.Nil(t, URLParams(httptest.NewRequest(http.MethodGet, "/", nil)))
}
