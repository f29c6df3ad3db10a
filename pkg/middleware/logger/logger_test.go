package logger

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/joeydtaylor/steeze-services/pkg/middleware/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMiddleware_AccessLine(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	lm := NewMiddleware(zap.New(core), "/api/publish/{topic}")
	a, err := auth.New(auth.Options{DevBypass: true}, nil)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(a.Middleware(), lm.Middleware(a))
	r.Post("/api/publish/{topic}", func(w http.ResponseWriter, r *http.Request) {
		b := make([]byte, 64)
		n, _ := r.Body.Read(b)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write(b[:n])
	})

	req := httptest.NewRequest(http.MethodPost, "/api/publish/orders?_format=json", strings.NewReader(`{"payload":1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Dev-User", "alice")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, `{"payload":1}`, rec.Body.String())
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, int64(http.StatusAccepted), fields["status"])
	assert.Equal(t, "alice", fields["username"])
	assert.Equal(t, true, fields["isAuthenticated"])
	assert.Equal(t, "/api/publish/{topic}", fields["route"])
	assert.Equal(t, "json", fields["format"])
	assert.Equal(t, `{"payload":1}`, fields["requestData"])
}

func TestMiddleware_NoBodyByDefault(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := NewMiddleware(zap.New(core)).Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"secret":true}`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.Len())
	_, ok := logs.All()[0].ContextMap()["requestData"]
	assert.False(t, ok)
	assert.Equal(t, false, logs.All()[0].ContextMap()["isAuthenticated"])
}

func TestNewLog_WritesToDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(DirEnv, dir)
	l := NewLog("test.log")
	l.Info("hello", zap.String("k", "v"))
	_ = l.Sync()

	b, err := os.ReadFile(filepath.Join(dir, "test.log"))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"k":"v"`)
}
