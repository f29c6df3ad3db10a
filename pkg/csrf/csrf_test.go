package csrf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestToken_DeterministicPerSeedAndRealm(t *testing.T) {
	s := New(Options{Secret: []byte("s3cret")})
	alice := WithSeed(context.Background(), "user:alice")
	bob := WithSeed(context.Background(), "user:bob")

	a1, err := s.Token(alice, "services")
	require.NoError(t, err)
	a2, _ := s.Token(alice, "services")
	assert.Equal(t, a1, a2)
	assert.NotContains(t, a1, "=")

	b1, _ := s.Token(bob, "services")
	assert.NotEqual(t, a1, b1)

	other, _ := s.Token(alice, "admin")
	assert.NotEqual(t, a1, other)

	assert.True(t, s.Valid(alice, "services", a1))
	assert.False(t, s.Valid(bob, "services", a1))
	assert.False(t, s.Valid(alice, "services", ""))

	again, _ := New(Options{Secret: []byte("s3cret")}).Token(alice, "services")
	assert.Equal(t, a1, again)
	different, _ := New(Options{Secret: []byte("other")}).Token(alice, "services")
	assert.NotEqual(t, a1, different)
}

func TestToken_NoSession(t *testing.T) {
	s := New(Options{})
	_, err := s.Token(context.Background(), "services")
	assert.ErrorIs(t, err, ErrNoSession)
	assert.False(t, s.Valid(context.Background(), "services", "x"))
	assert.True(t, s.Generated())
}

func TestSessionSeed(t *testing.T) {
	s := New(Options{Secret: []byte("k"), CookieName: "sid"})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "user:alice", s.SessionSeed(nil, r, "alice", false))
	assert.Empty(t, s.SessionSeed(nil, r, "", false))

	w := httptest.NewRecorder()
	seed := s.SessionSeed(w, r, "", true)
	require.NotEmpty(t, seed)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	r2 := httptest.NewRequest(http.MethodPost, "/", nil)
	r2.AddCookie(cookies[0])
	assert.Equal(t, seed, s.SessionSeed(nil, r2, "", false))
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv(SecretEnv, "from-env")
	s := NewFromEnv("", false, zaptest.NewLogger(t))
	assert.False(t, s.Generated())
	assert.Equal(t, "services_session", s.CookieName())

	ctx := WithSeed(context.Background(), "user:x")
	a, _ := s.Token(ctx, "services")
	b, _ := New(Options{Secret: []byte("from-env")}).Token(ctx, "services")
	assert.Equal(t, a, b)
}
