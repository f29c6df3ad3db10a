// Package csrf issues and checks per-session CSRF tokens.
//
// A token is base64url(HMAC-SHA256(k, seed)) where k is derived from the
// process secret and the realm with HKDF, and seed identifies the session:
// the authenticated username, or an anonymous session cookie.
package csrf

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"
)

// SecretEnv names the environment variable holding the token secret.
const SecretEnv = "SERVICES_CSRF_SECRET"

// HeaderName carries the token on state-changing requests.
const HeaderName = "X-CSRF-Token"

const keyLen = 32

type Options struct {
	Secret       []byte
	CookieName   string
	SecureCookie bool
}

// Service derives tokens. Safe for concurrent use.
type Service struct {
	secret    []byte
	cookie    string
	secure    bool
	generated bool

	mu   sync.Mutex
	keys map[string][]byte
}

// New builds a Service. Without a secret a random one is generated, so
// tokens do not survive a restart.
func New(o Options) *Service {
	s := &Service{
		secret: append([]byte(nil), o.Secret...),
		cookie: o.CookieName,
		secure: o.SecureCookie,
		keys:   map[string][]byte{},
	}
	if s.cookie == "" {
		s.cookie = "services_session"
	}
	if len(s.secret) == 0 {
		a, b := uuid.New(), uuid.New()
		s.secret = append(a[:], b[:]...)
		s.generated = true
	}
	return s
}

// NewFromEnv reads the secret from SERVICES_CSRF_SECRET.
func NewFromEnv(cookieName string, secure bool, log *zap.Logger) *Service {
	s := New(Options{
		Secret:       []byte(strings.TrimSpace(os.Getenv(SecretEnv))),
		CookieName:   cookieName,
		SecureCookie: secure,
	})
	if s.generated && log != nil {
		log.Warn("csrf secret not configured; using a per-process secret", zap.String("env", SecretEnv))
	}
	return s
}

// Generated reports whether the secret was generated rather than configured.
func (s *Service) Generated() bool { return s.generated }

// CookieName is the anonymous session cookie.
func (s *Service) CookieName() string { return s.cookie }

type seedKey struct{}

// WithSeed attaches the session seed tokens are bound to.
func WithSeed(ctx context.Context, seed string) context.Context {
	return context.WithValue(ctx, seedKey{}, seed)
}

// SeedFrom returns the seed attached by WithSeed.
func SeedFrom(ctx context.Context) string {
	s, _ := ctx.Value(seedKey{}).(string)
	return s
}

// ErrNoSession means no seed is attached to the context.
var ErrNoSession = errors.New("csrf: no session")

// Token returns the token for realm bound to the context's seed.
func (s *Service) Token(ctx context.Context, realm string) (string, error) {
	seed := SeedFrom(ctx)
	if seed == "" {
		return "", ErrNoSession
	}
	key, err := s.realmKey(realm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(seed))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Valid reports whether token matches the context's seed for realm.
func (s *Service) Valid(ctx context.Context, realm, token string) bool {
	if token == "" {
		return false
	}
	want, err := s.Token(ctx, realm)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(want), []byte(token))
}

// SessionSeed resolves the seed for r. Authenticated users are keyed by
// username. Anonymous clients are keyed by the session cookie, which is
// created on w when issue is set and the cookie is missing.
func (s *Service) SessionSeed(w http.ResponseWriter, r *http.Request, username string, issue bool) string {
	if username != "" {
		return "user:" + username
	}
	if c, err := r.Cookie(s.cookie); err == nil && c.Value != "" {
		return "anon:" + c.Value
	}
	if !issue || w == nil {
		return ""
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return "anon:" + id
}

func (s *Service) realmKey(realm string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.keys[realm]; ok {
		return k, nil
	}
	k := make([]byte, keyLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, s.secret, nil, []byte("csrf/"+realm)), k); err != nil {
		return nil, err
	}
	s.keys[realm] = k
	return k, nil
}
