package auth

import (
	"crypto/rsa"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Options configures the middleware. OptionsFromEnv fills it from the
// process environment.
type Options struct {
	SessionAPI    string
	SessionCookie string
	AdminRole     string
	DevBypass     bool

	AssertionCookie  string
	AssertionKeyFile string // PEM, loaded once
	AssertionKeyURL  string // JWKS or PEM, refreshed
	AssertionKeyKID  string
	Issuer           string
	Audience         string
	Leeway           time.Duration

	HTTPClient HTTPDoer
}

func OptionsFromEnv() Options {
	leeway := 60 * time.Second
	if v := strings.TrimSpace(os.Getenv("ASSERTION_LEEWAY_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			leeway = time.Duration(n) * time.Second
		}
	}
	return Options{
		SessionAPI:       strings.TrimSpace(os.Getenv("SESSION_STATE_API")),
		SessionCookie:    strings.TrimSpace(os.Getenv("SESSION_COOKIE_NAME")),
		AdminRole:        strings.TrimSpace(os.Getenv("ADMIN_ROLE_NAME")),
		DevBypass:        os.Getenv("AUTH_DEV_BYPASS") == "true",
		AssertionCookie:  strings.TrimSpace(os.Getenv("ASSERTION_COOKIE_NAME")),
		AssertionKeyFile: strings.TrimSpace(os.Getenv("ASSERTION_PUBLIC_KEY_FILE")),
		AssertionKeyURL:  strings.TrimSpace(os.Getenv("ASSERTION_KEY_URL")),
		AssertionKeyKID:  strings.TrimSpace(os.Getenv("ASSERTION_KEY_KID")),
		Issuer:           strings.TrimSpace(os.Getenv("ASSERTION_ISSUER")),
		Audience:         strings.TrimSpace(os.Getenv("ASSERTION_AUDIENCE")),
		Leeway:           leeway,
	}
}

type Middleware struct {
	opts Options
	log  *zap.Logger

	// guarded by mu
	mu         sync.RWMutex
	assertKey  *rsa.PublicKey
	assertETag string
	cacheTTL   time.Duration
}

// New builds the middleware. A configured key file must parse.
func New(o Options, log *zap.Logger) (*Middleware, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if o.AssertionCookie == "" {
		o.AssertionCookie = "assert"
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{
			Transport: &http.Transport{MaxIdleConns: 10, IdleConnTimeout: 30 * time.Second},
			Timeout:   8 * time.Second,
		}
	}
	m := &Middleware{opts: o, log: log, cacheTTL: time.Hour}
	if o.AssertionKeyFile != "" {
		b, err := os.ReadFile(o.AssertionKeyFile)
		if err != nil {
			return nil, fmt.Errorf("assertion key: %w", err)
		}
		pub, err := parsePEMKey(b)
		if err != nil {
			return nil, fmt.Errorf("assertion key %s: %w", o.AssertionKeyFile, err)
		}
		m.setKey(pub, "")
	}
	if o.DevBypass {
		log.Warn("AUTH_DEV_BYPASS enabled; X-Dev-User headers are trusted")
	}
	return m, nil
}
