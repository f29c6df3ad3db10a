package relay

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config drives the Electrician forward relay. Zero Targets means no relay.
type Config struct {
	Targets []string

	TLS         bool
	TLSCert     string
	TLSKey      string
	TLSCA       string
	TLSInsecure bool

	Snappy bool
	AESKey string // raw 32 bytes when set

	StaticHeaders map[string]string

	OAuthIssuer   string
	OAuthJWKS     string
	OAuthClientID string
	OAuthSecret   string
	OAuthScopes   []string
	OAuthLeeway   time.Duration
}

// OAuthEnabled reports whether client-credentials bearer tokens are configured.
func (c Config) OAuthEnabled() bool {
	return c.OAuthIssuer != "" && c.OAuthClientID != "" && c.OAuthSecret != ""
}

// ConfigFromEnv reads:
//
//	ELECTRICIAN_TARGET          host:port[,host2:port2]
//	ELECTRICIAN_TLS_ENABLE      true|false
//	ELECTRICIAN_TLS_CLIENT_CRT  default keys/tls/client.crt
//	ELECTRICIAN_TLS_CLIENT_KEY  default keys/tls/client.key
//	ELECTRICIAN_TLS_CA          default keys/tls/ca.crt
//	ELECTRICIAN_TLS_INSECURE    true|false (token fetch only, dev)
//	ELECTRICIAN_COMPRESS        snappy
//	ELECTRICIAN_ENCRYPT         aesgcm
//	ELECTRICIAN_AES256_KEY_HEX  64 hex chars
//	ELECTRICIAN_STATIC_HEADERS  k=v,k2=v2
//	OAUTH_ISSUER_BASE, OAUTH_JWKS_URL, OAUTH_CLIENT_ID, OAUTH_CLIENT_SECRET,
//	OAUTH_SCOPES (csv), OAUTH_REFRESH_LEEWAY (duration, default 20s)
func ConfigFromEnv() (Config, error) {
	c := Config{
		Targets:       splitCSV(os.Getenv("ELECTRICIAN_TARGET")),
		TLS:           envBool("ELECTRICIAN_TLS_ENABLE"),
		TLSCert:       envOr("ELECTRICIAN_TLS_CLIENT_CRT", "keys/tls/client.crt"),
		TLSKey:        envOr("ELECTRICIAN_TLS_CLIENT_KEY", "keys/tls/client.key"),
		TLSCA:         envOr("ELECTRICIAN_TLS_CA", "keys/tls/ca.crt"),
		TLSInsecure:   envBool("ELECTRICIAN_TLS_INSECURE"),
		Snappy:        strings.EqualFold(os.Getenv("ELECTRICIAN_COMPRESS"), "snappy"),
		StaticHeaders: parseKV(os.Getenv("ELECTRICIAN_STATIC_HEADERS")),
		OAuthIssuer:   strings.TrimSpace(os.Getenv("OAUTH_ISSUER_BASE")),
		OAuthJWKS:     strings.TrimSpace(os.Getenv("OAUTH_JWKS_URL")),
		OAuthClientID: strings.TrimSpace(os.Getenv("OAUTH_CLIENT_ID")),
		OAuthSecret:   strings.TrimSpace(os.Getenv("OAUTH_CLIENT_SECRET")),
		OAuthScopes:   splitCSV(os.Getenv("OAUTH_SCOPES")),
		OAuthLeeway:   parseDur(envOr("OAUTH_REFRESH_LEEWAY", "20s")),
	}
	if strings.EqualFold(os.Getenv("ELECTRICIAN_ENCRYPT"), "aesgcm") {
		raw, err := hex.DecodeString(strings.TrimSpace(os.Getenv("ELECTRICIAN_AES256_KEY_HEX")))
		if err != nil || len(raw) != 32 {
			return Config{}, fmt.Errorf("ELECTRICIAN_AES256_KEY_HEX must be 64 hex chars (32 bytes)")
		}
		c.AESKey = string(raw)
	}
	return c, nil
}

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func envBool(k string) bool { return strings.EqualFold(strings.TrimSpace(os.Getenv(k)), "true") }

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}

func parseKV(s string) map[string]string {
	var out map[string]string
	for _, kv := range splitCSV(s) {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if out == nil {
			out = map[string]string{}
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}

func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 20 * time.Second
	}
	return d
}
