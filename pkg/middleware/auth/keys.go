package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

func parsePEMKey(b []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, errors.New("no PEM block")
	}
	keyAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := keyAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("PEM is not an RSA public key")
	}
	return pub, nil
}

type jwk struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// parseJWKS picks the key with kid, or the first RS256 signing key.
func parseJWKS(r io.Reader, kid string) (*rsa.PublicKey, error) {
	var set struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(r).Decode(&set); err != nil {
		return nil, err
	}
	var sel *jwk
	for i := range set.Keys {
		k := &set.Keys[i]
		if k.Kty != "RSA" {
			continue
		}
		if kid != "" {
			if k.Kid == kid {
				sel = k
				break
			}
			continue
		}
		if (k.Use == "" || k.Use == "sig") && (k.Alg == "" || strings.EqualFold(k.Alg, "RS256")) {
			sel = k
			break
		}
	}
	if sel == nil {
		return nil, errors.New("no suitable RSA key in JWKS")
	}
	n, err := b64url(sel.N)
	if err != nil {
		return nil, fmt.Errorf("bad jwks.n: %w", err)
	}
	e, err := b64url(sel.E)
	if err != nil {
		return nil, fmt.Errorf("bad jwks.e: %w", err)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: bytesToInt(e)}, nil
}

// RefreshKeys keeps the remote assertion key current until ctx ends. It
// returns immediately when no key URL is configured.
func (m *Middleware) RefreshKeys(ctx context.Context) {
	if m.opts.AssertionKeyURL == "" {
		return
	}
	for {
		if err := m.refreshAssertionKey(ctx); err != nil {
			m.log.Warn("assertion key refresh failed", zap.String("url", m.opts.AssertionKeyURL), zap.Error(err))
		}
		wait := m.getCacheTTL()
		if wait < 5*time.Second {
			wait = 5 * time.Second
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (m *Middleware) refreshAssertionKey(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.opts.AssertionKeyURL, nil)
	if err != nil {
		return err
	}
	if etag := m.getETag(); etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	res, err := m.opts.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotModified && m.getKey() != nil {
		m.mu.Lock()
		m.updateCacheTTLLocked(res.Header)
		m.mu.Unlock()
		return nil
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("key fetch %s: %s", m.opts.AssertionKeyURL, res.Status)
	}

	var pub *rsa.PublicKey
	ct := strings.ToLower(res.Header.Get("Content-Type"))
	if strings.Contains(ct, "json") || strings.HasSuffix(strings.ToLower(m.opts.AssertionKeyURL), ".json") {
		pub, err = parseJWKS(res.Body, m.opts.AssertionKeyKID)
	} else {
		var b []byte
		if b, err = io.ReadAll(res.Body); err == nil {
			pub, err = parsePEMKey(b)
		}
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.assertKey = pub
	m.assertETag = res.Header.Get("ETag")
	m.updateCacheTTLLocked(res.Header)
	m.mu.Unlock()
	return nil
}

func (m *Middleware) updateCacheTTLLocked(h http.Header) {
	for _, p := range strings.Split(h.Get("Cache-Control"), ",") {
		p = strings.TrimSpace(strings.ToLower(p))
		if v, ok := strings.CutPrefix(p, "max-age="); ok {
			if s, err := strconv.Atoi(v); err == nil && s >= 5 {
				m.cacheTTL = time.Duration(s) * time.Second
			}
			return
		}
	}
}

func (m *Middleware) setKey(pub *rsa.PublicKey, etag string) {
	m.mu.Lock()
	m.assertKey, m.assertETag = pub, etag
	m.mu.Unlock()
}

func (m *Middleware) getKey() *rsa.PublicKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.assertKey
}

func (m *Middleware) getETag() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.assertETag
}

func (m *Middleware) getCacheTTL() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cacheTTL
}
