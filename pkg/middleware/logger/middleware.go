package logger

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimd "github.com/go-chi/chi/v5/middleware"
	"github.com/joeydtaylor/steeze-services/pkg/middleware/auth"
	"go.uber.org/zap"
)

// maxLoggedBody caps request bodies copied into access logs.
const maxLoggedBody = 1 << 16

// Middleware writes one access log line per request.
type Middleware struct {
	access   *zap.Logger
	bodyLogs map[string]struct{}
}

// NewMiddleware logs to access. Request bodies are logged only for JSON
// writes to bodyPaths (exact route patterns or paths).
func NewMiddleware(access *zap.Logger, bodyPaths ...string) *Middleware {
	m := &Middleware{access: access, bodyLogs: map[string]struct{}{}}
	for _, p := range bodyPaths {
		if p = strings.TrimSpace(p); p != "" {
			m.bodyLogs[p] = struct{}{}
		}
	}
	return m
}

func (m *Middleware) Middleware(ca *auth.Middleware) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimd.NewWrapResponseWriter(w, r.ProtoMajor)

			var body []byte
			if len(m.bodyLogs) > 0 && r.Body != nil && isWrite(r.Method) {
				body, _ = io.ReadAll(io.LimitReader(r.Body, maxLoggedBody+1))
				r.Body = struct {
					io.Reader
					io.Closer
				}{io.MultiReader(bytes.NewReader(body), r.Body), r.Body}
			}

			scheme := "http"
			if r.TLS != nil {
				scheme = "https"
			}
			start := time.Now()
			defer func() {
				var u auth.User
				if ca != nil {
					u = ca.GetUser(r.Context())
				}
				route := ""
				if rc := chi.RouteContext(r.Context()); rc != nil {
					route = rc.RoutePattern()
				}
				fields := []zap.Field{
					zap.String("dateTime", start.UTC().Format(time.RFC1123)),
					zap.String("requestId", chimd.GetReqID(r.Context())),
					zap.String("httpScheme", scheme),
					zap.Bool("isAuthenticated", u.Authenticated()),
					zap.String("username", u.Username),
					zap.String("role", u.Role.Name),
					zap.String("authenticationProvider", u.AuthenticationSource.Provider),
					zap.String("httpProto", r.Proto),
					zap.String("httpMethod", r.Method),
					zap.String("remoteAddr", r.RemoteAddr),
					zap.String("uri", r.URL.Path),
					zap.String("route", route),
					zap.String("format", r.URL.Query().Get("_format")),
					zap.Duration("lat", time.Since(start)),
					zap.Int("responseSize", ww.BytesWritten()),
					zap.Int("status", ww.Status()),
				}
				if m.shouldLogBody(r, route, body) {
					fields = append(fields, zap.ByteString("requestData", body))
				}
				m.access.Info("", fields...)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func (m *Middleware) shouldLogBody(r *http.Request, route string, body []byte) bool {
	if len(body) == 0 || len(body) > maxLoggedBody {
		return false
	}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return false
	}
	if _, ok := m.bodyLogs[route]; ok {
		return true
	}
	_, ok := m.bodyLogs[r.URL.Path]
	return ok
}

func isWrite(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}
