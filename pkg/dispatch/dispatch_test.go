package dispatch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/joeydtaylor/steeze-services/pkg/cache"
	"github.com/joeydtaylor/steeze-services/pkg/csrf"
	"github.com/joeydtaylor/steeze-services/pkg/endpoint"
	"github.com/joeydtaylor/steeze-services/pkg/manifest"
	"github.com/joeydtaylor/steeze-services/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-services/pkg/service"
	"github.com/joeydtaylor/steeze-services/pkg/transport/httpx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type doubler struct{ service.Base }

func (doubler) ProcessRequest(_ context.Context, inv *service.Invocation) (any, error) {
	if err := inv.Context.Require("id"); err != nil {
		return nil, err
	}
	n, _ := inv.Context.Int("id")
	return map[string]any{"value": n * 2}, nil
}

type conflict struct{ service.Base }

func (conflict) ProcessRequest(context.Context, *service.Invocation) (any, error) {
	return nil, service.NewDomainError(http.StatusConflict, "conflict", "already exists")
}

type slow struct{ service.Base }

func (slow) ProcessRequest(ctx context.Context, _ *service.Invocation) (any, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type accept struct{ service.Base }

func (accept) ProcessRequest(_ context.Context, inv *service.Invocation) (any, error) {
	id, _ := inv.Context.Text(service.AttrDefinition)
	return map[string]any{"accepted": true, "definition": id}, nil
}

func testRegistry(t *testing.T) *service.Registry {
	t.Helper()
	reg := service.NewRegistry()
	reg.MustRegister(service.Definition{
		ID:   "d1",
		Path: "double/{id}",
		Context: map[string]service.ContextDefinition{
			"id": {DataType: service.TypeInteger, Required: true, Cache: &cache.Metadata{Contexts: []string{"url.path"}, MaxAge: cache.Permanent}},
		},
	}, func(def service.Definition) service.ServiceDefinition { return doubler{service.NewBase(def)} })
	reg.MustRegister(service.Definition{ID: "conflict", Path: "conflict"},
		func(def service.Definition) service.ServiceDefinition { return conflict{service.NewBase(def)} })
	reg.MustRegister(service.Definition{ID: "slow", Path: "slow"},
		func(def service.Definition) service.ServiceDefinition { return slow{service.NewBase(def)} })
	reg.MustRegister(service.Definition{
		ID: "accept", Path: "accept", Methods: []string{http.MethodPost}, ResponseCode: http.StatusAccepted,
		Context: map[string]service.ContextDefinition{service.AttrDefinition: {DataType: service.TypeString}},
	}, func(def service.Definition) service.ServiceDefinition { return accept{service.NewBase(def)} })
	reg.MustRegister(service.Definition{ID: "closed", Path: "closed"},
		func(def service.Definition) service.ServiceDefinition { return closed{service.NewBase(def)} })
	return reg
}

// closed never grants access.
type closed struct{ service.Base }

func (closed) ProcessRoute(route *service.RouteSpec) {
	route.AddRequirements(map[string]string{service.RequireAccess: "FALSE"})
}

func testConfig() manifest.Config {
	cfg := manifest.Config{Endpoints: []manifest.Endpoint{{
		ID: "e1", Path: "api",
		Resources: []manifest.Resource{
			{Definition: "d1"},
			{Definition: "conflict"},
			{Definition: "slow", Policy: manifest.Policy{TimeoutMS: 20}},
			{Definition: "accept"},
			{Definition: "closed"},
		},
	}, {
		ID: "e2", Path: "private",
		Resources: []manifest.Resource{
			{Definition: "d1", Guard: manifest.Guard{RequireAuth: true}, Policy: manifest.Policy{RateLimit: &manifest.RateLimit{RPS: 1, Burst: 1}}},
			{Definition: "conflict", Guard: manifest.Guard{Roles: []string{"ops"}}},
		},
	}}}
	cfg.Normalize()
	return cfg
}

type fixture struct {
	store  *endpoint.ManifestStore
	disp   *Dispatcher
	server *Server
	csrf   *csrf.Service
	mux    http.Handler
	table  []RouteEntry
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	cfg := testConfig()
	store, err := endpoint.NewManifestStore(cfg, testRegistry(t))
	require.NoError(t, err)

	a, err := auth.New(auth.Options{DevBypass: true, AdminRole: "admin"}, log)
	require.NoError(t, err)
	c := csrf.New(csrf.Options{Secret: []byte("test-secret")})
	d := NewDispatcher(store, service.NewPipeline(nil, log), log)
	o := OptionsFrom(cfg)
	o.DebugHeaders = true
	s := NewServer(d, a, c, o, log)

	mux, table, err := BuildRouter(context.Background(), BuildDeps{Server: s, Store: store, Auth: a, Router: httpx.NewChi()})
	require.NoError(t, err)
	return fixture{store: store, disp: d, server: s, csrf: c, mux: mux, table: table}
}

func (f fixture) do(r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, r)
	return rec
}

func TestDispatch_DoublesID(t *testing.T) {
	f := newFixture(t)
	r := httptest.NewRequest(http.MethodGet, "/api/double/42?_format=json", nil)
	env, err := f.disp.Dispatch(context.Background(), r, service.RouteMatch{Params: map[string]string{"id": "42"}}, "e1", "d1")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, env.Status)
	assert.Equal(t, `{"value":84}`, string(env.Body))
	assert.Equal(t, "application/json", env.Header.Get("Content-Type"))
	assert.Equal(t, "Accept", env.Header.Get("Vary"))
	assert.Equal(t, []string{"url.path"}, env.Cache.Contexts)

	r = httptest.NewRequest(http.MethodGet, "/api/double/42?_format=xml", nil)
	env, err = f.disp.Dispatch(context.Background(), r, service.RouteMatch{Params: map[string]string{"id": "42"}}, "e1", "d1")
	require.NoError(t, err)
	assert.Equal(t, "text/xml", env.Header.Get("Content-Type"))
}

func TestDispatch_NotFound(t *testing.T) {
	f := newFixture(t)
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	env, err := f.disp.Dispatch(context.Background(), r, service.RouteMatch{}, "nope", "d1")
	assert.Nil(t, env)
	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, service.StatusOf(err))

	env, err = f.disp.Dispatch(context.Background(), r, service.RouteMatch{}, "e1", "ghost")
	assert.Nil(t, env)
	var nf *service.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "definition", nf.Kind)
}

func TestDispatch_UnsupportedFormat(t *testing.T) {
	f := newFixture(t)
	r := httptest.NewRequest(http.MethodGet, "/api/double/1?_format=foo", nil)
	env, err := f.disp.Dispatch(context.Background(), r, service.RouteMatch{Params: map[string]string{"id": "1"}}, "e1", "d1")
	assert.Nil(t, env)
	var ue *service.UnsupportedFormatError
	require.ErrorAs(t, err, &ue)
}

func TestDispatch_DeclaredResponseCode(t *testing.T) {
	f := newFixture(t)
	r := httptest.NewRequest(http.MethodPost, "/api/accept", nil)
	env, err := f.disp.Dispatch(context.Background(), r, service.RouteMatch{}, "e1", "accept")
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, env.Status)
	assert.Equal(t, `{"accepted":true,"definition":"accept"}`, string(env.Body))
}

func TestBuildTable(t *testing.T) {
	f := newFixture(t)
	byName := map[string]RouteEntry{}
	for _, e := range f.table {
		byName[e.Spec.Name] = e
	}
	require.Len(t, byName, 7)

	d1 := byName["services.e1.d1"]
	assert.Equal(t, "/api/double/{id}", d1.Spec.Path)
	assert.Equal(t, "TRUE", d1.Spec.Requirement(service.RequireAccess))
	assert.Empty(t, d1.Spec.Requirement(service.RequireCSRFToken))
	assert.Equal(t, "e1", d1.Spec.Options[OptionEndpoint])

	acc := byName["services.e1.accept"]
	assert.Equal(t, []string{http.MethodPost}, acc.Spec.Methods)
	assert.Equal(t, "TRUE", acc.Spec.Requirement(service.RequireCSRFToken))
	closed := byName["services.e1.closed"]
	assert.Equal(t, "FALSE", closed.Spec.Requirement(service.RequireAccess))
}

func TestBuildTable_Collision(t *testing.T) {
	reg := service.NewRegistry()
	ctor := func(def service.Definition) service.ServiceDefinition { return service.NewBase(def) }
	reg.MustRegister(service.Definition{ID: "a", Path: "same"}, ctor)
	reg.MustRegister(service.Definition{ID: "b", Path: "same"}, ctor)
	store, err := endpoint.NewManifestStore(manifest.Config{Endpoints: []manifest.Endpoint{{
		ID: "e", Path: "x", Resources: []manifest.Resource{{Definition: "a"}, {Definition: "b"}},
	}}}, reg)
	require.NoError(t, err)
	_, err = BuildTable(context.Background(), store)
	assert.ErrorContains(t, err, "collides")
}

func TestServer_ServesEnvelope(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/double/21?_format=json", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"value":42}`, rec.Body.String())
	assert.Equal(t, "max-age=3600, public", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "url.path", rec.Header().Get("X-Cache-Contexts"))

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/double/abc?_format=json", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"invalid_argument"`)
	assert.Equal(t, "no-cache, private", rec.Header().Get("Cache-Control"))
}

func TestServer_NotAcceptable(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/double/1?_format=foo", nil))
	assert.Equal(t, http.StatusNotAcceptable, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))

	r := httptest.NewRequest(http.MethodGet, "/api/double/1", nil)
	r.Header.Set("Accept", "image/png")
	assert.Equal(t, http.StatusNotAcceptable, f.do(r).Code)

	r = httptest.NewRequest(http.MethodGet, "/api/double/1", nil)
	r.Header.Set("Accept", "application/x-yaml, */*;q=0.1")
	rec = f.do(r)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-yaml", rec.Header().Get("Content-Type"))
	assert.Equal(t, "value: 2\n", rec.Body.String())
}

func TestServer_DomainErrorAndTimeout(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/conflict?_format=json", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":{"code":"conflict","message":"already exists"}}`, rec.Body.String())

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/slow", nil))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestServer_AccessFalse(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusForbidden, f.do(httptest.NewRequest(http.MethodGet, "/api/closed", nil)).Code)
}

func TestServer_CSRFToken(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/services/session/token", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	token, _ := io.ReadAll(rec.Body)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	seed := "anon:" + cookies[0].Value
	want, err := f.csrf.Token(csrf.WithSeed(context.Background(), seed), "services")
	require.NoError(t, err)
	assert.Equal(t, want, string(token))

	post := func(tok string) int {
		r := httptest.NewRequest(http.MethodPost, "/api/accept", strings.NewReader(""))
		r.AddCookie(cookies[0])
		if tok != "" {
			r.Header.Set(csrf.HeaderName, tok)
		}
		return f.do(r).Code
	}
	assert.Equal(t, http.StatusForbidden, post(""))
	assert.Equal(t, http.StatusForbidden, post("forged"))
	assert.Equal(t, http.StatusAccepted, post(string(token)))

	r := httptest.NewRequest(http.MethodGet, "/services/session/token", nil)
	r.Header.Set("X-Dev-User", "alice")
	rec = f.do(r)
	assert.Empty(t, rec.Result().Cookies())
	userToken, _ := f.csrf.Token(csrf.WithSeed(context.Background(), "user:alice"), "services")
	assert.Equal(t, userToken, rec.Body.String())
}

func TestServer_GuardsAndRateLimit(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusUnauthorized, f.do(httptest.NewRequest(http.MethodGet, "/private/double/1", nil)).Code)

	as := func(user, role, target string) int {
		r := httptest.NewRequest(http.MethodGet, target, nil)
		r.Header.Set("X-Dev-User", user)
		r.Header.Set("X-Dev-Role", role)
		return f.do(r).Code
	}
	assert.Equal(t, http.StatusOK, as("bob", "", "/private/double/1"))
	assert.Equal(t, http.StatusTooManyRequests, as("bob", "", "/private/double/1"))
	assert.Equal(t, http.StatusOK, as("carol", "", "/private/double/1"))

	assert.Equal(t, http.StatusForbidden, as("bob", "viewer", "/private/conflict"))
	assert.Equal(t, http.StatusConflict, as("bob", "ops", "/private/conflict"))
	assert.Equal(t, http.StatusConflict, as("root", "admin", "/private/conflict"))
}

func TestServer_UnknownRoute(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do(httptest.NewRequest(http.MethodGet, "/api/missing", nil)).Code)
	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/ping", nil)).Code)
}

func TestKeyedLimiter(t *testing.T) {
	var off *keyedLimiter
	assert.Nil(t, newKeyedLimiter(0, 5))
	assert.True(t, off.Allow("k", time.Now()))

	l := newKeyedLimiter(1, 2)
	now := time.Unix(1000, 0)
	assert.True(t, l.Allow("a", now))
	assert.True(t, l.Allow("a", now))
	assert.False(t, l.Allow("a", now))
	assert.True(t, l.Allow("b", now))
	assert.True(t, l.Allow("a", now.Add(time.Second)))

	later := now.Add(time.Hour)
	for i := 0; i < 512; i++ {
		l.Allow("c", later)
	}
	_, kept := l.byKey["a"]
	assert.False(t, kept)
}
