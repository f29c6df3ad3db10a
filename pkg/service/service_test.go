package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joeydtaylor/steeze-services/pkg/cache"
	"github.com/joeydtaylor/steeze-services/pkg/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// doubler is the minimal variant used throughout these tests.
type doubler struct {
	Base
	hook func(*Envelope)
}

func (d *doubler) ProcessRequest(_ context.Context, inv *Invocation) (any, error) {
	if err := inv.Context.Require("id"); err != nil {
		return nil, err
	}
	n, _ := inv.Context.Int("id")
	return map[string]any{"value": n * 2}, nil
}

func (d *doubler) ProcessResponse(env *Envelope) {
	if d.hook != nil {
		d.hook(env)
	}
}

func doublerDef() Definition {
	return Definition{
		ID:       "d1",
		Title:    "Double",
		Category: "test",
		Path:     "double/{id}",
		Context: map[string]ContextDefinition{
			"id": {DataType: TypeInteger, Required: true, Cache: ptr(cache.New().WithContexts("url.path"))},
		},
		Cache: ptr(cache.New().WithTags("plugin:d1")),
	}
}

func ptr(m cache.Metadata) *cache.Metadata { return &m }

func newDoubler() *doubler { return &doubler{Base: NewBase(doublerDef())} }

func get(target string) *http.Request { return httptest.NewRequest(http.MethodGet, target, nil) }

func TestBuildRequestResponse_DoublesID(t *testing.T) {
	p := NewPipeline(nil, nil)
	env, err := p.BuildRequestResponse(context.Background(), newDoubler(), get("/api/double/42?_format=json"), RouteMatch{}, Attributes{"id": "42"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, env.Status)
	assert.Equal(t, `{"value":84}`, string(env.Body))
	assert.Equal(t, "application/json", env.Header.Get("Content-Type"))
	assert.Equal(t, "Accept", env.Header.Get("Vary"))
	assert.Equal(t, []string{"plugin:d1"}, env.Cache.Tags)
	assert.Equal(t, []string{"url.path"}, env.Cache.Contexts)
	assert.Equal(t, cache.Permanent, env.Cache.MaxAge)
}

func TestBuildRequestResponse_CodecContentType(t *testing.T) {
	p := NewPipeline(codec.NewSerializer(codec.JSONStrict, codec.NewJSON("hal_json", "application/hal+json")), nil)

	r := get("/x")
	r.Header.Set("Accept", "application/hal+json")
	env, err := p.BuildRequestResponse(context.Background(), newDoubler(), r, RouteMatch{}, Attributes{"id": "3"})
	require.NoError(t, err)
	assert.Equal(t, "application/hal+json", env.Header.Get("Content-Type"))
	assert.Equal(t, `{"value":6}`, string(env.Body))

	env, err = p.BuildRequestResponse(context.Background(), newDoubler(), get("/x?_format=hal_json"), RouteMatch{}, Attributes{"id": "3"})
	require.NoError(t, err)
	assert.Equal(t, "application/hal+json", env.Header.Get("Content-Type"))
}

func TestBuildRequestResponse_XMLContentType(t *testing.T) {
	p := NewPipeline(nil, nil)
	env, err := p.BuildRequestResponse(context.Background(), newDoubler(), get("/x?_format=xml"), RouteMatch{}, Attributes{"id": int64(1)})
	require.NoError(t, err)
	assert.Equal(t, "text/xml", env.Header.Get("Content-Type"))
	assert.Contains(t, string(env.Body), "<response><value>2</value></response>")
}

func TestBuildRequestResponse_NoFormatDeclared(t *testing.T) {
	p := NewPipeline(nil, nil)
	env, err := p.BuildRequestResponse(context.Background(), newDoubler(), get("/x"), RouteMatch{}, Attributes{"id": "3"})
	require.NoError(t, err)
	assert.Empty(t, env.Header.Get("Content-Type"))
	assert.Equal(t, `{"value":6}`, string(env.Body))
}

func TestBuildRequestResponse_UnsupportedFormat(t *testing.T) {
	p := NewPipeline(nil, nil)
	called := false
	d := newDoubler()
	d.hook = func(*Envelope) { called = true }

	env, err := p.BuildRequestResponse(context.Background(), d, get("/x?_format=foo"), RouteMatch{}, Attributes{"id": "1"})
	require.Error(t, err)
	assert.Nil(t, env)
	var ue *UnsupportedFormatError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "foo", ue.Format)
	assert.Equal(t, http.StatusNotAcceptable, StatusOf(err))
	assert.False(t, called)
}

func TestBuildRequestResponse_Idempotent(t *testing.T) {
	p := NewPipeline(nil, nil)
	a, err := p.BuildRequestResponse(context.Background(), newDoubler(), get("/x?_format=yaml"), RouteMatch{}, Attributes{"id": "21"})
	require.NoError(t, err)
	b, err := p.BuildRequestResponse(context.Background(), newDoubler(), get("/x?_format=yaml"), RouteMatch{}, Attributes{"id": "21"})
	require.NoError(t, err)
	assert.Equal(t, a.Body, b.Body)
}

func TestBuildRequestResponse_MissingContextIsDomainError(t *testing.T) {
	p := NewPipeline(nil, nil)
	_, err := p.BuildRequestResponse(context.Background(), newDoubler(), get("/x"), RouteMatch{}, Attributes{})
	var de *DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "missing_argument", de.Code)
	assert.Equal(t, http.StatusBadRequest, StatusOf(err))
}

func TestBuildRequestResponse_BadContextValue(t *testing.T) {
	p := NewPipeline(nil, nil)
	_, err := p.BuildRequestResponse(context.Background(), newDoubler(), get("/x"), RouteMatch{}, Attributes{"id": "forty"})
	var be *BindError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "id", be.ContextID)
	assert.Equal(t, http.StatusBadRequest, StatusOf(err))
}

type uncacheableVariant struct{ Base }

func (uncacheableVariant) ProcessRequest(_ context.Context, inv *Invocation) (any, error) {
	inv.Messages.Add(MessageStatus, "first")
	inv.Messages.Add(MessageStatus, "second")
	inv.Messages.Add(MessageWarning, "careful")
	return map[string]any{"seen": inv.Context.IDs()}, nil
}

func TestBuildRequestResponse_ZeroMaxAgeContextWins(t *testing.T) {
	def := Definition{
		ID: "u",
		Context: map[string]ContextDefinition{
			"a": {DataType: TypeString, Cache: ptr(cache.New().WithMaxAge(3600).WithTags("a"))},
			"b": {DataType: TypeString, Cache: ptr(cache.Uncacheable())},
			"c": {DataType: TypeString, Cache: ptr(cache.New().WithContexts("user"))},
		},
		Cache: ptr(cache.New().WithMaxAge(600)),
	}
	p := NewPipeline(nil, nil)
	env, err := p.BuildRequestResponse(context.Background(), uncacheableVariant{NewBase(def)}, get("/x?_format=json"), RouteMatch{}, Attributes{"a": "1", "b": "2", "c": "3"})
	require.NoError(t, err)
	assert.False(t, env.Cache.IsCacheable())
	assert.Equal(t, []string{"a"}, env.Cache.Tags)
	assert.Equal(t, []string{"user"}, env.Cache.Contexts)
	assert.Equal(t, "first; second", env.Header.Get(MessageHeaderPrefix+"status"))
	assert.Equal(t, "careful", env.Header.Get(MessageHeaderPrefix+"warning"))
	assert.Equal(t, `{"seen":["a","b","c"]}`, string(env.Body))
}

func TestBuildRequestResponse_UnboundContextDoesNotContribute(t *testing.T) {
	def := Definition{
		ID: "u",
		Context: map[string]ContextDefinition{
			"b": {DataType: TypeString, Cache: ptr(cache.Uncacheable())},
		},
	}
	p := NewPipeline(nil, nil)
	env, err := p.BuildRequestResponse(context.Background(), uncacheableVariant{NewBase(def)}, get("/x"), RouteMatch{}, Attributes{})
	require.NoError(t, err)
	assert.True(t, env.Cache.IsCacheable())
}

type chanVariant struct{ Base }

func (chanVariant) ProcessRequest(context.Context, *Invocation) (any, error) {
	return map[string]any{"c": make(chan int)}, nil
}

func TestBuildRequestResponse_SerializationError(t *testing.T) {
	p := NewPipeline(nil, nil)
	_, err := p.BuildRequestResponse(context.Background(), chanVariant{NewBase(Definition{ID: "c"})}, get("/x?_format=json"), RouteMatch{}, nil)
	var se *SerializationError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "json", se.Format)
	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))
}

func TestBuildRequestResponse_DefaultsAndHooks(t *testing.T) {
	p := NewPipeline(nil, nil)
	base := NewBase(Definition{ID: "noop", ResponseCode: http.StatusAccepted, Translatable: true})
	r := get("/x?_format=json")
	r.Header.Set("Accept-Language", "de-DE;q=0.9, en;q=0.5")

	env, err := p.BuildRequestResponse(context.Background(), base, r, RouteMatch{}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, env.Status)
	assert.Equal(t, `{}`, string(env.Body))
	assert.Equal(t, "de-DE", env.Header.Get("Content-Language"))
	assert.ElementsMatch(t, []string{"Accept", "Accept-Language"}, env.Header.Values("Vary"))
	assert.Contains(t, env.Cache.Contexts, LanguageContext)

	d := newDoubler()
	d.hook = func(e *Envelope) { e.Header.Set("X-Custom", "yes") }
	env, err = p.BuildRequestResponse(context.Background(), d, get("/x"), RouteMatch{}, Attributes{"id": 2})
	require.NoError(t, err)
	assert.Equal(t, "yes", env.Header.Get("X-Custom"))
}

func TestErrorResponse(t *testing.T) {
	p := NewPipeline(nil, nil)
	de := NewDomainError(http.StatusConflict, "conflict", "already there")

	env := p.ErrorResponse(de, get("/x?_format=json"))
	assert.Equal(t, http.StatusConflict, env.Status)
	assert.Equal(t, "application/json", env.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"error":{"code":"conflict","message":"already there"}}`, string(env.Body))
	assert.False(t, env.Cache.IsCacheable())

	env = p.ErrorResponse(&UnsupportedFormatError{Format: "foo"}, get("/x?_format=foo"))
	assert.Equal(t, http.StatusNotAcceptable, env.Status)
	assert.Equal(t, "text/plain; charset=utf-8", env.Header.Get("Content-Type"))

	env = p.ErrorResponse(errors.New("secret detail"), get("/x"))
	assert.Equal(t, http.StatusInternalServerError, env.Status)
	assert.NotContains(t, string(env.Body), "secret")
}

func TestEnvelopeWrite(t *testing.T) {
	env := &Envelope{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   []byte(`{}`),
		Cache:  cache.New().WithTags("t1").WithContexts("user"),
	}
	rec := httptest.NewRecorder()
	require.NoError(t, env.Write(rec, WriteOptions{PermanentMaxAge: 300, DebugHeaders: true}))
	assert.Equal(t, "max-age=300, public", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "t1", rec.Header().Get("X-Cache-Tags"))
	assert.Equal(t, "user", rec.Header().Get("X-Cache-Contexts"))
	assert.Equal(t, `{}`, rec.Body.String())

	env.Cache = cache.Uncacheable()
	rec = httptest.NewRecorder()
	require.NoError(t, env.Write(rec, WriteOptions{}))
	assert.Equal(t, "no-cache, private", rec.Header().Get("Cache-Control"))
	assert.Empty(t, rec.Header().Get("X-Cache-Tags"))

	env.Cache = cache.New().WithMaxAge(60)
	assert.Equal(t, "max-age=60, public", env.CacheControl(0))
}
