package serverfx

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/joeydtaylor/steeze-services/pkg/dispatch"
	"github.com/joeydtaylor/steeze-services/pkg/manifest"
	"github.com/joeydtaylor/steeze-services/pkg/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const manifestDoc = `
[server]
default_format = "yaml"

[[endpoint]]
id = "api"
path = "api"

  [[endpoint.resource]]
  definition = "arithmetic:double"

  [[endpoint.resource]]
  definition = "relay:publish"
`

func writeManifest(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "services.toml")
	require.NoError(t, os.WriteFile(p, []byte(manifestDoc), 0o600))
	return p
}

func TestModule_Validates(t *testing.T) {
	assert.NoError(t, fx.ValidateApp(Module(DefaultOptions())))
}

func TestProvideManifest_FromEnv(t *testing.T) {
	opts := DefaultOptions()
	t.Setenv(opts.ManifestEnv, writeManifest(t))

	cfg, err := provideManifest(opts, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "yaml", cfg.Server.DefaultFormat)
	assert.Equal(t, manifest.DefaultPermanentMaxAge, cfg.Server.PermanentMaxAge)

	t.Setenv(opts.ManifestEnv, filepath.Join(t.TempDir(), "missing.toml"))
	_, err = provideManifest(opts, zap.NewNop())
	assert.Error(t, err)
}

func TestProvidePipeline_DefaultFormat(t *testing.T) {
	_, err := providePipeline(manifest.Config{Server: manifest.Server{DefaultFormat: "csv"}}, zap.NewNop())
	assert.ErrorContains(t, err, "default_format")

	p, err := providePipeline(manifest.Config{Server: manifest.Server{DefaultFormat: "yaml"}}, zap.NewNop())
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept", "application/ld+json")
	neg, err := p.Negotiate(r)
	require.NoError(t, err)
	assert.Equal(t, "jsonld", neg.Format)
}

func TestRoutesFromManifest(t *testing.T) {
	opts := DefaultOptions()
	t.Setenv(opts.ManifestEnv, writeManifest(t))
	cfg, err := provideManifest(opts, zap.NewNop())
	require.NoError(t, err)

	reg, err := NewRegistry(relay.Noop{})
	require.NoError(t, err)
	store, err := provideStore(cfg, reg)
	require.NoError(t, err)

	table, err := dispatch.BuildTable(t.Context(), store)
	require.NoError(t, err)
	require.Len(t, table, 2)
	assert.Equal(t, "/api/double/{id}", table[0].Spec.Path)
	assert.Equal(t, "/api/publish/{topic}", table[1].Spec.Path)

	_, err = provideStore(manifest.Config{Endpoints: []manifest.Endpoint{{
		ID: "x", Path: "x", Resources: []manifest.Resource{{Definition: "nope"}},
	}}}, reg)
	assert.Error(t, err)
}
