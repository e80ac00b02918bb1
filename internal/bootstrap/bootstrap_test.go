package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/config"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/observability"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/search"
)

func providerServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req search.Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		results := []search.Result{
			{URL: "https://www.booking.com/hotel/fr/voyageurs.html", Title: "Hôtel des Voyageurs"},
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, driver string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Storage.Driver = driver
	cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "links.db")
	cfg.Provider.BaseURL = providerServer(t).URL
	return cfg
}

func TestNew_MemoryEngineResolves(t *testing.T) {
	ctx := context.Background()
	eng, err := New(ctx, testConfig(t, "memory"), observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close(ctx) })

	require.NoError(t, eng.Ready(ctx))

	res := eng.Resolver.GetBestLinks(ctx, links.Request{
		Option:   "Hôtel des Voyageurs",
		Question: "Où dormir à Lyon ?",
		Language: "fr",
		Vertical: "accommodation",
	})
	require.NotNil(t, res)
	// a named hotel is a local business, so the link points at a map
	assert.Equal(t, links.ActionDirections, res.ActionType)
	assert.NotNil(t, res.Maps)
	assert.LessOrEqual(t, len(res.Merchants), 2)
}

func TestNew_SQLiteSnapshotSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "sqlite")

	eng, err := New(ctx, cfg, observability.NopLogger())
	require.NoError(t, err)
	req := links.Request{Option: "Hôtel des Voyageurs", Language: "fr", Vertical: "accommodation"}
	first := eng.Resolver.GetBestLinks(ctx, req)
	require.NotNil(t, first)
	require.NoError(t, eng.Close(ctx))

	eng, err = New(ctx, cfg, observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close(ctx) })

	if first.Provider != "fallback" {
		again := eng.Resolver.GetBestLinks(ctx, req)
		assert.True(t, again.FromCache)
	}
}

func TestStart_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := testConfig(t, "memory")
	cfg.Cache.CleanupInterval = 10 * time.Millisecond

	eng, err := New(ctx, cfg, observability.NopLogger())
	require.NoError(t, err)
	eng.Start(ctx)
	cancel()
	assert.NoError(t, eng.Close(context.Background()))
}

func TestOpenBackend_UnknownDriver(t *testing.T) {
	_, _, err := OpenBackend(context.Background(), config.StorageConfig{Driver: "mongo"})
	assert.Error(t, err)
}

func TestNew_BadCatalogPath(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.Catalog.Path = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := New(context.Background(), cfg, observability.NopLogger())
	assert.Error(t, err)
}

func TestConversions(t *testing.T) {
	cfg := config.DefaultConfig()

	cc := CacheConfig(cfg.Cache)
	assert.Equal(t, "action_links", cc.ActionLinks.Name)
	assert.Equal(t, 200, cc.ActionLinks.Capacity)
	assert.Equal(t, 5*time.Minute, cc.Search.TTL)

	rc := ResolverConfig(cfg.Resolver)
	assert.Equal(t, 3500*time.Millisecond, rc.GlobalDeadline)
	assert.Equal(t, "en", rc.DefaultLanguage)
}
