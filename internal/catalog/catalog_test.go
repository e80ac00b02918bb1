package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.NotEmpty(t, c.Version)
	for _, lang := range []string{"fr", "en", "es", "it", "de"} {
		assert.True(t, c.Supports(lang), lang)
	}
	assert.False(t, c.Supports("pt"))
	assert.True(t, c.IsMarketplace("amazon"))
	assert.True(t, c.IsSearchEngine("google"))
}

func TestMatchBrand(t *testing.T) {
	c := MustDefault()

	b, ok := c.MatchBrand("Vélo cargo Tern GSD")
	require.True(t, ok)
	assert.Equal(t, "tern", b.ID)
	assert.Equal(t, []string{"ternbicycles.com"}, b.DomainsFor("fr"))

	// short keywords only match whole words
	_, ok = c.MatchBrand("Pattern library")
	assert.False(t, ok)

	_, ok = c.MatchBrand("")
	assert.False(t, ok)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name, doc string
	}{
		{"not yaml", "version: [unterminated"},
		{"no version", "languages: {en: {}}\ndefault_language: en"},
		{"no languages", `version: "1"`},
		{"default language missing", "version: \"1\"\ndefault_language: xx\nlanguages:\n  en:\n    official_template: x\n    queries: {default: {buy: x}}"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, MustDefault().Version, c.Version)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func withVersion(version string) []byte {
	return []byte(strings.Replace(string(defaultCatalog), `version: "`+MustDefault().Version+`"`, `version: "`+version+`"`, 1))
}

func TestWatcher_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, withVersion("test.1"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	store := NewStore(c)

	w, err := NewWatcher(path, store, nil)
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond
	reloaded := make(chan string, 4)
	w.OnReload = func(c *Catalog) { reloaded <- c.Version }
	t.Cleanup(func() { w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// a broken file keeps the previous catalog
	require.NoError(t, os.WriteFile(path, []byte("version: ["), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, "test.1", store.Current().Version)

	require.NoError(t, os.WriteFile(path, withVersion("test.2"), 0o644))
	select {
	case v := <-reloaded:
		assert.Equal(t, "test.2", v)
	case <-time.After(5 * time.Second):
		t.Fatal("catalog was not reloaded")
	}
	assert.Equal(t, "test.2", store.Current().Version)
}
