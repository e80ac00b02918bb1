package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/links/best", func(w http.ResponseWriter, r *http.Request) {
		var req LinksRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"official":    map[string]string{"url": "https://www.apple.com/", "title": req.Option, "domain": "apple.com"},
			"merchants":   []interface{}{},
			"actionType":  "buy",
			"provider":    "stub",
			"latencyMs":   12,
		})
	})
	mux.HandleFunc("POST /api/v1/links/first", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no pertinent results","message":"no pertinent results"}`))
	})
	mux.HandleFunc("POST /api/v1/links/validate", func(w http.ResponseWriter, r *http.Request) {
		var req ValidateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"https://mega.nz/file/x"}, req.URLs)
		_, _ = w.Write([]byte(`{"validLinks":[],"blockedLinks":[{"link":{"url":"https://mega.nz/file/x"},"verdict":{"allowed":false,"reason":"file_sharing","highRisk":true}}],"riskLevel":"high","highRiskCount":1}`))
	})
	mux.HandleFunc("GET /api/v1/cache/stats", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		_, _ = w.Write([]byte(`{"tiers":[{"name":"action_links","entries":3,"capacity":200}]}`))
	})
	mux.HandleFunc("DELETE /api/v1/cache/{tier}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("tier") == "bogus" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"unknown cache tier","message":"unknown cache tier","detail":"bogus"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{BaseURL: newTestServer(t).URL + "/", APIKey: "secret"})
	require.NoError(t, err)
	return c
}

func TestClient_BestLinks(t *testing.T) {
	c := newTestClient(t)
	res, err := c.BestLinks(context.Background(), LinksRequest{Option: "iPhone 16"})
	require.NoError(t, err)
	require.NotNil(t, res.Official)
	assert.Equal(t, "https://www.apple.com/", res.Official.URL)
	assert.Equal(t, "buy", res.ActionType)
	assert.Empty(t, res.Merchants)
	assert.Equal(t, int64(12), res.LatencyMs)
}

func TestClient_FirstResultNotFound(t *testing.T) {
	c := newTestClient(t)
	_, err := c.FirstResult(context.Background(), LinksRequest{Option: "zzz"})
	assert.ErrorIs(t, err, ErrNoPertinentResults)
}

func TestClient_Validate(t *testing.T) {
	c := newTestClient(t)
	res, err := c.Validate(context.Background(), ValidateRequest{URLs: []string{"https://mega.nz/file/x"}})
	require.NoError(t, err)
	assert.Equal(t, "high", res.RiskLevel)
	assert.Equal(t, 1, res.HighRiskCount)
	require.Len(t, res.BlockedLinks, 1)
	assert.Equal(t, "file_sharing", res.BlockedLinks[0].Verdict.Reason)
}

func TestClient_Cache(t *testing.T) {
	c := newTestClient(t)
	stats, err := c.CacheStats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "action_links", stats[0].Name)
	assert.Equal(t, 3, stats[0].Entries)

	require.NoError(t, c.ClearCache(context.Background(), "search"))

	err = c.ClearCache(context.Background(), "bogus")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "bogus", apiErr.Detail)
}
