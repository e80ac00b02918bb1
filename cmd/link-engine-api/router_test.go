package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/link-engine/cmd/link-engine-api/middleware"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/api/grpc"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/catalog"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/linkcache"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/observability"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/resolver"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/safety"
)

type stubResolver struct {
	firstErr error
}

func (s *stubResolver) GetBestLinks(_ context.Context, req links.Request) *links.ResolvedLinks {
	return &links.ResolvedLinks{
		Official:   &links.Link{URL: "https://www.apple.com/", Title: "Apple", Domain: "apple.com"},
		Merchants:  []links.Link{},
		ActionType: links.ActionBuy,
		Provider:   "stub",
	}
}

func (s *stubResolver) GetFirstResultURL(_ context.Context, req links.Request) (*links.FirstResult, error) {
	if s.firstErr != nil {
		return nil, s.firstErr
	}
	return &links.FirstResult{URL: "https://www.fnac.com/iphone", Title: "iPhone", Provider: "stub"}, nil
}

func newTestServer(t *testing.T, res *stubResolver, auth middleware.AuthConfig, ready func(context.Context) error) *httptest.Server {
	t.Helper()
	logger := observability.NopLogger()
	cfg := DefaultAppConfig()
	cfg.AuthConfig = auth

	handler := NewRouter(logger, cfg, Services{
		Resolver:  res,
		Validator: safety.NewValidator(catalog.NewStore(catalog.MustDefault()), nil, nil),
		Caches:    linkcache.New(linkcache.DefaultConfig(), nil, logger),
		Ready:     ready,
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string, headers ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRouter_Health(t *testing.T) {
	srv := newTestServer(t, &stubResolver{}, middleware.AuthConfig{}, nil)

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestRouter_NotReady(t *testing.T) {
	srv := newTestServer(t, &stubResolver{}, middleware.AuthConfig{}, func(context.Context) error {
		return errors.New("redis down")
	})

	resp, err := http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRouter_BestLinks(t *testing.T) {
	srv := newTestServer(t, &stubResolver{}, middleware.AuthConfig{}, nil)

	resp := post(t, srv.URL+"/api/v1/links/best", `{"option":"iPhone 15","language":"fr"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Official   *links.Link  `json:"official"`
		Merchants  []links.Link `json:"merchants"`
		ActionType string       `json:"actionType"`
		LatencyMs  int64        `json:"latencyMs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotNil(t, body.Official)
	assert.Equal(t, "https://www.apple.com/", body.Official.URL)
	assert.Equal(t, "buy", body.ActionType)
	assert.NotNil(t, body.Merchants)
}

func TestRouter_BadRequests(t *testing.T) {
	srv := newTestServer(t, &stubResolver{}, middleware.AuthConfig{}, nil)

	tests := []struct {
		name, path, body string
	}{
		{"malformed json", "/api/v1/links/best", `{`},
		{"missing option", "/api/v1/links/best", `{"question":"?"}`},
		{"unknown vertical", "/api/v1/links/first", `{"option":"x","vertical":"gardening"}`},
		{"empty validation", "/api/v1/links/validate", `{}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := post(t, srv.URL+tc.path, tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestRouter_FirstResult(t *testing.T) {
	srv := newTestServer(t, &stubResolver{}, middleware.AuthConfig{}, nil)
	resp := post(t, srv.URL+"/api/v1/links/first", `{"option":"iPhone 15"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body links.FirstResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "https://www.fnac.com/iphone", body.URL)

	srv = newTestServer(t, &stubResolver{firstErr: fmt.Errorf("%w: %w", resolver.ErrNoPertinentResults, resolver.ErrPolicyBlocked)}, middleware.AuthConfig{}, nil)
	resp = post(t, srv.URL+"/api/v1/links/first", `{"option":"iPhone 15"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_Validate(t *testing.T) {
	srv := newTestServer(t, &stubResolver{}, middleware.AuthConfig{}, nil)

	resp := post(t, srv.URL+"/api/v1/links/validate", `{"urls":["https://www.fnac.com/casque","https://mega.nz/x"],"option":"Casque"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ValidLinks    []links.Link `json:"validLinks"`
		RiskLevel     string       `json:"riskLevel"`
		HighRiskCount int          `json:"highRiskCount"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.ValidLinks, 1)
	assert.Equal(t, 1, body.HighRiskCount)
	assert.NotEmpty(t, body.RiskLevel)
}

func TestRouter_JSONKeysAreCamelCase(t *testing.T) {
	srv := newTestServer(t, &stubResolver{}, middleware.AuthConfig{}, nil)

	tests := []struct {
		path, body string
		want       []string
	}{
		{"/api/v1/links/best", `{"option":"iPhone 15"}`, []string{"actionType", "fromCache", "latencyMs"}},
		{"/api/v1/links/first", `{"option":"iPhone 15"}`, []string{"fromCache", "latencyMs"}},
		{"/api/v1/links/validate", `{"urls":["https://www.fnac.com/casque","https://mega.nz/x"]}`, []string{"validLinks", "blockedLinks", "riskLevel", "highRiskCount"}},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			resp := post(t, srv.URL+tc.path, tc.body)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var raw bytes.Buffer
			_, err := raw.ReadFrom(resp.Body)
			require.NoError(t, err)
			var body map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(raw.Bytes(), &body))
			for _, key := range tc.want {
				assert.Contains(t, body, key)
			}
			for key := range body {
				assert.NotContains(t, key, "_", "snake_case key %q", key)
			}
			assert.NotContains(t, raw.String(), `"high_risk"`)
		})
	}
}

func TestRouter_ValidateSanitize(t *testing.T) {
	srv := newTestServer(t, &stubResolver{}, middleware.AuthConfig{}, nil)

	resp := post(t, srv.URL+"/api/v1/links/validate",
		`{"urls":["https://www.fnac.com/casque","https://www.facebook.com/casque"],"option":"Casque audio","sanitize":true,"language":"fr"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		SanitizedLinks []links.Link `json:"sanitizedLinks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.SanitizedLinks, 2)
	assert.Equal(t, "https://www.fnac.com/casque", body.SanitizedLinks[0].URL)
	assert.Equal(t, "https://www.google.com/search?q=Casque+audio&safe=active&hl=fr", body.SanitizedLinks[1].URL)
}

func TestRouter_Cache(t *testing.T) {
	srv := newTestServer(t, &stubResolver{}, middleware.AuthConfig{}, nil)

	resp, err := http.Get(srv.URL + "/api/v1/cache/stats")
	require.NoError(t, err)
	var stats struct {
		Tiers []linkcache.Stats `json:"tiers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	resp.Body.Close()
	require.Len(t, stats.Tiers, 2)
	assert.Equal(t, linkcache.TierActionLinks, stats.Tiers[0].Name)

	del := func(tier string) int {
		req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/cache/"+tier, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusNoContent, del("search"))
	assert.Equal(t, http.StatusNoContent, del("all"))
	assert.Equal(t, http.StatusNotFound, del("bogus"))
}

func TestRouter_Auth(t *testing.T) {
	srv := newTestServer(t, &stubResolver{}, middleware.AuthConfig{Enabled: true, APIKeys: []string{"s3cret"}}, nil)

	assert.Equal(t, http.StatusUnauthorized, post(t, srv.URL+"/api/v1/links/best", `{"option":"x"}`).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, post(t, srv.URL+"/api/v1/links/best", `{"option":"x"}`, "X-API-Key", "wrong").StatusCode)
	assert.Equal(t, http.StatusOK, post(t, srv.URL+"/api/v1/links/best", `{"option":"x"}`, "X-API-Key", "s3cret").StatusCode)
	assert.Equal(t, http.StatusOK, post(t, srv.URL+"/api/v1/links/best", `{"option":"x"}`, "Authorization", "Bearer s3cret").StatusCode)

	// health stays public
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_ConnectService(t *testing.T) {
	srv := newTestServer(t, &stubResolver{}, middleware.AuthConfig{}, nil)
	client := grpc.NewLinksClient(srv.Client(), srv.URL)

	resp, err := client.GetBestLinks(context.Background(), &grpc.LinksRequest{Option: "iPhone 15"})
	require.NoError(t, err)
	require.NotNil(t, resp.Links)
	assert.Equal(t, "https://www.apple.com/", resp.Links.Official.URL)
}

func TestRouter_CORSPreflight(t *testing.T) {
	srv := newTestServer(t, &stubResolver{}, middleware.AuthConfig{}, nil)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/links/best", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
