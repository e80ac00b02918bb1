// Package engine provides the public Go SDK for the link engine HTTP API.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNoPertinentResults is returned by FirstResult when the engine found no
// safe, pertinent link.
var ErrNoPertinentResults = errors.New("no pertinent results")

// Client is the public SDK client for the link engine.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// ClientConfig holds client configuration.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewClient creates a new link engine client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8086"
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: hc,
	}, nil
}

// LinksRequest asks for links for one option of a decision.
type LinksRequest struct {
	Option   string `json:"option"`
	Question string `json:"question,omitempty"`
	Language string `json:"language,omitempty"`
	Vertical string `json:"vertical,omitempty"`
}

// Link is an actionable web link.
type Link struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Domain string `json:"domain"`
}

// MapsLink points at a maps search for a physical place.
type MapsLink struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// BestLinksResponse is the engine's answer for one option.
type BestLinksResponse struct {
	Official   *Link     `json:"official,omitempty"`
	Merchants  []Link    `json:"merchants"`
	Maps       *MapsLink `json:"maps,omitempty"`
	ActionType string    `json:"actionType"`
	Provider   string    `json:"provider"`
	FromCache  bool      `json:"fromCache"`
	LatencyMs  int64     `json:"latencyMs"`
}

// FirstResultResponse is the single best link for the info/shopping flow.
type FirstResultResponse struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Provider  string `json:"provider"`
	FromCache bool   `json:"fromCache"`
	LatencyMs int64  `json:"latencyMs"`
}

// ValidateRequest is a batch safety check. Links and URLs may be combined.
type ValidateRequest struct {
	Links  []Link   `json:"links,omitempty"`
	URLs   []string `json:"urls,omitempty"`
	Option string   `json:"option,omitempty"`
}

// Verdict explains why a link was blocked.
type Verdict struct {
	Allowed  bool   `json:"allowed"`
	Reason   string `json:"reason,omitempty"`
	Category string `json:"category,omitempty"`
	HighRisk bool   `json:"highRisk,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// BlockedLink pairs a rejected link with its verdict.
type BlockedLink struct {
	Link    Link    `json:"link"`
	Verdict Verdict `json:"verdict"`
}

// ValidateResponse is the outcome of a batch safety check.
type ValidateResponse struct {
	ValidLinks    []Link        `json:"validLinks"`
	BlockedLinks  []BlockedLink `json:"blockedLinks"`
	RiskLevel     string        `json:"riskLevel"`
	HighRiskCount int           `json:"highRiskCount"`
}

// CacheTierStats describes one cache tier.
type CacheTierStats struct {
	Name      string        `json:"name"`
	Entries   int           `json:"entries"`
	Capacity  int           `json:"capacity"`
	TTL       time.Duration `json:"ttl"`
	Hits      uint64        `json:"hits"`
	Misses    uint64        `json:"misses"`
	Evictions uint64        `json:"evictions"`
	Expired   uint64        `json:"expired"`
	Oldest    time.Time     `json:"oldest,omitempty"`
	Newest    time.Time     `json:"newest,omitempty"`
}

// APIError is a non-2xx response from the engine.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("link engine: %d %s: %s", e.Status, e.Message, e.Detail)
	}
	return fmt.Sprintf("link engine: %d %s", e.Status, e.Message)
}

// BestLinks resolves the official, merchant and maps links for an option.
func (c *Client) BestLinks(ctx context.Context, req LinksRequest) (*BestLinksResponse, error) {
	var resp BestLinksResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/links/best", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FirstResult returns the first safe link for an option, or
// ErrNoPertinentResults.
func (c *Client) FirstResult(ctx context.Context, req LinksRequest) (*FirstResultResponse, error) {
	var resp FirstResultResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/links/first", req, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNoPertinentResults, req.Option)
		}
		return nil, err
	}
	return &resp, nil
}

// Validate checks links against the engine's safety policy.
func (c *Client) Validate(ctx context.Context, req ValidateRequest) (*ValidateResponse, error) {
	var resp ValidateResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/links/validate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CacheStats returns per-tier statistics.
func (c *Client) CacheStats(ctx context.Context) ([]CacheTierStats, error) {
	var resp struct {
		Tiers []CacheTierStats `json:"tiers"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/cache/stats", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tiers, nil
}

// ClearCache empties a tier ("action_links", "search" or "all").
func (c *Client) ClearCache(ctx context.Context, tier string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/cache/"+url.PathEscape(tier), nil, nil)
}

// Health checks the service liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.New().String())
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
