// Package search provides the client for the external web search provider.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/observability"
)

var (
	// ErrProviderTimeout is returned when the provider does not answer
	// before the request deadline.
	ErrProviderTimeout = errors.New("search provider timeout")
	// ErrProviderError covers network failures and non-2xx answers.
	ErrProviderError = errors.New("search provider error")
	// ErrNoResults is returned when a search succeeds with zero results.
	ErrNoResults = errors.New("search returned no results")
)

// Request is one search query.
type Request struct {
	Query      string   `json:"query"`
	Language   string   `json:"language"`
	Vertical   string   `json:"vertical,omitempty"`
	NumResults int      `json:"numResults"`
	SiteBias   []string `json:"siteBias,omitempty"`
}

// Result is one provider hit.
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
}

// Response is the provider answer.
type Response struct {
	Provider string   `json:"provider"`
	Results  []Result `json:"results"`
}

// Provider runs web searches.
type Provider interface {
	Search(ctx context.Context, req Request) (*Response, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req Request) (*Response, error)

// Search calls f.
func (f ProviderFunc) Search(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Config holds HTTP provider configuration.
type Config struct {
	BaseURL string
	APIKey  string
	// Name is reported as Response.Provider when the service omits it.
	Name    string
	Timeout time.Duration
}

// HTTPProvider calls a JSON search service at POST {BaseURL}/search.
type HTTPProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	name       string
	logger     *observability.Logger
}

// NewHTTPProvider creates a provider client.
func NewHTTPProvider(cfg Config, logger *observability.Logger) (*HTTPProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("search provider base URL is required")
	}
	if cfg.Name == "" {
		cfg.Name = "search"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &HTTPProvider{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		name:       cfg.Name,
		logger:     logger.WithComponent("search"),
	}, nil
}

// Name returns the configured provider name.
func (p *HTTPProvider) Name() string {
	return p.name
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Search sends req to the provider. Deadline and cancellation errors wrap
// ErrProviderTimeout; transport and status errors wrap ErrProviderError.
func (p *HTTPProvider) Search(ctx context.Context, req Request) (*Response, error) {
	if req.NumResults <= 0 {
		req.NumResults = 10
	}

	jsonBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/search", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	start := time.Now()
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, fmt.Errorf("%w: %v", ErrProviderTimeout, err)
		}
		return nil, fmt.Errorf("%w: send request: %v", ErrProviderError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, fmt.Errorf("%w: %v", ErrProviderTimeout, err)
		}
		return nil, fmt.Errorf("%w: read response: %v", ErrProviderError, err)
	}

	if resp.StatusCode != http.StatusOK {
		var eb errorBody
		if err := json.Unmarshal(body, &eb); err == nil && (eb.Message != "" || eb.Error != "") {
			return nil, fmt.Errorf("%w: status %d: %s %s", ErrProviderError, resp.StatusCode, eb.Error, eb.Message)
		}
		return nil, fmt.Errorf("%w: status %d", ErrProviderError, resp.StatusCode)
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", ErrProviderError, err)
	}
	if out.Provider == "" {
		out.Provider = p.name
	}
	if len(out.Results) > req.NumResults {
		out.Results = out.Results[:req.NumResults]
	}

	p.logger.Debug().
		Str("query", req.Query).
		Str("language", req.Language).
		Int("results", len(out.Results)).
		Dur("duration", time.Since(start)).
		Msg("Search completed")

	return &out, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
