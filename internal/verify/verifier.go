// Package verify checks that candidate links are reachable, through an
// external verification service or a local format check.
package verify

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
	"github.com/spherical-ai/spherical/libs/link-engine/internal/urlx"
)

var (
	// ErrVerificationFailed is returned when the verification service is
	// unreachable or answers with an error.
	ErrVerificationFailed = errors.New("link verification failed")
	// ErrInvalidURLFormat is returned by ValidateFormat.
	ErrInvalidURLFormat = errors.New("invalid URL format")
)

// Status is the reachability of one link.
type Status string

const (
	StatusValid    Status = "valid"
	StatusInvalid  Status = "invalid"
	StatusRedirect Status = "redirect"
	StatusTimeout  Status = "timeout"
)

// Link is a link to verify.
type Link struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Verification is the verdict for one link.
type Verification struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Status   Status `json:"status"`
	FinalURL string `json:"finalUrl,omitempty"`
}

// Usable reports whether the link can be shown. Redirects are usable
// through their final URL.
func (v Verification) Usable() bool {
	return v.Status == StatusValid || (v.Status == StatusRedirect && v.FinalURL != "")
}

// Target returns the URL to show for a usable verification.
func (v Verification) Target() string {
	if v.Status == StatusRedirect && v.FinalURL != "" {
		return v.FinalURL
	}
	return v.URL
}

// Verifier checks links.
type Verifier interface {
	Verify(ctx context.Context, items []Link) ([]Verification, error)
}

// ValidateFormat checks that raw is an absolute http(s) URL whose host
// ends in an alphabetic top-level domain.
func ValidateFormat(raw string) error {
	u, err := urlx.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURLFormat, err)
	}
	host := u.Hostname()
	tld := host[strings.LastIndex(host, ".")+1:]
	if len(tld) < 2 || strings.IndexFunc(tld, func(r rune) bool { return r < 'a' || r > 'z' }) >= 0 {
		return fmt.Errorf("%w: bad host %q", ErrInvalidURLFormat, host)
	}
	return nil
}

// LocalVerifier validates URL format only. It never fails.
type LocalVerifier struct{}

// Verify marks well-formed links valid and the rest invalid.
func (LocalVerifier) Verify(_ context.Context, items []Link) ([]Verification, error) {
	out := make([]Verification, 0, len(items))
	for _, l := range items {
		status := StatusValid
		if ValidateFormat(l.URL) != nil {
			status = StatusInvalid
		}
		out = append(out, Verification{URL: l.URL, Title: l.Title, Status: status})
	}
	return out, nil
}

// Config holds verification service configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPVerifier calls a JSON verification service at POST {BaseURL}/verify.
type HTTPVerifier struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *observability.Logger
}

// NewHTTPVerifier creates a verification client.
func NewHTTPVerifier(cfg Config, logger *observability.Logger) (*HTTPVerifier, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("verifier base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &HTTPVerifier{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		logger:     logger.WithComponent("verify"),
	}, nil
}

type verifyRequest struct {
	Links []Link `json:"links"`
}

type verifyResponse struct {
	Results []Verification `json:"results"`
}

// Verify sends items to the service. Results are returned in the order of
// items; links the service did not report on are marked invalid.
func (v *HTTPVerifier) Verify(ctx context.Context, items []Link) ([]Verification, error) {
	if len(items) == 0 {
		return nil, nil
	}

	jsonBody, err := json.Marshal(verifyRequest{Links: items})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/verify", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.apiKey)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %v", ErrVerificationFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrVerificationFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrVerificationFailed, resp.StatusCode)
	}

	var vr verifyResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", ErrVerificationFailed, err)
	}

	byURL := make(map[string]Verification, len(vr.Results))
	for _, r := range vr.Results {
		byURL[r.URL] = r
	}
	out := make([]Verification, 0, len(items))
	for _, l := range items {
		r, ok := byURL[l.URL]
		if !ok {
			r = Verification{URL: l.URL, Status: StatusInvalid}
		}
		if r.Title == "" {
			r.Title = l.Title
		}
		out = append(out, r)
	}

	v.logger.Debug().Int("links", len(items)).Int("reported", len(vr.Results)).Msg("Links verified")
	return out, nil
}
