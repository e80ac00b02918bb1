// Package handlers provides HTTP handlers for the link engine API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/observability"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/resolver"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/safety"
)

// maxValidateLinks bounds a single validation request.
const maxValidateLinks = 100

// LinkResolver resolves action links for one option.
type LinkResolver interface {
	GetBestLinks(ctx context.Context, req links.Request) *links.ResolvedLinks
	GetFirstResultURL(ctx context.Context, req links.Request) (*links.FirstResult, error)
}

// BatchValidator validates links against the safety policy.
type BatchValidator interface {
	ValidateBatch(ctx context.Context, items []links.Link, opts safety.BatchOptions) safety.BatchResult
	Sanitize(ctx context.Context, items []links.Link, query, lang string, opts safety.BatchOptions) []links.Link
}

// LinksHandler handles link resolution requests.
type LinksHandler struct {
	logger    *observability.Logger
	resolver  LinkResolver
	validator BatchValidator
}

// NewLinksHandler creates a new links handler.
func NewLinksHandler(logger *observability.Logger, resolver LinkResolver, validator BatchValidator) *LinksHandler {
	return &LinksHandler{
		logger:    logger,
		resolver:  resolver,
		validator: validator,
	}
}

// LinksRequestDTO represents the API request for link resolution.
type LinksRequestDTO struct {
	Option   string `json:"option"`
	Question string `json:"question,omitempty"`
	Language string `json:"language,omitempty"`
	Vertical string `json:"vertical,omitempty"`
}

// BestLinksResponseDTO represents the best-links response.
type BestLinksResponseDTO struct {
	*links.ResolvedLinks
	LatencyMs int64 `json:"latencyMs"`
}

// FirstResultResponseDTO represents the first-result response.
type FirstResultResponseDTO struct {
	*links.FirstResult
	LatencyMs int64 `json:"latencyMs"`
}

// ValidateRequestDTO represents a batch validation request. Links and
// URLs may be combined. With Sanitize set, the response also carries the
// input with every blocked link swapped for a safe search link on Query.
type ValidateRequestDTO struct {
	Links    []links.Link `json:"links,omitempty"`
	URLs     []string     `json:"urls,omitempty"`
	Option   string       `json:"option,omitempty"`
	Sanitize bool         `json:"sanitize,omitempty"`
	Query    string       `json:"query,omitempty"`
	Language string       `json:"language,omitempty"`
}

// ValidateResponseDTO represents the validation response.
type ValidateResponseDTO struct {
	safety.BatchResult
	HighRiskCount  int          `json:"highRiskCount"`
	SanitizedLinks []links.Link `json:"sanitizedLinks,omitempty"`
}

// Best handles POST /links/best.
func (h *LinksHandler) Best(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	res := h.resolver.GetBestLinks(r.Context(), req)

	writeJSON(w, h.logger, http.StatusOK, BestLinksResponseDTO{
		ResolvedLinks: res,
		LatencyMs:     time.Since(start).Milliseconds(),
	})
}

// First handles POST /links/first.
func (h *LinksHandler) First(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	res, err := h.resolver.GetFirstResultURL(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, resolver.ErrNoPertinentResults):
			writeError(w, h.logger, http.StatusNotFound, "no pertinent results", err.Error())
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			writeError(w, h.logger, http.StatusGatewayTimeout, "resolution timed out", err.Error())
		default:
			h.logger.WithContext(r.Context()).Error().Err(err).Msg("First result resolution failed")
			writeError(w, h.logger, http.StatusInternalServerError, "resolution failed", err.Error())
		}
		return
	}

	writeJSON(w, h.logger, http.StatusOK, FirstResultResponseDTO{
		FirstResult: res,
		LatencyMs:   time.Since(start).Milliseconds(),
	})
}

// Validate handles POST /links/validate.
func (h *LinksHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var dto ValidateRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	items := append([]links.Link(nil), dto.Links...)
	for _, u := range dto.URLs {
		items = append(items, links.Link{URL: u})
	}
	if len(items) == 0 {
		writeError(w, h.logger, http.StatusBadRequest, "links or urls are required", "")
		return
	}
	if len(items) > maxValidateLinks {
		writeError(w, h.logger, http.StatusBadRequest, "too many links", "")
		return
	}

	opts := safety.BatchOptions{Option: dto.Option, Flow: "api"}
	res := h.validator.ValidateBatch(r.Context(), items, opts)
	resp := ValidateResponseDTO{
		BatchResult:   res,
		HighRiskCount: res.HighRiskCount(),
	}
	if dto.Sanitize {
		query := dto.Query
		if query == "" {
			query = dto.Option
		}
		opts.Flow = "shopping"
		resp.SanitizedLinks = h.validator.Sanitize(r.Context(), items, query, dto.Language, opts)
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *LinksHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (links.Request, bool) {
	var dto LinksRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return links.Request{}, false
	}
	if dto.Option == "" {
		writeError(w, h.logger, http.StatusBadRequest, "option is required", "")
		return links.Request{}, false
	}
	if dto.Vertical != "" {
		if _, ok := links.ParseVertical(dto.Vertical); !ok {
			writeError(w, h.logger, http.StatusBadRequest, "unknown vertical", dto.Vertical)
			return links.Request{}, false
		}
	}
	return links.Request{
		Option:   dto.Option,
		Question: dto.Question,
		Language: dto.Language,
		Vertical: dto.Vertical,
	}, true
}

func writeJSON(w http.ResponseWriter, logger *observability.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, logger *observability.Logger, status int, message, detail string) {
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	writeJSON(w, logger, status, resp)
}
