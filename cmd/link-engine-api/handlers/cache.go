package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/linkcache"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/observability"
)

// CacheAdmin is the administrative view of the cache tiers.
type CacheAdmin interface {
	Stats() []linkcache.Stats
	Clear(ctx context.Context, name string) error
}

// CacheHandler exposes tier statistics and clearing.
type CacheHandler struct {
	logger *observability.Logger
	caches CacheAdmin
}

// NewCacheHandler creates a new cache handler.
func NewCacheHandler(logger *observability.Logger, caches CacheAdmin) *CacheHandler {
	return &CacheHandler{logger: logger, caches: caches}
}

// Stats handles GET /cache/stats.
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"tiers": h.caches.Stats(),
	})
}

// Clear handles DELETE /cache/{tier}. The tier "all" clears both.
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	tier := chi.URLParam(r, "tier")

	if err := h.caches.Clear(r.Context(), tier); err != nil {
		if errors.Is(err, linkcache.ErrUnknownTier) {
			writeError(w, h.logger, http.StatusNotFound, "unknown cache tier", tier)
			return
		}
		// memory was cleared; only the snapshot write failed
		h.logger.WithContext(r.Context()).Warn().Err(err).Str("tier", tier).Msg("Cache cleared but snapshot not persisted")
	}

	h.logger.WithContext(r.Context()).Info().Str("tier", tier).Msg("Cache cleared")
	w.WriteHeader(http.StatusNoContent)
}
