package linkcache

import (
	"context"
	"errors"
	"time"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/cache"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/observability"
)

// Tier names.
const (
	TierActionLinks = "action_links"
	TierSearch      = "search"
)

// Config sizes both tiers.
type Config struct {
	ActionLinks Options
	Search      Options
	// CleanupInterval drives the search tier's background pruning.
	CleanupInterval time.Duration
}

// DefaultConfig returns the production tier settings.
func DefaultConfig() Config {
	return Config{
		ActionLinks: Options{
			Name:       TierActionLinks,
			TTL:        7 * 24 * time.Hour,
			Capacity:   200,
			EvictBatch: 100,
			StorageKey: "linkcache:action_links",
		},
		Search: Options{
			Name:       TierSearch,
			TTL:        5 * time.Minute,
			Capacity:   100,
			EvictBatch: 50,
			StorageKey: "linkcache:search",
		},
		CleanupInterval: time.Minute,
	}
}

// ErrUnknownTier is returned by Clear for a name that is not a tier.
var ErrUnknownTier = errors.New("unknown cache tier")

// Caches holds the two tiers. Construct one per process and call Load
// before serving.
type Caches struct {
	ActionLinks *Tier[links.ResolvedLinks]
	Search      *Tier[links.ResolvedLinks]

	cleanupInterval time.Duration
}

// New creates both tiers on backend, which may be nil for memory-only caches.
func New(cfg Config, backend cache.Client, logger *observability.Logger) *Caches {
	if cfg.ActionLinks.Name == "" {
		cfg.ActionLinks.Name = TierActionLinks
	}
	if cfg.Search.Name == "" {
		cfg.Search.Name = TierSearch
	}
	return &Caches{
		ActionLinks:     NewTier[links.ResolvedLinks](cfg.ActionLinks, backend, logger),
		Search:          NewTier[links.ResolvedLinks](cfg.Search, backend, logger),
		cleanupInterval: cfg.CleanupInterval,
	}
}

// Load hydrates both tiers from the backend.
func (c *Caches) Load(ctx context.Context) error {
	return errors.Join(c.ActionLinks.Load(ctx), c.Search.Load(ctx))
}

// Flush persists both tiers.
func (c *Caches) Flush(ctx context.Context) error {
	return errors.Join(c.ActionLinks.Flush(ctx), c.Search.Flush(ctx))
}

// Stats returns the stats of both tiers.
func (c *Caches) Stats() []Stats {
	return []Stats{c.ActionLinks.Stats(), c.Search.Stats()}
}

// Clear empties the named tier, or both when name is "all" or empty.
func (c *Caches) Clear(ctx context.Context, name string) error {
	switch name {
	case TierActionLinks:
		return c.ActionLinks.Clear(ctx)
	case TierSearch:
		return c.Search.Clear(ctx)
	case "", "all":
		return errors.Join(c.ActionLinks.Clear(ctx), c.Search.Clear(ctx))
	}
	return ErrUnknownTier
}

// StartCleanup runs the search tier's periodic pruning until ctx is done.
func (c *Caches) StartCleanup(ctx context.Context) <-chan struct{} {
	return c.Search.StartCleanup(ctx, c.cleanupInterval)
}
