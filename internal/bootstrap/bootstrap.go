// Package bootstrap builds a fully wired link engine from configuration.
// The API server and the CLI share it so both resolve links identically.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/cache"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/catalog"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/config"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/linkcache"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/metrics"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/monitoring"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/observability"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/resolver"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/safety"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/search"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/storage"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/verify"
)

const readyProbeKey = "linkcache:ready"

// Engine is the wired set of collaborators behind every surface.
type Engine struct {
	Config    *config.Config
	Logger    *observability.Logger
	Catalog   *catalog.Store
	Caches    *linkcache.Caches
	Validator *safety.Validator
	Resolver  *resolver.Resolver
	Batch     *resolver.BatchResolver
	Audit     *monitoring.AuditLogger

	backend cache.Client
	watcher *catalog.Watcher
}

// NewLogger creates the process logger from the observability section.
func NewLogger(cfg *config.Config) *observability.Logger {
	return observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
		File:        cfg.Observability.LogFile,
	})
}

// New opens the storage backend, loads the catalog and hydrates the caches.
// Call Start to launch the background loops and Close on shutdown.
func New(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Engine, error) {
	if logger == nil {
		logger = NewLogger(cfg)
	}

	backend, publisher, err := OpenBackend(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	cat, err := loadCatalog(cfg.Catalog.Path)
	if err != nil {
		backend.Close()
		return nil, err
	}
	store := catalog.NewStore(cat)
	metrics.SetCatalogVersion(cat.Version)

	var watcher *catalog.Watcher
	if cfg.Catalog.Watch && cfg.Catalog.Path != "" {
		watcher, err = catalog.NewWatcher(cfg.Catalog.Path, store, logger)
		if err != nil {
			backend.Close()
			return nil, err
		}
		watcher.OnReload = func(c *catalog.Catalog) { metrics.SetCatalogVersion(c.Version) }
	}

	if !cfg.Audit.Publish {
		publisher = nil
	}
	audit := monitoring.NewAuditLogger(logger, publisher, cfg.Audit.Channel)
	if rs, ok := publisher.(*cache.RedisStore); ok {
		logger.Info().Str("channel", rs.Channel(audit.Channel())).Msg("Publishing block events")
	}
	validator := safety.NewValidator(store, logger, audit)

	provider, err := search.NewHTTPProvider(search.Config{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
		Name:    cfg.Provider.Name,
		Timeout: cfg.Provider.Timeout,
	}, logger)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("create search provider: %w", err)
	}

	var verifier verify.Verifier = verify.LocalVerifier{}
	if cfg.Verifier.Enabled {
		hv, err := verify.NewHTTPVerifier(verify.Config{
			BaseURL: cfg.Verifier.BaseURL,
			APIKey:  cfg.Verifier.APIKey,
			Timeout: cfg.Verifier.Timeout,
		}, logger)
		if err != nil {
			backend.Close()
			return nil, fmt.Errorf("create verifier: %w", err)
		}
		verifier = hv
	}

	caches := linkcache.New(CacheConfig(cfg.Cache), backend, logger)
	if err := caches.Load(ctx); err != nil {
		// a corrupt or unreadable snapshot starts the tiers empty
		logger.Warn().Err(err).Msg("Failed to load cache snapshots")
	}

	res, err := resolver.New(ResolverConfig(cfg.Resolver), resolver.Deps{
		Catalog:   store,
		Provider:  provider,
		Verifier:  verifier,
		Caches:    caches,
		Validator: validator,
		Logger:    logger,
	})
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("create resolver: %w", err)
	}

	logger.Info().
		Str("storage", cfg.Storage.Driver).
		Str("catalog_version", cat.Version).
		Str("provider", provider.Name()).
		Bool("verifier", cfg.Verifier.Enabled).
		Msg("Link engine initialized")

	return &Engine{
		Config:    cfg,
		Logger:    logger,
		Catalog:   store,
		Caches:    caches,
		Validator: validator,
		Resolver:  res,
		Batch:     resolver.NewBatchResolver(res, cfg.Resolver.WarmConcurrency),
		Audit:     audit,
		backend:   backend,
		watcher:   watcher,
	}, nil
}

// Start launches the cache cleanup loop, the catalog watcher and, for SQL
// backends, the expired-row purge. All stop when ctx is done.
func (e *Engine) Start(ctx context.Context) {
	e.Caches.StartCleanup(ctx)
	if e.watcher != nil {
		go e.watcher.Run(ctx)
	}
	if kv, ok := e.backend.(*storage.KVStore); ok {
		go e.purgeExpired(ctx, kv, e.Config.Cache.CleanupInterval)
	}
}

func (e *Engine) purgeExpired(ctx context.Context, kv *storage.KVStore, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := kv.PurgeExpired(ctx)
			if err != nil {
				if ctx.Err() == nil {
					e.Logger.Warn().Err(err).Msg("Failed to purge expired cache rows")
				}
				continue
			}
			if n > 0 {
				e.Logger.Debug().Int("rows", int(n)).Msg("Purged expired cache rows")
			}
		}
	}
}

// Ready reports whether the storage backend answers.
func (e *Engine) Ready(ctx context.Context) error {
	_, err := e.backend.Get(ctx, readyProbeKey)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		return fmt.Errorf("storage backend not ready: %w", err)
	}
	return nil
}

// Close flushes both tiers and releases the backend.
func (e *Engine) Close(ctx context.Context) error {
	var errs []error
	if err := e.Caches.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush caches: %w", err))
	}
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close catalog watcher: %w", err))
		}
	}
	if err := e.backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage backend: %w", err))
	}
	return errors.Join(errs...)
}

// OpenBackend opens the durable cache backend named by cfg.Driver. The
// publisher is non-nil only for redis.
func OpenBackend(ctx context.Context, cfg config.StorageConfig) (cache.Client, cache.Publisher, error) {
	switch cfg.Driver {
	case "memory":
		return cache.NewMemoryClient(0), nil, nil
	case "sqlite":
		kv, err := storage.Open(ctx, string(storage.DialectSQLite), cfg.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		return kv, nil, nil
	case "postgres":
		kv, err := storage.Open(ctx, string(storage.DialectPostgres), cfg.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres storage: %w", err)
		}
		return kv, nil, nil
	case "redis":
		rs, err := cache.NewRedisStore(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open redis storage: %w", err)
		}
		return rs, rs, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
}

// CacheConfig converts the cache section into tier options.
func CacheConfig(c config.CacheConfig) linkcache.Config {
	return linkcache.Config{
		ActionLinks: linkcache.Options{
			Name:       linkcache.TierActionLinks,
			TTL:        c.ActionLinks.TTL,
			Capacity:   c.ActionLinks.Capacity,
			EvictBatch: c.ActionLinks.EvictBatch,
			StorageKey: c.ActionLinks.StorageKey,
		},
		Search: linkcache.Options{
			Name:       linkcache.TierSearch,
			TTL:        c.Search.TTL,
			Capacity:   c.Search.Capacity,
			EvictBatch: c.Search.EvictBatch,
			StorageKey: c.Search.StorageKey,
		},
		CleanupInterval: c.CleanupInterval,
	}
}

// ResolverConfig converts the resolver section.
func ResolverConfig(c config.ResolverConfig) resolver.Config {
	return resolver.Config{
		GlobalDeadline:    c.GlobalDeadline,
		OfficialDeadline:  c.OfficialDeadline,
		MerchantDeadline:  c.MerchantDeadline,
		MinOfficialBudget: c.MinOfficialBudget,
		NumResults:        c.NumResults,
		MaxMerchants:      c.MaxMerchants,
		DefaultLanguage:   c.DefaultLanguage,
	}
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		c, err := catalog.Default()
		if err != nil {
			return nil, fmt.Errorf("load embedded catalog: %w", err)
		}
		return c, nil
	}
	c, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return c, nil
}
