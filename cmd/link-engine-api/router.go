// Package main provides the API router setup.
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/spherical-ai/spherical/libs/link-engine/cmd/link-engine-api/handlers"
	"github.com/spherical-ai/spherical/libs/link-engine/cmd/link-engine-api/middleware"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/api/grpc"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/observability"
)

// AppConfig holds the router's configuration.
type AppConfig struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
	MetricsEnabled bool
	MetricsPath    string
	AuthConfig     middleware.AuthConfig
}

// Services are the collaborators behind the routes.
type Services struct {
	Resolver  handlers.LinkResolver
	Validator handlers.BatchValidator
	Caches    handlers.CacheAdmin
	// Ready reports storage readiness; nil means always ready.
	Ready func(ctx context.Context) error
}

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg *AppConfig, svc Services) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key", "Connect-Protocol-Version"},
		MaxAge:         86400,
	}).Handler)
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

	// Health check (unauthenticated)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"link-engine"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if svc.Ready != nil {
			if err := svc.Ready(r.Context()); err != nil {
				logger.Warn().Err(err).Msg("Readiness check failed")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"not_ready"}`))
				return
			}
		}
		w.Write([]byte(`{"status":"ready"}`))
	})

	if cfg.MetricsEnabled {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.Handler())
	}

	// Initialize handlers
	linksHandler := handlers.NewLinksHandler(logger, svc.Resolver, svc.Validator)
	cacheHandler := handlers.NewCacheHandler(logger, svc.Caches)
	linksService := grpc.NewLinksService(logger, svc.Resolver, svc.Validator)

	// Connect service
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.AuthConfig))
		path, handler := linksService.Handler()
		r.Handle(path+"*", handler)
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Authentication middleware for all API routes
		r.Use(middleware.Auth(cfg.AuthConfig))

		r.Route("/links", func(r chi.Router) {
			r.Post("/best", linksHandler.Best)
			r.Post("/first", linksHandler.First)
			r.Post("/validate", linksHandler.Validate)
		})

		r.Route("/cache", func(r chi.Router) {
			r.Get("/stats", cacheHandler.Stats)
			r.Delete("/{tier}", cacheHandler.Clear)
		})
	})

	return r
}

// DefaultAppConfig returns default configuration values.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		RequestTimeout: 15 * time.Second,
		AllowedOrigins: []string{"*"},
		MetricsEnabled: true,
		MetricsPath:    "/metrics",
		AuthConfig: middleware.AuthConfig{
			Enabled: false, // Disabled by default for development
		},
	}
}
