// Package config provides unified configuration loading for the link engine.
// Supports YAML files, .env files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the link engine.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Cache         CacheConfig         `yaml:"cache"`
	Resolver      ResolverConfig      `yaml:"resolver"`
	Provider      ProviderConfig      `yaml:"provider"`
	Verifier      VerifierConfig      `yaml:"verifier"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Audit         AuditConfig         `yaml:"audit"`
	Observability ObservabilityConfig `yaml:"observability"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Auth          AuthConfig          `yaml:"auth"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
}

// StorageConfig selects the durable backend the cache tiers persist to.
type StorageConfig struct {
	Driver   string         `yaml:"driver"` // memory, sqlite, postgres or redis
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// CacheConfig holds the two cache tiers.
type CacheConfig struct {
	ActionLinks     TierConfig    `yaml:"action_links"`
	Search          TierConfig    `yaml:"search"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// TierConfig holds one cache tier's settings.
type TierConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	Capacity   int           `yaml:"capacity"`
	EvictBatch int           `yaml:"evict_batch"`
	StorageKey string        `yaml:"storage_key"`
}

// ResolverConfig holds the resolution deadlines and limits.
type ResolverConfig struct {
	GlobalDeadline    time.Duration `yaml:"global_deadline"`
	OfficialDeadline  time.Duration `yaml:"official_deadline"`
	MerchantDeadline  time.Duration `yaml:"merchant_deadline"`
	MinOfficialBudget time.Duration `yaml:"min_official_budget"`
	NumResults        int           `yaml:"num_results"`
	MaxMerchants      int           `yaml:"max_merchants"`
	DefaultLanguage   string        `yaml:"default_language"`
	WarmConcurrency   int           `yaml:"warm_concurrency"`
}

// ProviderConfig holds the search provider settings.
type ProviderConfig struct {
	Name    string        `yaml:"name"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// VerifierConfig holds the reachability verifier settings.
type VerifierConfig struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// CatalogConfig points at an optional catalog override file.
type CatalogConfig struct {
	Path  string `yaml:"path"` // empty means the embedded catalog
	Watch bool   `yaml:"watch"`
}

// AuditConfig holds block audit settings.
type AuditConfig struct {
	Publish bool   `yaml:"publish"` // requires the redis storage driver
	Channel string `yaml:"channel"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	LogFile     string `yaml:"log_file"`
	ServiceName string `yaml:"service_name"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// AuthConfig holds API key authentication settings.
type AuthConfig struct {
	Enabled bool     `yaml:"enabled"`
	APIKeys []string `yaml:"api_keys"`
}

// Load reads configuration from a YAML file and applies .env and
// environment overrides.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}

		if cfg.Catalog.Path != "" {
			cfg.Catalog.Path = ResolveRelativePath(path, cfg.Catalog.Path)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8086,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     15 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
			AllowedOrigins:   []string{"*"},
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path: filepath.Join(os.TempDir(), "link-engine.db"),
			},
			Redis: RedisConfig{
				Addr:     "localhost:6380",
				PoolSize: 10,
				Prefix:   "le:",
			},
		},
		Cache: CacheConfig{
			ActionLinks: TierConfig{
				TTL:        7 * 24 * time.Hour,
				Capacity:   200,
				EvictBatch: 100,
				StorageKey: "linkcache:action_links",
			},
			Search: TierConfig{
				TTL:        5 * time.Minute,
				Capacity:   100,
				EvictBatch: 50,
				StorageKey: "linkcache:search",
			},
			CleanupInterval: time.Minute,
		},
		Resolver: ResolverConfig{
			GlobalDeadline:    3500 * time.Millisecond,
			OfficialDeadline:  2500 * time.Millisecond,
			MerchantDeadline:  2500 * time.Millisecond,
			MinOfficialBudget: 500 * time.Millisecond,
			NumResults:        10,
			MaxMerchants:      2,
			DefaultLanguage:   "en",
			WarmConcurrency:   4,
		},
		Provider: ProviderConfig{
			Name:    "search",
			BaseURL: "http://localhost:8090",
			Timeout: 5 * time.Second,
		},
		Verifier: VerifierConfig{
			Enabled: false,
			BaseURL: "http://localhost:8091",
			Timeout: 3 * time.Second,
		},
		Audit: AuditConfig{
			Channel: "link-blocks",
		},
		Observability: ObservabilityConfig{
			LogLevel:    "debug",
			LogFormat:   "json",
			ServiceName: "link-engine",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Auth: AuthConfig{
			Enabled: false,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres", "redis":
	default:
		return fmt.Errorf("invalid storage driver: %s", c.Storage.Driver)
	}
	if c.Storage.Driver == "sqlite" && c.Storage.SQLite.Path == "" {
		return fmt.Errorf("storage.sqlite.path is required for the sqlite driver")
	}
	if c.Storage.Driver == "postgres" && c.Storage.Postgres.DSN == "" {
		return fmt.Errorf("storage.postgres.dsn is required for the postgres driver")
	}

	for name, t := range map[string]TierConfig{"action_links": c.Cache.ActionLinks, "search": c.Cache.Search} {
		if t.TTL <= 0 {
			return fmt.Errorf("cache.%s.ttl must be positive", name)
		}
		if t.Capacity < 1 {
			return fmt.Errorf("cache.%s.capacity must be at least 1", name)
		}
		if t.EvictBatch < 1 || t.EvictBatch > t.Capacity {
			return fmt.Errorf("cache.%s.evict_batch must be between 1 and capacity", name)
		}
	}

	r := c.Resolver
	if r.GlobalDeadline <= 0 || r.OfficialDeadline <= 0 || r.MerchantDeadline <= 0 {
		return fmt.Errorf("resolver deadlines must be positive")
	}
	if r.OfficialDeadline > r.GlobalDeadline || r.MerchantDeadline > r.GlobalDeadline {
		return fmt.Errorf("resolver sub-deadlines must not exceed the global deadline")
	}
	if r.MaxMerchants < 0 || r.MaxMerchants > 2 {
		return fmt.Errorf("max_merchants must be between 0 and 2")
	}
	if r.NumResults < 1 || r.NumResults > 50 {
		return fmt.Errorf("num_results must be between 1 and 50")
	}

	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required")
	}
	if c.Verifier.Enabled && c.Verifier.BaseURL == "" {
		return fmt.Errorf("verifier.base_url is required when the verifier is enabled")
	}
	if c.Audit.Publish && c.Storage.Driver != "redis" {
		return fmt.Errorf("audit.publish requires the redis storage driver")
	}
	if c.Auth.Enabled && len(c.Auth.APIKeys) == 0 {
		return fmt.Errorf("auth is enabled but no api_keys are configured")
	}

	return nil
}

// DSN returns the connection string for the sql drivers.
func (s StorageConfig) DSN() string {
	if s.Driver == "sqlite" {
		return s.SQLite.Path
	}
	return s.Postgres.DSN
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Storage.Driver = "sqlite"
			cfg.Storage.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Storage.Driver = "postgres"
			cfg.Storage.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Storage.Driver = "redis"
		cfg.Storage.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Storage.Redis.Password = v
	}

	if v := os.Getenv("SEARCH_PROVIDER_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}

	if v := os.Getenv("SEARCH_PROVIDER_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}

	if v := os.Getenv("SEARCH_PROVIDER_NAME"); v != "" {
		cfg.Provider.Name = v
	}

	if v := os.Getenv("VERIFIER_URL"); v != "" {
		cfg.Verifier.BaseURL = v
		cfg.Verifier.Enabled = true
	}

	if v := os.Getenv("CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}

	if v := os.Getenv("DEFAULT_LANGUAGE"); v != "" {
		cfg.Resolver.DefaultLanguage = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Observability.LogFile = v
	}

	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = v == "true"
	}

	if v := os.Getenv("AUTH_ENABLED"); v == "true" {
		cfg.Auth.Enabled = true
	}

	if v := os.Getenv("API_KEYS"); v != "" {
		cfg.Auth.APIKeys = nil
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				cfg.Auth.APIKeys = append(cfg.Auth.APIKeys, k)
			}
		}
	}
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if filepath.IsAbs(targetPath) {
		return targetPath
	}
	configDir := filepath.Dir(configPath)
	return filepath.Join(configDir, targetPath)
}
