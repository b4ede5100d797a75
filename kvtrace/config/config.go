package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	internal "github.com/ZanzyTHEbar/kvtrace/kvtrace"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Store     StoreConfig     `mapstructure:"store"`
	PageCache PageCacheConfig `mapstructure:"page_cache"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

// StoreConfig selects and configures the key-value backend.
type StoreConfig struct {
	Backend string       `mapstructure:"backend"` // "redis", "memory", "libsql"
	Redis   RedisConfig  `mapstructure:"redis"`
	LibSQL  LibSQLConfig `mapstructure:"libsql"`
}

// RedisConfig stores Redis connection details.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// LibSQLConfig stores the embedded database location.
type LibSQLConfig struct {
	Path string `mapstructure:"path"`
}

// PageCacheConfig configures the expiring page cache and its fetcher.
type PageCacheConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`           // lifetime of cache:<url>
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"` // per request

	RateLimitEnabled    bool          `mapstructure:"rate_limit_enabled"`
	RateLimitCapacity   int           `mapstructure:"rate_limit_capacity"`    // tokens per host
	RateLimitRefillRate time.Duration `mapstructure:"rate_limit_refill_rate"` // one token per interval
}

// TracingConfig selects the span backend.
type TracingConfig struct {
	Backend     string `mapstructure:"backend"` // "none", "zerolog", "otel"
	ServiceName string `mapstructure:"service_name"`

	// OpenTelemetry only
	Exporter    string  `mapstructure:"exporter"`     // "stdout"
	PrettyPrint bool    `mapstructure:"pretty_print"` // indent exported spans
	SampleRatio float64 `mapstructure:"sample_ratio"` // 0..1 of root spans kept
}

// MetricsConfig controls prometheus counters.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // zerolog level name
	Format string `mapstructure:"format"` // "console" or "json"
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		// An explicit path must exist; only the search path may come up empty.
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetDefault("store.backend", internal.DefaultStoreType)
	v.SetDefault("store.redis.addr", internal.DefaultRedisAddr)
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.dial_timeout", "5s")
	v.SetDefault("store.libsql.path", internal.DefaultLibSQLPath)

	v.SetDefault("page_cache.ttl", internal.DefaultPageTTL)
	v.SetDefault("page_cache.fetch_timeout", internal.DefaultFetchTimeout)
	v.SetDefault("page_cache.rate_limit_enabled", false)
	v.SetDefault("page_cache.rate_limit_capacity", 10)
	v.SetDefault("page_cache.rate_limit_refill_rate", "1s")

	v.SetDefault("tracing.backend", "none")
	v.SetDefault("tracing.service_name", internal.DefaultAppName)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.pretty_print", false)
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", internal.DefaultAppName)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetEnvPrefix(internal.DefaultEnvPrefix)
	v.AutomaticEnv()
	// Replace dots with underscores in env var names e.g. store.redis.addr becomes KVTRACE_STORE_REDIS_ADDR
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file on the search path; defaults and env apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the factory cannot build from.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "redis", "memory", "libsql":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch c.Tracing.Backend {
	case "none", "zerolog", "otel":
	default:
		return fmt.Errorf("unknown tracing backend %q", c.Tracing.Backend)
	}
	if c.Tracing.Backend == "otel" {
		if c.Tracing.Exporter != "stdout" {
			return fmt.Errorf("unknown tracing exporter %q", c.Tracing.Exporter)
		}
		if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
			return fmt.Errorf("tracing.sample_ratio must be within [0, 1], got %g", c.Tracing.SampleRatio)
		}
	}

	if c.PageCache.TTL <= 0 {
		return fmt.Errorf("page_cache.ttl must be positive, got %s", c.PageCache.TTL)
	}
	if c.PageCache.RateLimitEnabled && c.PageCache.RateLimitCapacity < 1 {
		return fmt.Errorf("page_cache.rate_limit_capacity must be at least 1, got %d", c.PageCache.RateLimitCapacity)
	}
	return nil
}
