package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/crypto-academy/academy"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Market   MarketConfig   `mapstructure:"market"`
	Database DatabaseConfig `mapstructure:"database"`
	Content  ContentConfig  `mapstructure:"content"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// ServerConfig stores HTTP API settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig stores zerolog settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // "debug", "info", "warn", "error"
	Pretty bool   `mapstructure:"pretty"` // console writer instead of JSON
}

// CacheConfig stores response cache settings.
type CacheConfig struct {
	Backend   string        `mapstructure:"backend"`   // "memory" | "redis" | "none"
	TTL       time.Duration `mapstructure:"ttl"`       // single process-wide expiration
	Namespace string        `mapstructure:"namespace"` // tenant prefix for shared backends
	Redis     RedisConfig   `mapstructure:"redis"`
}

// RedisConfig stores connection details for the redis cache backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RetryConfig stores the backoff policy used for upstream calls.
type RetryConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`
	InitialDelay  time.Duration `mapstructure:"initial_delay"`
	MaxDelay      time.Duration `mapstructure:"max_delay"`
	BackoffFactor float64       `mapstructure:"backoff_factor"`
}

// MarketConfig stores price-data upstream settings.
type MarketConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	APIKeyHeader string        `mapstructure:"api_key_header"`
	Timeout      time.Duration `mapstructure:"timeout"`
	DefaultLimit int           `mapstructure:"default_limit"`
	Concurrency  int           `mapstructure:"concurrency"` // max parallel per-coin fetches

	// Rate limiting
	RateLimitEnabled  bool          `mapstructure:"rate_limit_enabled"`
	RateLimitCapacity int           `mapstructure:"rate_limit_capacity"`
	RateLimitRefill   time.Duration `mapstructure:"rate_limit_refill"`
}

// DatabaseConfig stores database connection details.
type DatabaseConfig struct {
	Path      string `mapstructure:"path"`       // embedded database file
	URL       string `mapstructure:"url"`        // remote libsql URL, overrides Path
	AuthToken string `mapstructure:"auth_token"` // remote only
}

// ContentConfig stores quiz bank settings.
type ContentConfig struct {
	Dir        string `mapstructure:"dir"`
	Watch      bool   `mapstructure:"watch"`
	IgnoreFile string `mapstructure:"ignore_file"`
}

// TracingConfig toggles span logging.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("..")
		v.AddConfigPath(filepath.Join("/etc", academy.DefaultAppName))
		v.AddConfigPath(academy.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(academy.EnvPrefix)
	v.AutomaticEnv()
	// cache.redis.addr becomes ACADEMY_CACHE_REDIS_ADDR
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults and environment apply.
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", academy.DefaultServerAddr)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", academy.DefaultCacheTTL)
	v.SetDefault("cache.namespace", "")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_delay", "1s")
	v.SetDefault("retry.max_delay", "10s")
	v.SetDefault("retry.backoff_factor", 2.0)

	v.SetDefault("market.base_url", academy.DefaultMarketBaseURL)
	v.SetDefault("market.api_key", "")
	v.SetDefault("market.api_key_header", academy.DefaultMarketKeyHeader)
	v.SetDefault("market.timeout", academy.DefaultMarketTimeout)
	v.SetDefault("market.default_limit", academy.DefaultMarketListLimit)
	v.SetDefault("market.concurrency", 4)
	v.SetDefault("market.rate_limit_enabled", true)
	v.SetDefault("market.rate_limit_capacity", academy.DefaultRateLimitBurst)
	v.SetDefault("market.rate_limit_refill", academy.DefaultRateLimitRefill)

	v.SetDefault("database.path", academy.DefaultDatabasePath)
	v.SetDefault("database.url", "")
	v.SetDefault("database.auth_token", "")

	v.SetDefault("content.dir", academy.DefaultContentDir)
	v.SetDefault("content.watch", true)
	v.SetDefault("content.ignore_file", academy.DefaultContentIgnore)

	v.SetDefault("tracing.enabled", true)
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("cache.backend must be one of memory, redis, none: %q", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive: %s", c.Cache.TTL)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1: %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BackoffFactor < 1 {
		return fmt.Errorf("retry.backoff_factor must be >= 1: %v", c.Retry.BackoffFactor)
	}
	if c.Market.BaseURL == "" {
		return errors.New("market.base_url is required")
	}
	return nil
}
