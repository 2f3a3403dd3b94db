// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Registry RegistryConfig `mapstructure:"registry"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	DB       DBConfig       `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// RegistryConfig locates the public registry API.
type RegistryConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	ListEndpoint     string `mapstructure:"list_endpoint"`
	DocumentEndpoint string `mapstructure:"document_endpoint"`
}

// HTTPConfig configures transport client behavior.
type HTTPConfig struct {
	TimeoutSeconds    int      `mapstructure:"timeout_seconds"`
	Concurrency       int      `mapstructure:"concurrency"`
	RequestDelayMs    int      `mapstructure:"request_delay_ms"`
	MaxRetries        int      `mapstructure:"max_retries"`
	RetryDelaySeconds int      `mapstructure:"retry_delay_seconds"`
	UserAgents        []string `mapstructure:"user_agents"`
}

// DBConfig controls access to the relational store.
type DBConfig struct {
	DSN            string `mapstructure:"dsn"`
	MaxConns       int32  `mapstructure:"max_conns"`
	MinConns       int32  `mapstructure:"min_conns"`
	MigrationsPath string `mapstructure:"migrations_path"`
	SkipMigrations bool   `mapstructure:"skip_migrations"`
}

// RedisConfig locates the Redis instance backing the existence cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// CrawlConfig governs the year loop and worker sharding.
type CrawlConfig struct {
	StartYear          int `mapstructure:"start_year"`
	EndYear            int `mapstructure:"end_year"`
	Workers            int `mapstructure:"workers"`
	PageTimeoutSeconds int `mapstructure:"page_timeout_seconds"`
}

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// maxRetryBound caps http.max_retries. The retry loop is already
// bounded by an attempt counter; the cap is kept as a configuration
// safety invariant.
const maxRetryBound = 10

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VERIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("registry.base_url", "https://public-api.nazk.gov.ua/v2")
	v.SetDefault("registry.list_endpoint", "/documents/list")
	v.SetDefault("registry.document_endpoint", "/documents")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.concurrency", 5)
	v.SetDefault("http.request_delay_ms", 600)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.retry_delay_seconds", 5)
	v.SetDefault("http.user_agents", []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	})
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 2)
	v.SetDefault("db.migrations_path", "file://migrations")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.key", "veris:declaration_ids")
	v.SetDefault("crawl.start_year", 2016)
	v.SetDefault("crawl.end_year", 2025)
	v.SetDefault("crawl.workers", 3)
	v.SetDefault("crawl.page_timeout_seconds", 300)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Registry.BaseURL == "" {
		return fmt.Errorf("registry.base_url is required")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.Concurrency <= 0 {
		return fmt.Errorf("http.concurrency must be > 0")
	}
	if c.HTTP.MaxRetries < 0 || c.HTTP.MaxRetries > maxRetryBound {
		return fmt.Errorf("http.max_retries must be in [0,%d], got %d", maxRetryBound, c.HTTP.MaxRetries)
	}
	if c.HTTP.RetryDelaySeconds < 0 {
		return fmt.Errorf("http.retry_delay_seconds must be >= 0")
	}
	if len(c.HTTP.UserAgents) == 0 {
		return fmt.Errorf("http.user_agents must not be empty")
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Redis.Key == "" {
		return fmt.Errorf("redis.key is required")
	}
	if c.Crawl.Workers <= 0 {
		return fmt.Errorf("crawl.workers must be > 0")
	}
	if c.Crawl.StartYear > c.Crawl.EndYear {
		return fmt.Errorf("crawl.start_year must not exceed crawl.end_year")
	}
	if c.Crawl.PageTimeoutSeconds <= 0 {
		return fmt.Errorf("crawl.page_timeout_seconds must be > 0")
	}
	return nil
}

// RequestTimeout returns the per-request HTTP timeout.
func (c HTTPConfig) RequestTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RequestDelay returns the base inter-request delay.
func (c HTTPConfig) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMs) * time.Millisecond
}

// RetryDelay returns the base retry backoff unit.
func (c HTTPConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// PageTimeout returns the wall-clock budget for one listing page's fan-out.
func (c CrawlConfig) PageTimeout() time.Duration {
	return time.Duration(c.PageTimeoutSeconds) * time.Second
}
