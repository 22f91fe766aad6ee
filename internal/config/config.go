// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper. It is
// resolved once at startup and passed explicitly; nothing re-reads the
// environment mid-job.
type Config struct {
	Pexels  PexelsConfig  `mapstructure:"pexels"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// PexelsConfig holds provider API access settings.
type PexelsConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	SecretKey      string `mapstructure:"secret_key"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// CrawlerConfig governs the crawl engine.
type CrawlerConfig struct {
	Concurrency            int      `mapstructure:"concurrency"`
	RateRequests           int      `mapstructure:"rate_requests"`
	RateWindowSeconds      int      `mapstructure:"rate_window_seconds"`
	PerPage                int      `mapstructure:"per_page"`
	MaxPages               int      `mapstructure:"max_pages"`
	MaxRetries             int      `mapstructure:"max_retries"`
	BackoffInitialMs       int      `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs           int      `mapstructure:"backoff_max_ms"`
	DownloadTimeoutSeconds int      `mapstructure:"download_timeout_seconds"`
	Source                 string   `mapstructure:"source"`
	DefaultQueries         []string `mapstructure:"default_queries"`
}

// StorageConfig selects and parameterizes the blob store backend.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig selects and parameterizes the resource store backend.
type DBConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
}

// PubSubConfig holds metadata for crawl completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
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
	v.SetDefault("pexels.base_url", "https://www.pexels.com/en-us/api/v3")
	// Registered empty so AutomaticEnv can resolve CRAWLER_PEXELS_SECRET_KEY.
	v.SetDefault("pexels.secret_key", "")
	v.SetDefault("pexels.user_agent", "car-resource-crawler/1.0")
	v.SetDefault("pexels.timeout_seconds", 30)
	v.SetDefault("crawler.concurrency", 2)
	v.SetDefault("crawler.rate_requests", 1)
	v.SetDefault("crawler.rate_window_seconds", 30)
	v.SetDefault("crawler.per_page", 24)
	v.SetDefault("crawler.max_pages", 5)
	v.SetDefault("crawler.max_retries", 3)
	v.SetDefault("crawler.backoff_initial_ms", 250)
	v.SetDefault("crawler.backoff_max_ms", 5000)
	v.SetDefault("crawler.download_timeout_seconds", 30)
	v.SetDefault("crawler.source", "pexels")
	v.SetDefault("crawler.default_queries", []string{"car", "automobile", "vehicle", "sports car", "luxury car"})
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.base_dir", "blob")
	v.SetDefault("storage.prefix", "pexels")
	v.SetDefault("db.provider", "memory")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits. A missing
// provider key fails here, before any job can start.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Pexels.SecretKey) == "" {
		return fmt.Errorf("pexels.secret_key must be set")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.RateRequests <= 0 || c.Crawler.RateWindowSeconds <= 0 {
		return fmt.Errorf("crawler.rate_requests and crawler.rate_window_seconds must be > 0")
	}
	if c.Crawler.PerPage <= 0 {
		return fmt.Errorf("crawler.per_page must be > 0")
	}
	if c.Storage.Provider == "local" && strings.TrimSpace(c.Storage.BaseDir) == "" {
		return fmt.Errorf("storage.base_dir must be set for the local provider")
	}
	if c.Storage.Provider == "gcs" && strings.TrimSpace(c.Storage.GCSBucket) == "" {
		return fmt.Errorf("storage.gcs_bucket must be set for the gcs provider")
	}
	if c.DB.Provider == "postgres" && strings.TrimSpace(c.DB.DSN) == "" {
		return fmt.Errorf("db.dsn must be set for the postgres provider")
	}
	return nil
}

// RateWindow returns the configured rate limiting window.
func (c Config) RateWindow() time.Duration {
	return time.Duration(c.Crawler.RateWindowSeconds) * time.Second
}

// DownloadTimeout returns the per-item download timeout.
func (c Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Crawler.DownloadTimeoutSeconds) * time.Second
}

// BackoffInitial returns the initial retry backoff delay.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.Crawler.BackoffInitialMs) * time.Millisecond
}

// BackoffMax returns the retry backoff ceiling.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.Crawler.BackoffMaxMs) * time.Millisecond
}

// PexelsTimeout returns the provider API request timeout.
func (c Config) PexelsTimeout() time.Duration {
	return time.Duration(c.Pexels.TimeoutSeconds) * time.Second
}
