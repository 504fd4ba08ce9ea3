// Package config loads photo feed configuration from a YAML file, a .env file
// and FEED_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/photo-feed-client/pkg/fetch"
	"github.com/Sternrassler/photo-feed-client/pkg/grid"
	"github.com/Sternrassler/photo-feed-client/pkg/imagecache"
	"github.com/Sternrassler/photo-feed-client/pkg/pagination"
	"github.com/Sternrassler/photo-feed-client/pkg/ratelimit"
	"github.com/Sternrassler/photo-feed-client/pkg/transport"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override (FEED_API_ACCESS_KEY).
const EnvPrefix = "FEED"

// Config holds all application configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Grid    GridConfig    `mapstructure:"grid"`
	Quota   QuotaConfig   `mapstructure:"quota"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// APIConfig holds photo API configuration.
type APIConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`
	AccessKey    string        `mapstructure:"access_key"`
	OrderBy      string        `mapstructure:"order_by"`
	PerPage      int           `mapstructure:"per_page"`
	TotalPages   int           `mapstructure:"total_pages"`
	UserAgent    string        `mapstructure:"user_agent"`
	PageTimeout  time.Duration `mapstructure:"page_timeout"`
	ImageTimeout time.Duration `mapstructure:"image_timeout"`
}

// CacheConfig holds image cache configuration.
type CacheConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// GridConfig holds grid controller configuration.
type GridConfig struct {
	SettleWindow time.Duration `mapstructure:"settle_window"`
	Rows         int           `mapstructure:"rows"`
}

// QuotaConfig holds API quota tracking configuration.
type QuotaConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Window        time.Duration `mapstructure:"window"`
	ThrottleDelay time.Duration `mapstructure:"throttle_delay"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	File   string `mapstructure:"file"`
}

// MetricsConfig holds the metrics listener configuration. An empty Addr
// disables the listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads configuration from configPath, or from config.yaml in ./configs
// or the working directory when configPath is empty. A missing default file
// is not an error.
func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The upstream variable name is accepted for the access key.
	_ = v.BindEnv("api.access_key", EnvPrefix+"_API_ACCESS_KEY", "UNSPLASH_ACCESS_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.endpoint", pagination.DefaultEndpoint)
	v.SetDefault("api.access_key", "")
	v.SetDefault("api.order_by", "latest")
	v.SetDefault("api.per_page", 10)
	v.SetDefault("api.total_pages", 10000)
	v.SetDefault("api.user_agent", "PhotoFeed/1.0")
	v.SetDefault("api.page_timeout", 15*time.Second)
	v.SetDefault("api.image_timeout", 30*time.Second)

	v.SetDefault("cache.capacity", imagecache.DefaultCapacity)

	v.SetDefault("grid.settle_window", 250*time.Millisecond)
	v.SetDefault("grid.rows", 12)

	v.SetDefault("quota.enabled", true)
	v.SetDefault("quota.redis_addr", "")
	v.SetDefault("quota.redis_password", "")
	v.SetDefault("quota.redis_db", 0)
	v.SetDefault("quota.window", time.Hour)
	v.SetDefault("quota.throttle_delay", time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)
	v.SetDefault("logging.file", "")

	v.SetDefault("metrics.addr", "")
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.API.AccessKey == "" {
		return fmt.Errorf("api.access_key is required (set %s_API_ACCESS_KEY)", EnvPrefix)
	}
	if err := c.PaginationConfig().Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if c.API.UserAgent == "" {
		return fmt.Errorf("api.user_agent is required")
	}
	if c.API.ImageTimeout <= 0 {
		return fmt.Errorf("api.image_timeout must be > 0 (got %s)", c.API.ImageTimeout)
	}
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be > 0 (got %d)", c.Cache.Capacity)
	}
	if c.Grid.SettleWindow < 0 {
		return fmt.Errorf("grid.settle_window must be >= 0 (got %s)", c.Grid.SettleWindow)
	}
	if c.Grid.Rows < 1 {
		return fmt.Errorf("grid.rows must be >= 1 (got %d)", c.Grid.Rows)
	}
	if c.Quota.Enabled && c.Quota.Window <= 0 {
		return fmt.Errorf("quota.window must be > 0 (got %s)", c.Quota.Window)
	}
	return nil
}

// PaginationConfig returns the page source configuration.
func (c *Config) PaginationConfig() pagination.Config {
	return pagination.Config{
		Endpoint:   c.API.Endpoint,
		AccessKey:  c.API.AccessKey,
		OrderBy:    c.API.OrderBy,
		PerPage:    c.API.PerPage,
		TotalPages: c.API.TotalPages,
		Timeout:    c.API.PageTimeout,
	}
}

// TransportConfig returns the HTTP client configuration.
func (c *Config) TransportConfig() transport.Config {
	cfg := transport.DefaultConfig(c.API.UserAgent)
	if c.API.ImageTimeout > cfg.Timeout {
		cfg.Timeout = c.API.ImageTimeout
	}
	return cfg
}

// ImageCacheConfig returns the image cache configuration.
func (c *Config) ImageCacheConfig() imagecache.Config {
	return imagecache.Config{Capacity: c.Cache.Capacity}
}

// FetchConfig returns the image coordinator configuration.
func (c *Config) FetchConfig() fetch.Config {
	return fetch.Config{Timeout: c.API.ImageTimeout}
}

// ControllerConfig returns the grid controller configuration.
func (c *Config) ControllerConfig() grid.Config {
	return grid.Config{SettleWindow: c.Grid.SettleWindow}
}

// TrackerConfig returns the quota tracker configuration.
func (c *Config) TrackerConfig() ratelimit.Config {
	return ratelimit.Config{
		Window:        c.Quota.Window,
		ThrottleDelay: c.Quota.ThrottleDelay,
	}
}
