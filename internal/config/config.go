// Package config loads the replicator configuration from a YAML file with
// SHERPA_* environment overrides.
//
// Keys mirror the original tap schema: shop_id, security_code, environment,
// base_url, page_size, max_retries, retry_wait_min, retry_wait_max, timeout,
// streams, state.*, log.*, metrics_addr. Wait times and the timeout are
// integer seconds.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/XAbade/tap-sherpaan/pkg/client"
	"github.com/XAbade/tap-sherpaan/pkg/logging"
	"github.com/XAbade/tap-sherpaan/pkg/streams"
)

// State holds the bookmark store configuration.
type State struct {
	// Backend selects the store: "file" or "redis".
	Backend string

	// Path is the state file location for the file backend.
	Path string

	// RedisAddr is the host:port of the Redis backend.
	RedisAddr string

	// RedisPassword authenticates the Redis connection.
	RedisPassword string

	// RedisDB selects the Redis database.
	RedisDB int

	// KeyPrefix namespaces bookmark keys in Redis.
	KeyPrefix string
}

// Config is the replicator configuration.
type Config struct {
	// ShopID identifies the shop (required).
	ShopID string

	// SecurityCode authenticates every service call (required).
	SecurityCode string

	// Environment selects the service host: "production" or "test".
	Environment string

	// BaseURL overrides the environment-derived host when set.
	BaseURL string

	// PageSize is the requested page size for paginated collections.
	PageSize int

	// MaxRetries bounds the attempts per page fetch.
	MaxRetries int

	// RetryWaitMin is the initial backoff between attempts.
	RetryWaitMin time.Duration

	// RetryWaitMax caps the backoff between attempts.
	RetryWaitMax time.Duration

	// Timeout bounds each HTTP exchange.
	Timeout time.Duration

	// Streams restricts a sync run to the named collections. Empty means
	// every paginated collection.
	Streams []string

	// State configures the bookmark store.
	State State

	// LogLevel is the minimum log level.
	LogLevel string

	// LogPretty enables human-readable console logs.
	LogPretty bool

	// MetricsAddr serves /metrics and /health when set, e.g. ":9464".
	MetricsAddr string
}

// Load reads the configuration. An explicit path must exist; with an empty
// path the usual locations are searched and a missing file is fine as long
// as the environment supplies the required values.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.tap-sherpaan")
		v.AddConfigPath("/etc/tap-sherpaan")
	}

	v.SetEnvPrefix("sherpa")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		ShopID:       v.GetString("shop_id"),
		SecurityCode: v.GetString("security_code"),
		Environment:  v.GetString("environment"),
		BaseURL:      v.GetString("base_url"),
		PageSize:     v.GetInt("page_size"),
		MaxRetries:   v.GetInt("max_retries"),
		RetryWaitMin: time.Duration(v.GetInt("retry_wait_min")) * time.Second,
		RetryWaitMax: time.Duration(v.GetInt("retry_wait_max")) * time.Second,
		Timeout:      time.Duration(v.GetInt("timeout")) * time.Second,
		Streams:      v.GetStringSlice("streams"),
		State: State{
			Backend:       v.GetString("state.backend"),
			Path:          v.GetString("state.path"),
			RedisAddr:     v.GetString("state.redis_addr"),
			RedisPassword: v.GetString("state.redis_password"),
			RedisDB:       v.GetInt("state.redis_db"),
			KeyPrefix:     v.GetString("state.key_prefix"),
		},
		LogLevel:    v.GetString("log.level"),
		LogPretty:   v.GetBool("log.pretty"),
		MetricsAddr: v.GetString("metrics_addr"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "production")
	v.SetDefault("page_size", 200)
	v.SetDefault("max_retries", 3)
	v.SetDefault("retry_wait_min", 4)
	v.SetDefault("retry_wait_max", 10)
	v.SetDefault("timeout", 30)
	v.SetDefault("state.backend", "file")
	v.SetDefault("state.path", "state.json")
	v.SetDefault("state.redis_addr", "localhost:6379")
	v.SetDefault("state.key_prefix", "sherpa")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Validate checks the configuration for values no run could work with.
func (c *Config) Validate() error {
	if c.ShopID == "" {
		return fmt.Errorf("shop_id is required")
	}
	if c.SecurityCode == "" {
		return fmt.Errorf("security_code is required")
	}
	if c.Environment != "production" && c.Environment != "test" {
		return fmt.Errorf("unknown environment %q", c.Environment)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max_retries must be positive")
	}
	if c.RetryWaitMin > c.RetryWaitMax {
		return fmt.Errorf("retry_wait_min exceeds retry_wait_max")
	}
	if c.State.Backend != "file" && c.State.Backend != "redis" {
		return fmt.Errorf("unknown state backend %q", c.State.Backend)
	}
	for _, name := range c.Streams {
		if _, ok := streams.Get(name); !ok {
			return fmt.Errorf("unknown stream %q", name)
		}
	}
	return nil
}

// ClientConfig assembles the SOAP client configuration.
func (c *Config) ClientConfig() client.Config {
	env := client.EnvProduction
	if c.Environment == "test" {
		env = client.EnvTest
	}
	return client.Config{
		ShopID:       c.ShopID,
		SecurityCode: c.SecurityCode,
		Environment:  env,
		BaseURL:      c.BaseURL,
		Timeout:      c.Timeout,
	}
}

// RetryPolicy assembles the retry policy for page and detail fetches.
func (c *Config) RetryPolicy() client.RetryPolicy {
	return client.RetryPolicy{
		MaxAttempts: c.MaxRetries,
		WaitMin:     c.RetryWaitMin,
		WaitMax:     c.RetryWaitMax,
	}
}

// LoggingConfig assembles the logger configuration.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.LogLevel)
	cfg.Pretty = c.LogPretty
	return cfg
}
