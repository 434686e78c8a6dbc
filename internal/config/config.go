// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Functions accept context.Context as the first parameter.
// - Failures wrap ErrInvalidConfig or ErrLoadConfig.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the store: memory, sqlite or postgres.
	StoreDriver string `koanf:"store_driver"`
	// StoreDSN is the database file (sqlite) or connection string (postgres).
	StoreDSN string `koanf:"store_dsn"`

	// SeedEnabled loads demo fixtures into an empty store at startup.
	SeedEnabled bool `koanf:"seed_enabled"`
	// SeedFile overrides the embedded fixtures when set.
	SeedFile string `koanf:"seed_file"`

	// ResolveSchedule is the cron expression for resolving the pending post.
	// Empty disables scheduled resolution.
	ResolveSchedule string `koanf:"resolve_schedule"`

	// PriceSwing is the simulated index move per resolution.
	PriceSwing float64 `koanf:"price_swing"`
	// PriceRequestsPerSec throttles price sampling.
	PriceRequestsPerSec int `koanf:"price_requests_per_sec"`
	// PriceRetryMaxElapsedMS bounds retries of one price sample.
	PriceRetryMaxElapsedMS int `koanf:"price_retry_max_elapsed_ms"`

	// BasePoints is awarded for a correct guess and multiplied by the streak.
	BasePoints int64 `koanf:"base_points"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// GuessRatePerSec and GuessRateBurst limit POST /guesses.
	GuessRatePerSec float64 `koanf:"guess_rate_per_sec"`
	GuessRateBurst  int     `koanf:"guess_rate_burst"`

	// MetricsRefreshIntervalMS is how often background gauges are refreshed.
	MetricsRefreshIntervalMS int `koanf:"metrics_refresh_interval_ms"`

	// ShutdownTimeoutMS bounds graceful shutdown.
	ShutdownTimeoutMS int `koanf:"shutdown_timeout_ms"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                 "info",
		Addr:                     ":9080",
		StoreDriver:              DriverMemory,
		SeedEnabled:              true,
		ResolveSchedule:          "*/5 * * * *",
		PriceSwing:               15,
		PriceRequestsPerSec:      5,
		PriceRetryMaxElapsedMS:   30_000,
		BasePoints:               10,
		MaxLeaderboardLimit:      100,
		GuessRatePerSec:          5,
		GuessRateBurst:           10,
		MetricsRefreshIntervalMS: 10_000,
		ShutdownTimeoutMS:        10_000,
	}
}

// PriceRetryMaxElapsed returns the retry budget as a duration.
func (c *Config) PriceRetryMaxElapsed() time.Duration {
	return time.Duration(c.PriceRetryMaxElapsedMS) * time.Millisecond
}

// MetricsRefreshInterval returns the gauge refresh interval as a duration.
func (c *Config) MetricsRefreshInterval() time.Duration {
	return time.Duration(c.MetricsRefreshIntervalMS) * time.Millisecond
}

// ShutdownTimeout returns the graceful shutdown budget as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}

// Validate checks field ranges and fills the sqlite DSN default.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite:
		if c.StoreDSN == "" {
			c.StoreDSN = "bullbear.db"
		}
	case DriverPostgres:
		if c.StoreDSN == "" {
			return fmt.Errorf("%w: store_dsn is required for postgres", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	if c.PriceSwing <= 0 {
		return fmt.Errorf("%w: price_swing must be positive", ErrInvalidConfig)
	}
	if c.PriceRequestsPerSec < 1 {
		return fmt.Errorf("%w: price_requests_per_sec must be at least 1", ErrInvalidConfig)
	}
	if c.PriceRetryMaxElapsedMS < 1 {
		return fmt.Errorf("%w: price_retry_max_elapsed_ms must be positive", ErrInvalidConfig)
	}
	if c.BasePoints < 1 {
		return fmt.Errorf("%w: base_points must be at least 1", ErrInvalidConfig)
	}
	if c.MaxLeaderboardLimit < 1 {
		return fmt.Errorf("%w: max_leaderboard_limit must be at least 1", ErrInvalidConfig)
	}
	if c.GuessRatePerSec <= 0 || c.GuessRateBurst < 1 {
		return fmt.Errorf("%w: guess_rate_per_sec and guess_rate_burst must be positive", ErrInvalidConfig)
	}
	if c.MetricsRefreshIntervalMS < 1 {
		return fmt.Errorf("%w: metrics_refresh_interval_ms must be at least 1", ErrInvalidConfig)
	}
	if c.ShutdownTimeoutMS < 1 {
		return fmt.Errorf("%w: shutdown_timeout_ms must be at least 1", ErrInvalidConfig)
	}
	return nil
}
