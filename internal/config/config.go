// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers files and environment over those defaults.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/okian/scoutstat/internal/domain/match"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database file. ":memory:" keeps data in process.
	DBPath string `koanf:"db_path"`

	// AutoMigrate applies schema migrations when the database is opened.
	AutoMigrate bool `koanf:"auto_migrate"`

	// Timezone names the location match start times were recorded in.
	Timezone string `koanf:"timezone"`

	// ImportDir, when set, is imported before ratings are computed.
	ImportDir string `koanf:"import_dir"`

	// Season is the season replayed for EPA.
	Season int `koanf:"season"`

	// WorkerCount sets the number of OPR workers.
	WorkerCount int `koanf:"worker_count"`

	// OPRQueueSize bounds the pending OPR job queue.
	OPRQueueSize int `koanf:"opr_queue_size"`

	// OPRTimeoutMS bounds how long a request waits for OPR.
	OPRTimeoutMS int `koanf:"opr_timeout_ms"`

	// RateLimitRPS and RateLimitBurst throttle OPR requests. Zero RPS disables it.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`
}

// New creates a Config holding defaults. Context is accepted first to
// satisfy the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		DBPath:              "data/scoutstat.db",
		AutoMigrate:         true,
		Timezone:            "Local",
		Season:              match.Season2024,
		WorkerCount:         runtime.NumCPU(),
		OPRQueueSize:        1024,
		OPRTimeoutMS:        10_000,
		RateLimitRPS:        50,
		RateLimitBurst:      100,
		MaxLeaderboardLimit: 1000,
	}
}

// OPRTimeout returns OPRTimeoutMS as a duration.
func (c *Config) OPRTimeout() time.Duration {
	return time.Duration(c.OPRTimeoutMS) * time.Millisecond
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %w", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DBPath == "":
		return fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.OPRQueueSize < 1:
		return fmt.Errorf("%w: opr_queue_size must be positive", ErrInvalidConfig)
	case c.OPRTimeoutMS < 1:
		return fmt.Errorf("%w: opr_timeout_ms must be positive", ErrInvalidConfig)
	case c.RateLimitRPS < 0:
		return fmt.Errorf("%w: rate_limit_rps must not be negative", ErrInvalidConfig)
	case c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	}
	if err := match.SupportedSeason(c.Season); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
