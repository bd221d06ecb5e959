package repository

import (
	"time"

	"github.com/okian/scoutstat/pkg/logger"
)

// Default store configuration constants.
const (
	defaultMaxOpenConns    = 8
	defaultMaxIdleConns    = 4
	defaultConnMaxLifetime = 5 * time.Minute
	defaultBusyTimeout     = 5 * time.Second
	defaultJournalMode     = "WAL"
)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithMaxOpenConns caps the connection pool. In-memory databases always use one.
func WithMaxOpenConns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithBusyTimeout sets how long SQLite waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// WithJournalMode sets the SQLite journal mode, e.g. WAL or DELETE.
func WithJournalMode(mode string) Option {
	return func(s *Store) {
		if mode != "" {
			s.journalMode = mode
		}
	}
}

// WithLocation sets the zone match start times are recorded in.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithAutoMigrate applies pending migrations on Open.
func WithAutoMigrate(enabled bool) Option {
	return func(s *Store) {
		s.autoMigrate = enabled
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}
