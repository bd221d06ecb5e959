// Package repository stores imported match data in SQLite and serves it to
// the rating engines through match.Repository.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/scoutstat/internal/domain/match"
	"github.com/okian/scoutstat/pkg/logger"
	"github.com/okian/scoutstat/pkg/metrics"
	_ "modernc.org/sqlite" // SQLite driver
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// TeamRow is one team's slot in an imported match.
type TeamRow struct {
	Team     int
	Alliance match.Alliance
	Station  string
	OnField  bool
}

// MatchRow is one played match as imported. StartTime keeps the local
// timestamp exactly as received.
type MatchRow struct {
	Season    int
	EventCode string
	Level     match.Level
	Series    int
	Number    int
	StartTime string
	Teams     []TeamRow
}

// Writer persists imported match data.
type Writer interface {
	SaveMatch(ctx context.Context, m MatchRow) error
	SaveScores(ctx context.Context, id match.ID, scores match.Scores) error
}

// Store is the SQLite implementation of match.Repository and Writer.
type Store struct {
	db          *sql.DB
	path        string
	location    *time.Location
	logger      logger.Logger
	autoMigrate bool

	maxOpenConns int
	busyTimeout  time.Duration
	journalMode  string
}

var (
	_ match.Repository = (*Store)(nil)
	_ Writer           = (*Store)(nil)
)

// Open connects to the database at path, creating parent directories.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:         path,
		location:     time.Local,
		logger:       logger.Nop(),
		maxOpenConns: defaultMaxOpenConns,
		busyTimeout:  defaultBusyTimeout,
		journalMode:  defaultJournalMode,
	}
	for _, opt := range opts {
		opt(s)
	}

	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(%s)&_pragma=foreign_keys(1)",
		path, s.busyTimeout.Milliseconds(), s.journalMode)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(s.maxOpenConns)
		db.SetMaxIdleConns(defaultMaxIdleConns)
		db.SetConnMaxLifetime(defaultConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s.db = db

	if s.autoMigrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const matchTeamsQuery = `
SELECT t.event_code, t.level, t.series, t.number, t.alliance, t.season,
       COALESCE(m.start_time, ''), t.team, t.station, t.on_field
FROM match_teams t
LEFT JOIN matches m
  ON m.season = t.season AND m.event_code = t.event_code AND m.level = t.level
 AND m.series = t.series AND m.number = t.number
WHERE t.season = ? AND (? = '' OR t.event_code = ?)`

// MatchTeams returns participation for the season, optionally limited to
// one event.
func (s *Store) MatchTeams(ctx context.Context, eventCode string, season int) (match.TeamMatches, error) {
	start := time.Now()
	defer observeSince(start, metrics.RecordRepositoryQueryLatency)

	rows, err := s.db.QueryContext(ctx, matchTeamsQuery, season, eventCode, eventCode)
	if err != nil {
		metrics.RecordErrorByComponent("repository", "query")
		return nil, fmt.Errorf("%w: match teams: %w", ErrQuery, err)
	}
	defer rows.Close()

	g := match.NewGrouper()
	for rows.Next() {
		var (
			id      match.ID
			raw     string
			team    int
			station string
			onField bool
		)
		if err := rows.Scan(&id.EventCode, &id.Level, &id.Series, &id.Number, &id.Alliance, &id.Season,
			&raw, &team, &station, &onField); err != nil {
			return nil, fmt.Errorf("%w: scan match team: %w", ErrQuery, err)
		}
		ts, err := match.ParseStartTime(raw, s.location)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrQuery, id, err)
		}
		g.AddTeam(match.Key{ID: id, StartTime: ts}, team, match.Slot{Station: station, OnField: onField})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: match teams: %w", ErrQuery, err)
	}
	return g.TeamMatches(), nil
}

const matchScoresQuery = `
SELECT event_code, level, series, number, alliance, season, statistic, value
FROM match_scores
WHERE season = ? AND (? = '' OR event_code = ?)`

// MatchScores returns alliance score records for the season, optionally
// limited to one event.
func (s *Store) MatchScores(ctx context.Context, eventCode string, season int) (match.ScoreMatches, error) {
	start := time.Now()
	defer observeSince(start, metrics.RecordRepositoryQueryLatency)

	rows, err := s.db.QueryContext(ctx, matchScoresQuery, season, eventCode, eventCode)
	if err != nil {
		metrics.RecordErrorByComponent("repository", "query")
		return nil, fmt.Errorf("%w: match scores: %w", ErrQuery, err)
	}
	defer rows.Close()

	g := match.NewGrouper()
	for rows.Next() {
		var (
			id        match.ID
			statistic string
			value     float64
		)
		if err := rows.Scan(&id.EventCode, &id.Level, &id.Series, &id.Number, &id.Alliance, &id.Season,
			&statistic, &value); err != nil {
			return nil, fmt.Errorf("%w: scan match score: %w", ErrQuery, err)
		}
		g.AddScore(match.Key{ID: id}, statistic, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: match scores: %w", ErrQuery, err)
	}
	return g.ScoreMatches(), nil
}

// SaveMatch upserts a match and replaces its team list.
func (s *Store) SaveMatch(ctx context.Context, m MatchRow) error {
	if m.EventCode == "" || m.Level == "" || m.Number <= 0 {
		return fmt.Errorf("%w: %s %s-%d", ErrInvalidID, m.EventCode, m.Level, m.Number)
	}
	start := time.Now()
	defer observeSince(start, metrics.RecordRepositoryWriteLatency)

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO matches (season, event_code, level, series, number, start_time)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (season, event_code, level, series, number)
DO UPDATE SET start_time = excluded.start_time`,
			m.Season, m.EventCode, m.Level, m.Series, m.Number, m.StartTime); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
DELETE FROM match_teams
WHERE season = ? AND event_code = ? AND level = ? AND series = ? AND number = ?`,
			m.Season, m.EventCode, m.Level, m.Series, m.Number); err != nil {
			return err
		}
		for _, t := range m.Teams {
			if t.Alliance != match.Red && t.Alliance != match.Blue {
				return fmt.Errorf("%w: alliance %q", ErrInvalidID, t.Alliance)
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO match_teams (season, event_code, level, series, number, alliance, team, station, on_field)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				m.Season, m.EventCode, m.Level, m.Series, m.Number, t.Alliance, t.Team, t.Station, t.OnField); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveScores replaces the score record of one alliance.
func (s *Store) SaveScores(ctx context.Context, id match.ID, scores match.Scores) error {
	if id.EventCode == "" || id.Level == "" || id.Number <= 0 ||
		(id.Alliance != match.Red && id.Alliance != match.Blue) {
		return fmt.Errorf("%w: %s", ErrInvalidID, id)
	}
	start := time.Now()
	defer observeSince(start, metrics.RecordRepositoryWriteLatency)

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
DELETE FROM match_scores
WHERE season = ? AND event_code = ? AND level = ? AND series = ? AND number = ? AND alliance = ?`,
			id.Season, id.EventCode, id.Level, id.Series, id.Number, id.Alliance); err != nil {
			return err
		}
		for name, v := range scores {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO match_scores (season, event_code, level, series, number, alliance, statistic, value)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				id.Season, id.EventCode, id.Level, id.Series, id.Number, id.Alliance, name, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Counts returns the number of stored matches and alliance score records.
func (s *Store) Counts(ctx context.Context, season int) (matches, scores int, err error) {
	start := time.Now()
	defer observeSince(start, metrics.RecordRepositoryQueryLatency)

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM matches WHERE season = ?`, season).Scan(&matches); err != nil {
		return 0, 0, fmt.Errorf("%w: count matches: %w", ErrQuery, err)
	}
	if err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM (
  SELECT DISTINCT event_code, level, series, number, alliance
  FROM match_scores WHERE season = ?
)`, season).Scan(&scores); err != nil {
		return 0, 0, fmt.Errorf("%w: count scores: %w", ErrQuery, err)
	}
	return matches, scores, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		metrics.RecordErrorByComponent("repository", "begin")
		return fmt.Errorf("%w: begin: %w", ErrWrite, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		metrics.RecordErrorByComponent("repository", "write")
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := tx.Commit(); err != nil {
		metrics.RecordErrorByComponent("repository", "commit")
		return fmt.Errorf("%w: commit: %w", ErrWrite, err)
	}
	return nil
}

func observeSince(start time.Time, record func(float64)) {
	record(float64(time.Since(start).Microseconds()) / 1000)
}
