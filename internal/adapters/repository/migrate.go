package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/okian/scoutstat/pkg/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies all pending schema migrations to the open database.
func (s *Store) Migrate(ctx context.Context) error {
	dir, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("%w: migrations dir: %w", ErrMigrate, err)
	}
	src, err := iofs.New(dir, ".")
	if err != nil {
		return fmt.Errorf("%w: source: %w", ErrMigrate, err)
	}
	defer func() { _ = src.Close() }()

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("%w: driver: %w", ErrMigrate, err)
	}

	// The migrate instance is not closed: closing it would close s.db.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("%w: instance: %w", ErrMigrate, err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w: up: %w", ErrMigrate, err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("%w: version: %w", ErrMigrate, err)
	}
	s.logger.Info(ctx, "schema migrated",
		logger.Int("version", int(version)),
		logger.Bool("dirty", dirty))
	return nil
}
