package storage

import (
	"embed"
	"errors"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// runMigrations brings the schema to the current version. A database at an
// unknown or newer version fails here; it is never destructively rebuilt.
func runMigrations(dbPath string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return &StorageError{Op: "load migrations", Err: err}
	}

	// the database URL needs an absolute path to stay well-formed
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return &StorageError{Op: "resolve database path", Err: err}
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite://"+abs)
	if err != nil {
		return &StorageError{Op: "open migrations", Err: err}
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return &StorageError{Op: "migrate", Err: err}
	}
	return nil
}
