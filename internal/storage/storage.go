// Package storage is the durable, transactional persistence layer: channels
// and entries in an embedded sqlite file, deduplicating inserts, soft-delete
// flags and aggregate queries.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// StorageError reports a failed store operation: cannot open the database,
// unknown schema, or I/O during a transaction. The operation is aborted with
// no partial state committed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// Store wraps the sqlite database. Every operation acquires the single
// connection for the duration of its call and runs inside one transaction;
// there is no cross-operation transaction.
type Store struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewStore opens (creating if needed) the database at dbPath and migrates it
// to the current schema version.
func NewStore(dbPath string, log *logrus.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, &StorageError{Op: "create data dir", Err: err}
	}
	if err := runMigrations(dbPath); err != nil {
		return nil, err
	}

	dsn := dbPath + "?_time_format=sqlite&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &StorageError{Op: "open database", Err: err}
	}

	// sqlite supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	return &Store{db: db, log: log}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn inside one transaction, committing on success.
func (s *Store) withTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Op: op, Err: err}
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return &StorageError{Op: op, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &StorageError{Op: op, Err: err}
	}
	return nil
}

// Vacuum compacts the backing file. Called after bulk deletes; it cannot run
// inside a transaction.
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return &StorageError{Op: "vacuum", Err: err}
	}
	return nil
}
