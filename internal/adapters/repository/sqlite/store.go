// Package sqlite provides a SQLite-backed collection store.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/commission/internal/adapters/repository"
	"github.com/okian/commission/pkg/metrics"

	_ "modernc.org/sqlite"
)

const backend = "sqlite"

//go:embed schema.sql
var schema string

// Store persists encoded collections in a single SQLite table.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := "file:" + cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection keeps writers serialized.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Load implements repository.Store.
func (s *Store) Load(ctx context.Context, key string, dst any) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreLatency(backend, "load", float64(time.Since(start).Milliseconds()))
	}()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, repository.ErrClosed
	}

	var data []byte
	err := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM collections WHERE key = ?`, key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		metrics.RecordErrorByComponent("repository", "sqlite_load")
		return false, fmt.Errorf("%w: load %s: %w", repository.ErrPersist, key, err)
	}
	if err := repository.Decode(key, data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Save implements repository.Store. All collections are written in one
// transaction.
func (s *Store) Save(ctx context.Context, batch repository.Batch) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreLatency(backend, "save", float64(time.Since(start).Milliseconds()))
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return repository.ErrClosed
	}

	encoded, err := repository.Encode(batch)
	if err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", repository.ErrPersist, err)
	}
	updatedAt := s.now().UTC().UnixMilli()
	for _, key := range batch.Keys() {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO collections (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, encoded[key], updatedAt,
		)
		if err != nil {
			_ = tx.Rollback()
			metrics.RecordErrorByComponent("repository", "sqlite_save")
			return fmt.Errorf("%w: save %s: %w", repository.ErrPersist, key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		metrics.RecordErrorByComponent("repository", "sqlite_commit")
		return fmt.Errorf("%w: commit: %w", repository.ErrPersist, err)
	}
	return nil
}
