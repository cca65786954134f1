// Package sqlitestore provides a SQLite-backed storage.Backend.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jrsteele09/go-customer-auth/storage"
	"github.com/jrsteele09/go-customer-auth/storage/sqlitestore/migrations"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store persists key-value pairs in a single kv table.
type Store struct {
	storage.Notifier
	sqlDB *sql.DB
}

var (
	_ storage.Backend = (*Store)(nil)
	_ storage.Watcher = (*Store)(nil)
)

// Open opens the database at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := MemoryPath
	if path != MemoryPath {
		dsn = "file:" + filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == MemoryPath {
		// every new connection to :memory: is a fresh empty database
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if _, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	s.Notify()
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.Notify()
	}
	return nil
}
