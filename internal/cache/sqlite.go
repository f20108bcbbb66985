// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is a Backend on a local SQLite file, for single-host use without
// a Redis server. Expired rows are deleted when read.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens or creates the cache database at path.
func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	s := &SQLite{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return s, nil
}

// WithClock replaces the clock used for expiry.
func (s *SQLite) WithClock(now func() time.Time) *SQLite {
	s.now = now
	return s
}

func (s *SQLite) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS cache_entries (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_entries_expires ON cache_entries(expires_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// expired reports whether a row with the given expiry is dead. Zero means
// no expiry.
func (s *SQLite) expired(expiresAt int64) bool {
	return expiresAt != 0 && s.now().UnixNano() >= expiresAt
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		value     []byte
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}
	if s.expired(expiresAt) {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
			return nil, fmt.Errorf("deleting expired entry: %w", err)
		}
		return nil, ErrMiss
	}
	return value, nil
}

// Set upserts value. A non-positive ttl stores without expiry.
func (s *SQLite) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.now().Add(ttl).UnixNano()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

func (s *SQLite) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLite) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE key IN (`+placeholders+`)`, args...,
	); err != nil {
		return fmt.Errorf("deleting cache entries: %w", err)
	}
	return nil
}

// Clear deletes every row whose key starts with prefix and reports how many
// live rows were removed.
func (s *SQLite) Clear(ctx context.Context, prefix string) (int, error) {
	pattern := escapeLike(prefix) + "%"
	now := s.now().UnixNano()

	var live int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cache_entries
		 WHERE key LIKE ? ESCAPE '\' AND (expires_at = 0 OR expires_at > ?)`,
		pattern, now,
	).Scan(&live); err != nil {
		return 0, fmt.Errorf("counting cache entries: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE key LIKE ? ESCAPE '\'`, pattern,
	); err != nil {
		return 0, fmt.Errorf("clearing cache entries: %w", err)
	}
	return live, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
