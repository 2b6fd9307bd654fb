package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/RobinCoderZhao/epigram/pkg/storage"
)

// Schema is the table backing SQLStore. It is valid for SQLite and PostgreSQL.
const Schema = `
CREATE TABLE IF NOT EXISTS kv_entries (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    expires_at BIGINT
);

CREATE INDEX IF NOT EXISTS idx_kv_entries_expires ON kv_entries(expires_at);
`

// SQLStore implements Store on a relational database. Expiry is stored as a
// unix-millisecond deadline and enforced on read.
type SQLStore struct {
	db  *storage.DB
	now func() time.Time
}

// OpenSQLStore opens the database and applies Schema. driver is "sqlite"
// (default) or "postgres".
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if driver == "" {
		driver = string(storage.SQLite)
	}
	if dsn == "" {
		return nil, fmt.Errorf("kv dsn is required")
	}
	db, err := storage.Open(storage.Config{Driver: storage.Driver(driver), DSN: dsn})
	if err != nil {
		return nil, err
	}
	s, err := NewSQLStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore applies Schema to an open database.
func NewSQLStore(ctx context.Context, db *storage.DB) (*SQLStore, error) {
	if err := db.Migrate(ctx, Schema); err != nil {
		return nil, err
	}
	return &SQLStore{db: db, now: time.Now}, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value     string
		expiresAt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		s.db.Rebind(`SELECT value, expires_at FROM kv_entries WHERE key = ?`), key).
		Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get %s: %w", key, err)
	}
	if s.expired(expiresAt) {
		return "", false, nil
	}
	return value, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(upsertQuery), key, value, s.deadline(ttl))
	if err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	now := s.now().UnixMilli()
	var value string
	err := s.db.QueryRowContext(ctx, s.db.Rebind(incrQuery), key, s.deadline(ttl), now, now).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("kv incr %s: %w", key, err)
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("kv incr %s: value is not an integer: %w", key, err)
	}
	return n, nil
}

// Purge deletes expired entries and returns how many were removed.
func (s *SQLStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= ?`),
		s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("kv purge: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

const upsertQuery = `
INSERT INTO kv_entries (key, value, expires_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`

// incrQuery increments in a single statement so concurrent callers never
// read the same count. An expired row restarts at 1 with the new deadline.
const incrQuery = `
INSERT INTO kv_entries (key, value, expires_at) VALUES (?, '1', ?)
ON CONFLICT(key) DO UPDATE SET
    value = CASE
        WHEN kv_entries.expires_at IS NOT NULL AND kv_entries.expires_at <= ? THEN '1'
        ELSE CAST(CAST(kv_entries.value AS BIGINT) + 1 AS TEXT)
    END,
    expires_at = CASE
        WHEN kv_entries.expires_at IS NOT NULL AND kv_entries.expires_at <= ? THEN excluded.expires_at
        ELSE kv_entries.expires_at
    END
RETURNING value`

func (s *SQLStore) deadline(ttl time.Duration) sql.NullInt64 {
	if ttl <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: s.now().Add(ttl).UnixMilli(), Valid: true}
}

func (s *SQLStore) expired(expiresAt sql.NullInt64) bool {
	return expiresAt.Valid && expiresAt.Int64 <= s.now().UnixMilli()
}
