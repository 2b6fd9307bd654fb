// Package kv provides the key-value store used for topic buckets, the insight
// cache and rate-limit counters. Every operation is a single atomic command;
// no invariant spans two keys.
package kv

import (
	"context"
	"fmt"
	"time"
)

// Driver selects a Store backend.
type Driver string

const (
	Redis Driver = "redis"
	SQL   Driver = "sql"
)

// Store is the key-value interface shared by all backends.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent or expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set overwrites key. A zero ttl means the key never expires.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Incr increments the counter at key and returns the new value. The ttl is
	// applied only when the increment creates the counter.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// Config holds key-value store configuration.
type Config struct {
	Driver Driver `yaml:"driver" env:"EPIGRAM_KV_DRIVER"`

	// Redis backend.
	URL   string `yaml:"url" env:"REDIS_URL"`
	Token string `yaml:"token" env:"REDIS_TOKEN"`

	// SQL backend.
	SQLDriver string `yaml:"sql_driver" env:"EPIGRAM_KV_SQL_DRIVER"`
	DSN       string `yaml:"dsn" env:"EPIGRAM_KV_DSN"`
}

// Open creates the Store selected by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case Redis, "":
		return NewRedisStore(ctx, cfg.URL, cfg.Token)
	case SQL:
		return OpenSQLStore(ctx, cfg.SQLDriver, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported kv driver: %s", cfg.Driver)
	}
}
