// Package ratelimit implements a fixed-window request limiter backed by the
// shared key-value store.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// UnknownIdentity is used when a request carries no forwarded address.
const UnknownIdentity = "unknown"

// Counter is the atomic increment the limiter relies on. The ttl applies
// only when the key is created.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Config sets the budget per window.
type Config struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// DefaultConfig allows 5 requests per minute.
func DefaultConfig() Config {
	return Config{Limit: 5, Window: time.Minute}
}

// Decision is the outcome of a Check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter counts requests in non-overlapping windows aligned to the epoch.
// A caller can therefore burst up to twice the limit across a boundary.
type Limiter struct {
	counter   Counter
	namespace string
	limit     int
	window    time.Duration
	now       func() time.Time
}

// New creates a limiter whose keys live under namespace.
func New(counter Counter, namespace string, cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.Limit <= 0 {
		cfg.Limit = def.Limit
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	return &Limiter{
		counter:   counter,
		namespace: namespace,
		limit:     cfg.Limit,
		window:    cfg.Window,
		now:       time.Now,
	}
}

// Check records one request for identity and reports whether it fits in
// the current window.
func (l *Limiter) Check(ctx context.Context, identity string) (Decision, error) {
	now := l.now()
	bucket := now.UnixNano() / l.window.Nanoseconds()
	reset := time.Unix(0, (bucket+1)*l.window.Nanoseconds())

	key := "ratelimit:" + l.namespace + ":" + identity + ":" + strconv.FormatInt(bucket, 10)
	n, err := l.counter.Incr(ctx, key, l.window)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit: %w", err)
	}

	remaining := l.limit - int(n)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   n <= int64(l.limit),
		Limit:     l.limit,
		Remaining: remaining,
		Reset:     reset,
	}, nil
}

// Identity returns the first address in X-Forwarded-For, or UnknownIdentity.
func Identity(r *http.Request) string {
	fwd := r.Header.Get("X-Forwarded-For")
	if fwd == "" {
		return UnknownIdentity
	}
	first, _, _ := strings.Cut(fwd, ",")
	if first = strings.TrimSpace(first); first != "" {
		return first
	}
	return UnknownIdentity
}
