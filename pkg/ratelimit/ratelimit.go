// Package ratelimit provides a fixed-window rate limiter used to cap
// per-recipient traffic on expensive channels such as SMS.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidConfig is returned when a limiter is constructed with a
	// non-positive limit or window.
	ErrInvalidConfig = errors.New("invalid rate limit config")
)

// Config defines a fixed-window limit: at most Limit events per Window.
type Config struct {
	Limit  int           `env:"RATE_LIMIT_MAX" envDefault:"10"`
	Window time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1h"`
}

func (c Config) validate() error {
	if c.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidConfig, c.Limit)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %v", ErrInvalidConfig, c.Window)
	}
	return nil
}

// Result reports the outcome of a rate limit check.
type Result struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Allowed reports whether the event fit within the window.
func (r *Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter returns how long to wait until the window resets. Zero when
// the event was allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	return time.Until(r.ResetAt)
}

// Store counts events per key within fixed windows.
type Store interface {
	// Increment records one event against the key's current window and
	// returns the window's running count and expiry.
	Increment(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)

	// Reset clears the key's current window.
	Reset(ctx context.Context, key string) error
}

// Limiter is a fixed-window rate limiter over a pluggable store.
type Limiter struct {
	store  Store
	config Config
}

// NewLimiter creates a fixed-window limiter.
func NewLimiter(store Store, config Config) (*Limiter, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &Limiter{store: store, config: config}, nil
}

// Allow records one event for the key and reports whether it fit inside
// the current window.
func (l *Limiter) Allow(ctx context.Context, key string) (*Result, error) {
	count, resetAt, err := l.store.Increment(ctx, key, l.config.Window)
	if err != nil {
		return nil, err
	}
	return &Result{
		Limit:     l.config.Limit,
		Remaining: l.config.Limit - count,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the key's window.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Reset(ctx, key)
}
