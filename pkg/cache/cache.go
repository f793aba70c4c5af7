// Package cache provides the short-TTL, recipient-scoped cache used for
// unread counts, preference snapshots and recent-notification lists.
//
// Keys are namespaced by recipient ID and purpose
// (notify:<recipient>:<purpose>). Staleness up to the TTL is acceptable;
// every mutation path is expected to call InvalidateRecipient rather than
// rely on expiry alone.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Default TTLs per the cache contract.
const (
	DefaultListTTL       = 5 * time.Minute
	DefaultPreferenceTTL = time.Hour
)

// Config holds cache TTL settings.
type Config struct {
	ListTTL       time.Duration `env:"CACHE_LIST_TTL" envDefault:"5m"`
	PreferenceTTL time.Duration `env:"CACHE_PREFERENCE_TTL" envDefault:"1h"`
}

// Cache is the recipient-scoped cache contract. Values are opaque bytes;
// callers own serialization. Implementations must be safe for concurrent
// use.
type Cache interface {
	// GetUnreadCount returns the cached unread count, or ErrMiss.
	GetUnreadCount(ctx context.Context, recipientID string) (int, error)
	SetUnreadCount(ctx context.Context, recipientID string, count int) error
	// IncrUnreadCount bumps the cached count optimistically without a
	// recount. A miss is not an error: the next read repopulates.
	IncrUnreadCount(ctx context.Context, recipientID string, delta int) error

	// GetPreferences returns the cached preference snapshot, or ErrMiss.
	GetPreferences(ctx context.Context, recipientID string) ([]byte, error)
	SetPreferences(ctx context.Context, recipientID string, data []byte) error

	// GetList returns a cached notification list keyed by filter
	// fingerprint, or ErrMiss.
	GetList(ctx context.Context, recipientID, filterKey string) ([]byte, error)
	SetList(ctx context.Context, recipientID, filterKey string, data []byte) error

	// InvalidateRecipient drops every cached key for the recipient.
	InvalidateRecipient(ctx context.Context, recipientID string) error
}

const keyPrefix = "notify:"

func unreadKey(recipientID string) string {
	return keyPrefix + recipientID + ":unread_count"
}

func preferencesKey(recipientID string) string {
	return keyPrefix + recipientID + ":preferences"
}

func listKey(recipientID, filterKey string) string {
	return keyPrefix + recipientID + ":list:" + filterKey
}

func recipientPattern(recipientID string) string {
	return keyPrefix + recipientID + ":*"
}
