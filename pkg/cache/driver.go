// Package cache defines the fast list cache that fronts the durable
// conversation store.
package cache

import (
	"context"
	"time"
)

// DefaultTTL is how long a conversation stays cached after its last write.
const DefaultTTL = 24 * time.Hour

// Driver is a keyed list store with expiry. Lists are kept newest first:
// index 0 is the most recently pushed value.
type Driver interface {
	// Range returns the whole list, newest first. A missing key is an empty
	// list, not an error.
	Range(ctx context.Context, key string) ([]string, error)

	// Push prepends values in order, so the last value ends up at index 0,
	// and resets the key's expiry to ttl. Existing entries are kept.
	Push(ctx context.Context, key string, values []string, ttl time.Duration) error

	// Overwrite atomically replaces the list with values (same ordering as
	// Push) and sets the expiry to ttl.
	Overwrite(ctx context.Context, key string, values []string, ttl time.Duration) error

	// Delete removes the key.
	Delete(ctx context.Context, key string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}

// HistoryKey is the list key holding a user's conversation.
func HistoryKey(userID string) string {
	return "history:" + userID
}
