// Package cache provides the durable local cache backing Keyline's
// offline-tolerant persistence: after every save attempt the full project
// state is written here, and project loads fall back to it when the remote
// store is unreachable.
//
// Three backends implement the [Cache] interface:
//   - FileCache: JSON files under a directory, for CLI and desktop hosts
//   - RedisCache: shared cache for multi-instance deployments
//   - NullCache: no-op, for tests and when caching is disabled
//
// Entries carry an optional TTL. Corrupt entries are treated as misses and
// removed rather than surfaced as errors; the project-blob layer in
// [ProjectStore] additionally validates blob structure before trusting it.
package cache

import (
	"context"
	"time"
)

// Cache is the interface for durable cache backends.
type Cache interface {
	// Get retrieves a value from the cache. The second return is false on
	// a miss (including expired or corrupt entries).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A ttl of 0 means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
