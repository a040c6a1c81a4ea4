// Package cache persists identifier resolutions between depfix runs.
//
// Resolving a Maven or proto identifier costs a bazel query, and the answers
// rarely change between runs on the same checkout. The resolver keeps its own
// in-memory table for the duration of a run; a Cache is the optional layer
// behind it that survives the process.
//
// Three backends are provided:
//   - [NullCache]: stores nothing ("none", the default)
//   - [FileCache]: one JSON file per entry under a directory
//   - [RedisCache]: a shared Redis instance, for CI machines
//
// Keys come from a [Keyer]; use [NewScopedKeyer] to keep separate checkouts
// apart.
package cache

import (
	"context"
	"strings"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	// Get returns the value for key and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases resources held by the cache.
	Close() error
}

// TTLResolution is the default lifetime of a persisted resolution.
const TTLResolution = 24 * time.Hour

// Open creates a cache from a backend description: "" or "none" for
// NullCache, "file" for a FileCache in dir, or a redis:// / rediss:// URL.
func Open(backend, dir string) (Cache, error) {
	switch {
	case backend == "" || backend == "none":
		return NewNullCache(), nil
	case backend == "file":
		fc, err := NewFileCache(dir)
		if err != nil {
			return nil, err
		}
		return fc, nil
	case strings.HasPrefix(backend, "redis://"), strings.HasPrefix(backend, "rediss://"):
		rc, err := NewRedisCache(backend)
		if err != nil {
			return nil, err
		}
		return rc, nil
	default:
		return nil, ErrUnknownBackend
	}
}
