package cache

import (
	"context"
	"time"
)

// NullCache backs "--cache none" and is the resolver's default store. Every
// lookup misses and writes are dropped, so each run resolves from scratch.
type NullCache struct {
	// Reason says why resolutions are not persisted.
	Reason string
}

// NewNullCache returns the store used when caching is switched off.
func NewNullCache() Cache {
	return &NullCache{Reason: "caching disabled"}
}

// Disabled returns a NullCache standing in for a backend that could not be
// set up.
func Disabled(reason string) *NullCache {
	return &NullCache{Reason: reason}
}

func (c *NullCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

func (c *NullCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return nil
}

func (c *NullCache) Delete(ctx context.Context, key string) error {
	return nil
}

func (c *NullCache) Close() error {
	return nil
}

var _ Cache = (*NullCache)(nil)
