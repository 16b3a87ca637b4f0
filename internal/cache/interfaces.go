package cache

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Storage uses it to remember which submissions are already durable, so the
// implementations can be swapped (memory, Redis, memcached) without touching
// the sync path.
type Cache interface {
	// Get retrieves a value by key. Returns ErrCacheMiss if not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in the cache.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases connections or background workers.
	Close() error
}

// Common cache errors
type CacheError string

func (e CacheError) Error() string { return string(e) }

const (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss CacheError = "cache miss"

	// ErrUnknownType is returned by New for an unrecognised cache type.
	ErrUnknownType CacheError = "unknown cache type"
)
