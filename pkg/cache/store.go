package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is a byte-level cache.
type Store interface {
	// Get returns the value for key or ErrCacheMiss.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores value for ttl. A ttl <= 0 keeps the value until deleted.
	Set(ctx context.Context, key Key, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error
}
