package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gocachelib "github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	gocachestore "github.com/eko/gocache/store/go_cache/v4"
	gocache "github.com/patrickmn/go-cache"
)

// DefaultCleanupInterval is how often the memory store purges expired items.
const DefaultCleanupInterval = 5 * time.Minute

// MemoryStore is a process-local Store.
type MemoryStore struct {
	cache *gocachelib.Cache[[]byte]
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore() *MemoryStore {
	client := gocache.New(gocache.NoExpiration, DefaultCleanupInterval)
	return &MemoryStore{
		cache: gocachelib.New[[]byte](gocachestore.NewGoCache(client)),
	}
}

// Get retrieves a value by key.
func (m *MemoryStore) Get(ctx context.Context, key Key) ([]byte, error) {
	value, err := m.cache.Get(ctx, key.String())
	if err != nil {
		if isNotFound(err) {
			CacheMisses.WithLabelValues("memory").Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("memory get: %w", err)
	}

	CacheHits.WithLabelValues("memory").Inc()
	return value, nil
}

// Set stores a copy of value.
func (m *MemoryStore) Set(ctx context.Context, key Key, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	stored := append([]byte(nil), value...)
	if err := m.cache.Set(ctx, key.String(), stored, store.WithExpiration(ttl)); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("memory set: %w", err)
	}
	return nil
}

// Delete removes a value.
func (m *MemoryStore) Delete(ctx context.Context, key Key) error {
	if err := m.cache.Delete(ctx, key.String()); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("memory delete: %w", err)
	}
	return nil
}

// isNotFound reports a gocache miss. Stores return store.NotFound by value or
// by pointer; older stores only say so in the message.
func isNotFound(err error) bool {
	var byPointer *store.NotFound
	var byValue store.NotFound
	if errors.As(err, &byPointer) || errors.As(err, &byValue) {
		return true
	}
	return strings.Contains(err.Error(), "not found")
}
