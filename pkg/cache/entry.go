package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Entry is the envelope GetJSON and SetJSON store.
type Entry struct {
	// Data is the JSON encoded value
	Data json.RawMessage `json:"data"`

	// CachedAt is when the value was stored
	CachedAt time.Time `json:"cached_at"`
}

// Age returns how long ago the entry was stored.
func (e *Entry) Age() time.Duration {
	return time.Since(e.CachedAt)
}

// SetJSON encodes v and stores it under key for ttl.
func SetJSON(ctx context.Context, s Store, key Key, v any, ttl time.Duration) error {
	data, err := jsonAPI.Marshal(v)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache value: %w", err)
	}

	entry, err := jsonAPI.Marshal(Entry{Data: data, CachedAt: time.Now()})
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	return s.Set(ctx, key, entry, ttl)
}

// GetJSON loads the value stored under key into v and returns its entry.
// Returns ErrCacheMiss if the key is absent and ErrInvalidEntry if the
// stored bytes cannot be decoded; an invalid entry is deleted.
func GetJSON(ctx context.Context, s Store, key Key, v any) (*Entry, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var entry Entry
	if err := jsonAPI.Unmarshal(raw, &entry); err != nil || entry.Data == nil {
		_ = s.Delete(ctx, key)
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %s", ErrInvalidEntry, key)
	}

	if err := jsonAPI.Unmarshal(entry.Data, v); err != nil {
		_ = s.Delete(ctx, key)
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	return &entry, nil
}
