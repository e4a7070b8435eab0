// Package cache provides the explicit, invalidated cache used by the Ximilar
// application layer for workspace maps and resource lookups.
//
// Two stores implement the Store interface:
//
// - RedisStore, shared between processes (go-redis)
// - MemoryStore, process local (gocache over patrickmn/go-cache)
//
// Values are opaque bytes; GetJSON and SetJSON wrap a value in an Entry that
// records when it was cached.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//	store := cache.NewRedisStore(redisClient)
//
//	key := cache.Key{Resource: "label", ID: labelID, Scope: workspaceID}
//
//	var label Label
//	err := cache.GetJSON(ctx, store, key, &label)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API, then
//		_ = cache.SetJSON(ctx, store, key, label, 10*time.Minute)
//	}
//
// Callers invalidate with Delete before every mutating API call, so a stale
// value is never served after a change made through this client.
//
// # Metrics
//
// The following Prometheus metrics are exposed:
//
// - ximilar_cache_hits_total{layer}: cache hits by store
// - ximilar_cache_misses_total{layer}: cache misses by store
// - ximilar_cache_errors_total{operation}: store errors by operation
package cache
