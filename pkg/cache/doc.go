// Package cache provides named, versioned response stores for the offline
// cache controller.
//
// A Storage holds any number of named stores; exactly one of them is the
// current store of the deployed controller version, the others are stale and
// get deleted on activation. Each Store maps a request identity (method and
// canonical URL) to a full response snapshot.
//
// Two backends are provided:
//
//   - RedisStorage - persistent, shared between processes (go-redis)
//   - MemoryStorage - in-process, for single instances and tests (go-cache)
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	storage := cache.NewRedisStorage(redisClient, "offline")
//
//	store, err := storage.Open(ctx, "talent-cache-v1")
//	if err != nil {
//		return err
//	}
//
//	entry, err := store.Match(ctx, cache.KeyFor(req))
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - fetch from network
//	}
//
// # HTTP Response Caching
//
//	// Snapshot a response; resp.Body stays readable
//	entry, err := cache.ResponseToEntry(resp, cache.TypeBasic)
//	if err != nil {
//		return err
//	}
//
//	if err := store.Put(ctx, cache.KeyFor(req), entry); err != nil {
//		return err
//	}
//
//	// Replay it later
//	resp := cache.EntryToResponse(entry, req)
//
// # Metrics
//
//   - offline_cache_hits_total{backend} - Store hits
//   - offline_cache_misses_total{backend} - Store misses by backend
//   - offline_cache_written_bytes_total{backend} - Bytes written
//   - offline_cache_errors_total{operation} - Store operation errors
package cache
