package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key written by RedisStorage.
const DefaultRedisPrefix = "offline"

// RedisStorage keeps named stores in Redis.
//
// Layout:
//
//	<prefix>:caches        sorted set of store names, scored by creation time
//	<prefix>:cache:<name>  hash of request key -> JSON entry
type RedisStorage struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStorage creates a storage backed by redisClient.
func NewRedisStorage(redisClient redis.UniversalClient, prefix string) *RedisStorage {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStorage{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RedisStorage) namesKey() string {
	return s.prefix + ":caches"
}

func (s *RedisStorage) storeKey(name string) string {
	return s.prefix + ":cache:" + name
}

// Open returns the named store, registering it if absent.
func (s *RedisStorage) Open(ctx context.Context, name string) (Store, error) {
	if name == "" {
		return nil, fmt.Errorf("store name cannot be empty")
	}

	err := s.redis.ZAddNX(ctx, s.namesKey(), redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: name,
	}).Err()
	if err != nil {
		CacheErrors.WithLabelValues("open").Inc()
		return nil, fmt.Errorf("redis zadd: %w", err)
	}

	return &redisStore{storage: s, name: name}, nil
}

// Has reports whether the named store is registered.
func (s *RedisStorage) Has(ctx context.Context, name string) (bool, error) {
	err := s.redis.ZScore(ctx, s.namesKey(), name).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis zscore: %w", err)
	}
	return true, nil
}

// Keys lists store names in creation order.
func (s *RedisStorage) Keys(ctx context.Context) ([]string, error) {
	names, err := s.redis.ZRange(ctx, s.namesKey(), 0, -1).Result()
	if err != nil {
		CacheErrors.WithLabelValues("keys").Inc()
		return nil, fmt.Errorf("redis zrange: %w", err)
	}
	return names, nil
}

// Delete unregisters the store and drops its hash in one transaction.
func (s *RedisStorage) Delete(ctx context.Context, name string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRem(ctx, s.namesKey(), name)
		pipe.Del(ctx, s.storeKey(name))
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("delete_store").Inc()
		return false, fmt.Errorf("redis delete store: %w", err)
	}
	return removed.Val() > 0, nil
}

type redisStore struct {
	storage *RedisStorage
	name    string
}

func (s *redisStore) Name() string {
	return s.name
}

func (s *redisStore) Match(ctx context.Context, key RequestKey) (*Entry, error) {
	data, err := s.storage.redis.HGet(ctx, s.storage.storeKey(s.name), key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.WithLabelValues("redis").Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("match").Inc()
		return nil, fmt.Errorf("redis hget: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("match").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	CacheHits.WithLabelValues("redis").Inc()
	return &entry, nil
}

func (s *redisStore) Put(ctx context.Context, key RequestKey, entry *Entry) error {
	return s.PutAll(ctx, []Item{{Key: key, Entry: entry}})
}

func (s *redisStore) PutAll(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}

	values := make([]any, 0, len(items)*2)
	size := 0
	for _, item := range items {
		if item.Entry == nil {
			return fmt.Errorf("cache entry cannot be nil")
		}
		data, err := json.Marshal(item.Entry)
		if err != nil {
			CacheErrors.WithLabelValues("put").Inc()
			return fmt.Errorf("marshal cache entry: %w", err)
		}
		values = append(values, item.Key.String(), data)
		size += len(data)
	}

	if err := s.writeIfRegistered(ctx, values); err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return err
	}

	CacheWrittenBytes.WithLabelValues("redis").Add(float64(size))
	return nil
}

// maxWatchRetries bounds optimistic retries when the store list changes
// under a write.
const maxWatchRetries = 5

// writeIfRegistered runs HSET only while the store is still registered.
// The names key is watched, so a concurrent Delete aborts the write
// instead of leaving an orphaned hash behind.
func (s *redisStore) writeIfRegistered(ctx context.Context, values []any) error {
	namesKey := s.storage.namesKey()
	storeKey := s.storage.storeKey(s.name)

	txf := func(tx *redis.Tx) error {
		err := tx.ZScore(ctx, namesKey, s.name).Err()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", ErrStoreNotFound, s.name)
		}
		if err != nil {
			return fmt.Errorf("redis zscore: %w", err)
		}

		// A single HSET with many fields is atomic.
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, storeKey, values...)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.storage.redis.Watch(ctx, txf, namesKey)
		if errors.Is(err, redis.TxFailedErr) {
			// Store list changed; check registration again
			continue
		}
		if err != nil && !errors.Is(err, ErrStoreNotFound) {
			return fmt.Errorf("redis hset: %w", err)
		}
		return err
	}
	return fmt.Errorf("redis hset: store list kept changing after %d attempts", maxWatchRetries)
}

func (s *redisStore) Delete(ctx context.Context, key RequestKey) (bool, error) {
	n, err := s.storage.redis.HDel(ctx, s.storage.storeKey(s.name), key.String()).Result()
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return false, fmt.Errorf("redis hdel: %w", err)
	}
	return n > 0, nil
}

func (s *redisStore) Len(ctx context.Context) (int, error) {
	n, err := s.storage.redis.HLen(ctx, s.storage.storeKey(s.name)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hlen: %w", err)
	}
	return int(n), nil
}
