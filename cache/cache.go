// Package cache fronts the artifact dedup store with a Redis-backed
// read-through cache. Ingestion steps ask "have I mirrored this
// content before" for every changed item; the verdict is immutable for
// a given (hash, size) pair once processed, which makes it safe to
// cache aggressively.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis_db "github.com/listmirror/listmirror/internal/redis-db"

	"github.com/listmirror/listmirror/config"

	"github.com/go-redis/cache/v9"
)

type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, data interface{}) error
	Delete(ctx context.Context, key string) error
}

func NewCache() (Cache, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	ca, err := newRedisCache(cfg.Redis.Dns, cfg.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}
	return ca, nil
}

const cacheSize = 128000

// DedupTTL bounds how long a processed verdict is kept. Re-ingesting
// after expiry is harmless; the store-level dedup key catches it.
const DedupTTL = 24 * time.Hour

// DedupKey names the cache entry for one artifact's dedup verdict.
func DedupKey(hash string, size int64) string {
	return fmt.Sprintf("listmirror:artifact:%s:%d", hash, size)
}

type RedisCache struct {
	cache *cache.Cache
}

func newRedisCache(address string, skipTLSVerify bool) (*RedisCache, error) {
	client, err := redis_db.NewRedisClient(address, skipTLSVerify)
	if err != nil {
		return nil, err
	}

	c := cache.New(&cache.Options{
		Redis:      client.Client(),
		LocalCache: cache.NewTinyLFU(cacheSize, 1*time.Minute),
	})

	r := &RedisCache{cache: c}

	return r, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, data interface{}, ttl time.Duration) error {
	return r.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: data,
		TTL:   ttl,
	})
}

func (r *RedisCache) Get(ctx context.Context, key string, data interface{}) error {
	err := r.cache.Get(ctx, key, &data)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}

	if err != nil {
		return err
	}

	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.cache.Delete(ctx, key)
}
