package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"channel_fetcher/internal/domain"
)

const (
	cacheKeyPrefix = "translate:cache:"
	hitsKeyPrefix  = "translate:hits:"

	// hitMultiplier grows the TTL per observed hit.
	hitMultiplier = 0.5
)

// CacheKey identifies a translation by content and language pair.
func CacheKey(text, srcLang, dstLang string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:]) + ":" + srcLang + ":" + dstLang
}

// RedisCache is the cross-process, authoritative cache tier. Each hit
// increments a counter and stretches the entry's TTL adaptively, so
// frequently reused translations stay cached longer.
type RedisCache struct {
	rdb     *redis.Client
	baseTTL time.Duration
	maxTTL  time.Duration
}

func NewRedisCache(rdb *redis.Client, baseTTL, maxTTL time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, baseTTL: baseTTL, maxTTL: maxTTL}
}

// Get returns the cached translation or nil on a miss. A hit refreshes the
// adaptive TTL.
func (c *RedisCache) Get(ctx context.Context, key string) (*domain.CachedTranslation, error) {
	raw, err := c.rdb.Get(ctx, cacheKeyPrefix+key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("shared cache get: %w", err)
	}

	var cached domain.CachedTranslation
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil, fmt.Errorf("decode cached translation: %w", err)
	}

	hits, err := c.rdb.Incr(ctx, hitsKeyPrefix+key).Result()
	if err != nil {
		return nil, fmt.Errorf("increment hit count: %w", err)
	}
	cached.Hits = hits

	ttl := c.adaptiveTTL(hits)
	pipe := c.rdb.Pipeline()
	pipe.Expire(ctx, cacheKeyPrefix+key, ttl)
	pipe.Expire(ctx, hitsKeyPrefix+key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("refresh cache ttl: %w", err)
	}

	return &cached, nil
}

// Put stores a fresh translation with the base TTL and a zeroed hit count.
func (c *RedisCache) Put(ctx context.Context, key string, val domain.CachedTranslation) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode cached translation: %w", err)
	}

	ttl := c.adaptiveTTL(0)
	pipe := c.rdb.Pipeline()
	pipe.Set(ctx, cacheKeyPrefix+key, raw, ttl)
	pipe.Set(ctx, hitsKeyPrefix+key, 0, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("shared cache put: %w", err)
	}
	return nil
}

func (c *RedisCache) adaptiveTTL(hits int64) time.Duration {
	ttl := time.Duration(float64(c.baseTTL) * (1 + float64(hits)*hitMultiplier))
	if ttl > c.maxTTL {
		ttl = c.maxTTL
	}
	return ttl
}
