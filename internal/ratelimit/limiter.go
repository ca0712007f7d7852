// Package ratelimit implements a Redis-backed token bucket shared by every
// worker process that talks to the platform API, plus the daily join
// counter. Refill and consume happen in one Lua script so concurrent
// workers cannot over-admit past the shared quota.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	bucketKeyPrefix = "ratelimit:bucket:"
	joinKeyPrefix   = "ratelimit:joins:"
)

// acquireScript refills the bucket from elapsed time, then consumes if
// enough tokens are available. Returns {granted, wait_seconds} with the
// wait encoded as a string because Redis truncates Lua numbers to integers.
var acquireScript = redis.NewScript(`
local key = KEYS[1]
local max_tokens = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now_us = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_us')
local tokens = tonumber(state[1])
local last_us = tonumber(state[2])

if tokens == nil or last_us == nil then
  tokens = max_tokens
  last_us = now_us
end

local elapsed = (now_us - last_us) / 1000000.0
if elapsed < 0 then
  elapsed = 0
end

tokens = tokens + elapsed * refill_rate
if tokens > max_tokens then
  tokens = max_tokens
end

if tokens >= requested then
  tokens = tokens - requested
  redis.call('HSET', key, 'tokens', tostring(tokens), 'last_refill_us', tostring(now_us))
  return {1, '0'}
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'last_refill_us', tostring(now_us))
local wait = (requested - tokens) / refill_rate
return {0, tostring(wait)}
`)

// Limiter coordinates calls against one named bucket in a shared Redis.
// Any Redis failure fails closed: no tokens are granted while the
// coordination store is unreachable.
type Limiter struct {
	rdb        *redis.Client
	bucket     string
	maxTokens  float64
	refillRate float64
	logger     *slog.Logger

	// now is swapped in tests to drive refill deterministically.
	now func() time.Time
}

// Config holds token bucket parameters.
type Config struct {
	Bucket     string
	MaxTokens  float64
	RefillRate float64 // tokens per second
}

func NewLimiter(rdb *redis.Client, cfg Config, logger *slog.Logger) *Limiter {
	return &Limiter{
		rdb:        rdb,
		bucket:     cfg.Bucket,
		maxTokens:  cfg.MaxTokens,
		refillRate: cfg.RefillRate,
		logger:     logger.With("component", "ratelimit", "bucket", cfg.Bucket),
		now:        time.Now,
	}
}

// Acquire atomically attempts to consume tokens. When not granted, the
// returned wait is how long the caller should sleep before the bucket can
// satisfy the request.
func (l *Limiter) Acquire(ctx context.Context, tokens float64) (bool, time.Duration, error) {
	nowUS := l.now().UnixMicro()

	res, err := acquireScript.Run(ctx, l.rdb,
		[]string{bucketKeyPrefix + l.bucket},
		l.maxTokens, l.refillRate, nowUS, tokens,
	).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limiter unavailable: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("rate limiter unavailable: unexpected script reply %v", res)
	}

	granted, ok := res[0].(int64)
	if !ok {
		return false, 0, fmt.Errorf("rate limiter unavailable: unexpected script reply %v", res)
	}
	if granted == 1 {
		return true, 0, nil
	}

	waitStr, ok := res[1].(string)
	if !ok {
		return false, 0, fmt.Errorf("rate limiter unavailable: unexpected script reply %v", res)
	}
	waitSec, err := strconv.ParseFloat(waitStr, 64)
	if err != nil {
		return false, 0, fmt.Errorf("rate limiter unavailable: parse wait %q: %w", waitStr, err)
	}

	return false, time.Duration(waitSec * float64(time.Second)), nil
}

// AcquireWait loops Acquire, sleeping the advertised wait between attempts,
// until granted, the cumulative wait would exceed maxWait, or ctx is done.
func (l *Limiter) AcquireWait(ctx context.Context, tokens float64, maxWait time.Duration) (bool, error) {
	var waited time.Duration

	for {
		granted, wait, err := l.Acquire(ctx, tokens)
		if err != nil {
			return false, err
		}
		if granted {
			return true, nil
		}

		if waited+wait > maxWait {
			l.logger.Debug("giving up on token acquisition",
				"waited", waited,
				"next_wait", wait,
				"max_wait", maxWait,
			)
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(wait):
			waited += wait
		}
	}
}

// CanJoin reports whether today's join quota still has room.
func (l *Limiter) CanJoin(ctx context.Context, dailyLimit int) (bool, error) {
	count, err := l.rdb.Get(ctx, l.joinKey()).Int()
	if err == redis.Nil {
		return dailyLimit > 0, nil
	}
	if err != nil {
		return false, fmt.Errorf("rate limiter unavailable: %w", err)
	}
	return count < dailyLimit, nil
}

// RecordJoin atomically increments today's join counter, arming expiry at
// the next UTC day boundary on first increment.
func (l *Limiter) RecordJoin(ctx context.Context) (int64, error) {
	key := l.joinKey()
	midnight := l.nextUTCMidnight()

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireAt(ctx, key, midnight)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter unavailable: %w", err)
	}
	return incr.Val(), nil
}

func (l *Limiter) joinKey() string {
	return joinKeyPrefix + l.now().UTC().Format("2006-01-02")
}

func (l *Limiter) nextUTCMidnight() time.Time {
	now := l.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}
