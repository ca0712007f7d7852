package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"channel_fetcher/internal/platform"
)

const (
	joinListKey  = "joinqueue:fifo"
	joinIndexKey = "joinqueue:index"
)

// JoinQueue defers channel joins that cannot run today because the daily
// join quota is spent. Entries live in a Redis FIFO (shared across
// processes) deduplicated by lowercased username, and are drained once per
// day when the quota resets.
type JoinQueue struct {
	rdb     *redis.Client
	client  Client
	limiter TokenLimiter
	logger  *slog.Logger
}

type joinEntry struct {
	Username    string    `json:"username"`
	RequesterID string    `json:"requester_id"`
	QueuedAt    time.Time `json:"queued_at"`
}

func NewJoinQueue(rdb *redis.Client, client Client, limiter TokenLimiter, logger *slog.Logger) *JoinQueue {
	return &JoinQueue{
		rdb:     rdb,
		client:  client,
		limiter: limiter,
		logger:  logger.With("component", "joinqueue"),
	}
}

// Enqueue adds a join request and returns its 1-based queue position.
// Re-queueing an already-queued username returns the existing position.
func (jq *JoinQueue) Enqueue(ctx context.Context, username, requesterID string) (int64, error) {
	uname := strings.ToLower(strings.TrimSpace(username))
	if uname == "" {
		return 0, platform.ErrInvalidUsername
	}

	meta, err := json.Marshal(joinEntry{
		Username:    uname,
		RequesterID: requesterID,
		QueuedAt:    time.Now().UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("marshal join entry: %w", err)
	}

	added, err := jq.rdb.HSetNX(ctx, joinIndexKey, uname, meta).Result()
	if err != nil {
		return 0, fmt.Errorf("index join entry: %w", err)
	}

	if !added {
		pos, err := jq.rdb.LPos(ctx, joinListKey, uname, redis.LPosArgs{}).Result()
		if err == redis.Nil {
			// Index says queued but the list disagrees; repair the list.
			return jq.push(ctx, uname)
		}
		if err != nil {
			return 0, fmt.Errorf("locate join entry: %w", err)
		}
		return pos + 1, nil
	}

	return jq.push(ctx, uname)
}

func (jq *JoinQueue) push(ctx context.Context, uname string) (int64, error) {
	length, err := jq.rdb.RPush(ctx, joinListKey, uname).Result()
	if err != nil {
		return 0, fmt.Errorf("push join entry: %w", err)
	}
	jq.logger.Info("join request queued", "username", uname, "position", length)
	return length, nil
}

// Len returns the number of queued join requests.
func (jq *JoinQueue) Len(ctx context.Context) (int64, error) {
	return jq.rdb.LLen(ctx, joinListKey).Result()
}

// Drain joins queued channels up to today's remaining allowance. A quota
// signal mid-drain pushes the entry back to the FRONT and stops, so FIFO
// order survives into tomorrow. Non-quota join failures drop the entry to
// avoid a poison-pill loop.
func (jq *JoinQueue) Drain(ctx context.Context, dailyLimit int) (int, error) {
	joined := 0

	for {
		if err := ctx.Err(); err != nil {
			return joined, err
		}

		ok, err := jq.limiter.CanJoin(ctx, dailyLimit)
		if err != nil {
			return joined, fmt.Errorf("check join quota: %w", err)
		}
		if !ok {
			jq.logger.Info("daily join quota spent, stopping drain", "joined", joined)
			return joined, nil
		}

		uname, err := jq.rdb.LPop(ctx, joinListKey).Result()
		if err == redis.Nil {
			return joined, nil
		}
		if err != nil {
			return joined, fmt.Errorf("pop join entry: %w", err)
		}

		err = jq.client.JoinChannel(ctx, uname)
		if quota, isQuota := platform.AsQuota(err); isQuota {
			if perr := jq.rdb.LPush(ctx, joinListKey, uname).Err(); perr != nil {
				jq.logger.Error("failed to re-queue join entry", "username", uname, "error", perr)
			}
			jq.logger.Info("join quota exhausted mid-drain, stopping",
				"username", uname,
				"retry_after", quota.RetryAfter,
				"joined", joined,
			)
			return joined, nil
		}
		if err != nil {
			// Unjoinable channel: drop it rather than retry forever.
			jq.forget(ctx, uname)
			if errors.Is(err, platform.ErrNotFound) || errors.Is(err, platform.ErrPrivateChannel) {
				jq.logger.Warn("dropping unjoinable channel", "username", uname, "error", err)
			} else {
				jq.logger.Warn("join failed, dropping entry", "username", uname, "error", err)
			}
			continue
		}

		if _, err := jq.limiter.RecordJoin(ctx); err != nil {
			jq.logger.Error("failed to record join", "username", uname, "error", err)
		}
		jq.forget(ctx, uname)
		joined++
		jq.logger.Info("joined channel", "username", uname)
	}
}

func (jq *JoinQueue) forget(ctx context.Context, uname string) {
	if err := jq.rdb.HDel(ctx, joinIndexKey, uname).Err(); err != nil {
		jq.logger.Error("failed to drop join index entry", "username", uname, "error", err)
	}
}
