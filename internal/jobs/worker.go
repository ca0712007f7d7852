package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"channel_fetcher/internal/domain"
	"channel_fetcher/internal/events"
	"channel_fetcher/internal/platform"
)

// runJob drives one fetch job through its info and fetching phases. A
// worker failure is recorded on the job row, never propagated: one bad job
// must not take down the pool.
func (q *Queue) runJob(ctx context.Context, job *domain.FetchJob, logger *slog.Logger) {
	start := time.Now()
	logger = logger.With("job_id", job.ID, "channel_id", job.ChannelID)

	if err := q.jobs.MarkRunning(ctx, job.ID); err != nil {
		logger.Error("failed to mark job running", "error", err)
		return
	}

	ch, err := q.channels.Get(ctx, job.ChannelID)
	if err != nil {
		q.failJob(ctx, job, fmt.Sprintf("load channel: %v", err), logger)
		return
	}
	if ch == nil {
		q.failJob(ctx, job, "channel no longer exists", logger)
		return
	}

	logger.Info("job started", "channel", ch.Username, "checkpoint", job.Checkpoint)

	ch, err = q.infoPhase(ctx, job, ch, logger)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown: leave the row running for operator requeue.
			logger.Info("job interrupted by shutdown during info phase")
			return
		}
		q.failJob(ctx, job, err.Error(), logger)
		return
	}

	stats, err := q.fetchPhase(ctx, job, ch, logger)
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("job interrupted by shutdown during fetch phase",
				"processed", stats.Processed,
			)
			return
		}
		q.failJob(ctx, job, err.Error(), logger)
		return
	}

	if err := q.jobs.MarkCompleted(ctx, job.ID); err != nil {
		logger.Error("failed to mark job completed", "error", err)
		return
	}
	if err := q.channels.TouchLastFetched(ctx, job.ChannelID, time.Now().UTC()); err != nil {
		logger.Error("failed to stamp last_fetched_at", "error", err)
	}
	q.publishProgress(ctx, job, domain.JobStageCompleted, stats.New)

	stats.Duration = time.Since(start)
	logger.Info("job completed",
		"processed", stats.Processed,
		"new", stats.New,
		"batches", stats.Batches,
		"duration", stats.Duration,
	)
}

// infoPhase resolves fresh channel metadata with a bounded retry budget.
// Quota signals wait out their RetryAfter but still consume an attempt.
func (q *Queue) infoPhase(ctx context.Context, job *domain.FetchJob, ch *domain.Channel, logger *slog.Logger) (*domain.Channel, error) {
	q.publishProgress(ctx, job, domain.JobStageInfo, job.NewItemCount)

	var lastErr error
	for attempt := 1; attempt <= q.cfg.MaxInfoRetries; attempt++ {
		granted, err := q.limiter.AcquireWait(ctx, 1, q.cfg.AcquireMaxWait)
		if err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		if !granted {
			lastErr = errors.New("rate limit wait budget exceeded")
			continue
		}

		info, err := q.client.ResolveChannel(ctx, ch.Username)
		if err == nil {
			ch.ExternalID = info.ExternalID
			ch.Title = info.Title
			if info.Description != "" {
				desc := info.Description
				ch.Description = &desc
			}
			ch.SubscriberCount = info.SubscriberCount

			if _, uerr := q.channels.Upsert(ctx, ch); uerr != nil {
				return nil, fmt.Errorf("update channel metadata: %w", uerr)
			}
			if serr := q.jobs.SetStage(ctx, job.ID, domain.JobStageFetching); serr != nil {
				return nil, fmt.Errorf("set stage: %w", serr)
			}
			return ch, nil
		}

		if errors.Is(err, platform.ErrNotFound) ||
			errors.Is(err, platform.ErrPrivateChannel) ||
			errors.Is(err, platform.ErrInvalidUsername) {
			return nil, fmt.Errorf("resolve channel: %w", err)
		}

		lastErr = err
		wait := q.cfg.RetryBackoff
		if quota, ok := platform.AsQuota(err); ok {
			wait = quota.RetryAfter + q.cfg.QuotaBuffer
		}
		logger.Warn("info phase attempt failed",
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
		if attempt < q.cfg.MaxInfoRetries {
			if serr := sleepCtx(ctx, wait); serr != nil {
				return nil, serr
			}
		}
	}

	return nil, fmt.Errorf("info phase failed after %d attempts: %w", q.cfg.MaxInfoRetries, lastErr)
}

// fetchPhase streams history newest to oldest in checkpointed batches.
// Quota signals pause and resume from the checkpoint with unbounded
// patience; transient failures get a bounded retry budget.
func (q *Queue) fetchPhase(ctx context.Context, job *domain.FetchJob, ch *domain.Channel, logger *slog.Logger) (domain.JobStats, error) {
	stats := domain.JobStats{
		JobID:     job.ID,
		ChannelID: job.ChannelID,
		Processed: job.ProcessedItemCount,
		New:       job.NewItemCount,
	}

	untilID := job.Checkpoint
	transientRetries := 0

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		granted, err := q.limiter.AcquireWait(ctx, 1, q.cfg.AcquireMaxWait)
		if err != nil {
			return stats, fmt.Errorf("rate limiter: %w", err)
		}
		if !granted {
			// Shared quota is saturated; keep waiting in maxWait slices.
			continue
		}

		batch, err := q.client.FetchHistory(ctx, ch.ExternalID, untilID, job.LookbackDays, q.cfg.BatchSize)
		if quota, ok := platform.AsQuota(err); ok {
			wait := quota.RetryAfter + q.cfg.QuotaBuffer
			logger.Info("quota exhausted, pausing fetch",
				"wait", wait,
				"checkpoint", untilID,
			)
			if serr := sleepCtx(ctx, wait); serr != nil {
				return stats, serr
			}
			continue
		}
		if err != nil {
			transientRetries++
			if transientRetries > q.cfg.MaxFetchRetries {
				return stats, fmt.Errorf("fetch history: %w", err)
			}
			logger.Warn("transient fetch failure",
				"retry", transientRetries,
				"error", err,
			)
			if serr := sleepCtx(ctx, q.cfg.RetryBackoff); serr != nil {
				return stats, serr
			}
			continue
		}
		transientRetries = 0

		if len(batch) == 0 {
			return stats, nil
		}

		inserted, minID, err := q.saveBatch(ctx, job, batch, &stats)
		if err != nil {
			return stats, err
		}

		untilID = minID
		stats.Batches++

		logger.Debug("batch committed",
			"batch_size", len(batch),
			"inserted", inserted,
			"checkpoint", untilID,
		)
		q.publishProgress(ctx, job, domain.JobStageFetching, stats.New)
	}
}

// saveBatch deduplicates, bulk-inserts, and commits the new checkpoint in
// one transaction. Returns the inserted count and the batch's minimum
// external id (the next cursor).
func (q *Queue) saveBatch(ctx context.Context, job *domain.FetchJob, batch []platform.HistoryItem, stats *domain.JobStats) (int, int64, error) {
	extIDs := make([]int64, len(batch))
	minID := batch[0].ExternalID
	for i, it := range batch {
		extIDs[i] = it.ExternalID
		if it.ExternalID < minID {
			minID = it.ExternalID
		}
	}

	existing, err := q.items.ExistingExternalIDs(ctx, job.ChannelID, extIDs)
	if err != nil {
		return 0, 0, fmt.Errorf("check existing items: %w", err)
	}

	var newItems []domain.Item
	for _, it := range batch {
		if _, ok := existing[it.ExternalID]; ok {
			continue
		}
		item := domain.Item{
			ChannelID:   job.ChannelID,
			ExternalID:  it.ExternalID,
			Text:        it.Text,
			PublishedAt: it.PublishedAt,
		}
		if it.MediaKind != "" {
			kind := it.MediaKind
			item.MediaKind = &kind
		}
		newItems = append(newItems, item)
	}

	var inserted int
	err = q.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var ierr error
		inserted, ierr = q.items.BulkInsert(txCtx, job.ChannelID, newItems)
		if ierr != nil {
			return fmt.Errorf("bulk insert: %w", ierr)
		}

		stats.Processed += len(batch)
		stats.New += inserted
		return q.jobs.RecordProgress(txCtx, job.ID, stats.Processed, stats.New, minID)
	})
	if err != nil {
		return 0, 0, fmt.Errorf("commit batch: %w", err)
	}

	return inserted, minID, nil
}

func (q *Queue) failJob(ctx context.Context, job *domain.FetchJob, message string, logger *slog.Logger) {
	logger.Error("job failed", "error", message)
	if err := q.jobs.MarkFailed(ctx, job.ID, message); err != nil {
		logger.Error("failed to record job failure", "error", err)
	}
	q.publishProgress(ctx, job, domain.JobStageFailed, job.NewItemCount)
}

func (q *Queue) publishProgress(ctx context.Context, job *domain.FetchJob, stage domain.JobStage, newCount int) {
	if q.events == nil {
		return
	}
	err := q.events.PublishJobProgress(ctx, events.JobProgress{
		JobID:        job.ID,
		ChannelID:    job.ChannelID,
		Stage:        string(stage),
		NewItemCount: newCount,
	})
	if err != nil {
		q.logger.Warn("failed to publish job progress", "job_id", job.ID, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
