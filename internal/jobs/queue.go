// Package jobs implements the fetch job queue, its worker pool, and the
// daily-quota join queue.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"channel_fetcher/internal/channellock"
	"channel_fetcher/internal/domain"
)

// Config holds queue and worker parameters.
type Config struct {
	PoolSize        int
	QueueDepth      int
	MaxConcurrent   int64
	LockCapacity    int
	BatchSize       int
	AcquireMaxWait  time.Duration
	QuotaBuffer     time.Duration
	MaxInfoRetries  int
	MaxFetchRetries int
	RetryBackoff    time.Duration
}

// Queue owns fetch job dispatch: durable rows in the job store, an
// in-process dispatch channel, and a fixed worker pool. Persisted queued
// jobs are re-hydrated on Run, so a restart drops nothing.
type Queue struct {
	cfg      Config
	jobs     JobStore
	items    ItemStore
	channels ChannelStore
	client   Client
	limiter  TokenLimiter
	events   EventPublisher
	tx       TransactionManager
	locks    *channellock.Registry
	sem      *semaphore.Weighted
	logger   *slog.Logger

	dispatch chan string

	mu     sync.Mutex
	active map[string]struct{}
}

func NewQueue(
	cfg Config,
	jobStore JobStore,
	itemStore ItemStore,
	channelStore ChannelStore,
	client Client,
	limiter TokenLimiter,
	eventPub EventPublisher,
	tx TransactionManager,
	logger *slog.Logger,
) *Queue {
	if cfg.MaxFetchRetries == 0 {
		cfg.MaxFetchRetries = 5
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 2 * time.Second
	}

	return &Queue{
		cfg:      cfg,
		jobs:     jobStore,
		items:    itemStore,
		channels: channelStore,
		client:   client,
		limiter:  limiter,
		events:   eventPub,
		tx:       tx,
		locks:    channellock.NewRegistry(cfg.LockCapacity),
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
		logger:   logger.With("component", "jobs"),
		dispatch: make(chan string, cfg.QueueDepth),
		active:   make(map[string]struct{}),
	}
}

// Enqueue creates and dispatches a fetch job for the channel. It is
// idempotent: while the channel has an active job, that job is returned
// instead of a new one.
func (q *Queue) Enqueue(ctx context.Context, channelID int64, lookbackDays int) (*domain.FetchJob, error) {
	existing, err := q.jobs.FindActive(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("find active job: %w", err)
	}
	if existing != nil {
		q.logger.Debug("reusing active job",
			"job_id", existing.ID,
			"channel_id", channelID,
		)
		return existing, nil
	}

	job := &domain.FetchJob{
		ID:           uuid.NewString(),
		ChannelID:    channelID,
		LookbackDays: lookbackDays,
		Status:       domain.JobStatusQueued,
		Stage:        domain.JobStageQueued,
		CreatedAt:    time.Now().UTC(),
	}

	if err := q.jobs.Insert(ctx, job); err != nil {
		// Lost a creation race against another process: its job wins.
		if errors.Is(err, domain.ErrActiveJobExists) {
			winner, ferr := q.jobs.FindActive(ctx, channelID)
			if ferr != nil {
				return nil, fmt.Errorf("find active job after race: %w", ferr)
			}
			if winner != nil {
				return winner, nil
			}
		}
		return nil, fmt.Errorf("insert job: %w", err)
	}

	select {
	case q.dispatch <- job.ID:
	case <-ctx.Done():
		// Row is persisted; the job will be re-hydrated next start.
		return job, ctx.Err()
	}

	q.logger.Info("job enqueued",
		"job_id", job.ID,
		"channel_id", channelID,
		"lookback_days", lookbackDays,
	)
	return job, nil
}

// Run re-hydrates persisted queued jobs, starts the worker pool, and blocks
// until ctx is cancelled and every worker has drained.
func (q *Queue) Run(ctx context.Context) error {
	if err := q.rehydrate(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	for i := range q.cfg.PoolSize {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			q.workerLoop(ctx, workerID)
		}(i)
	}

	q.logger.Info("worker pool started",
		"pool_size", q.cfg.PoolSize,
		"max_concurrent", q.cfg.MaxConcurrent,
	)

	<-ctx.Done()
	wg.Wait()
	q.logger.Info("worker pool stopped")
	return ctx.Err()
}

func (q *Queue) rehydrate(ctx context.Context) error {
	stale, err := q.jobs.RequeueStale(ctx)
	if err != nil {
		return fmt.Errorf("requeue stale jobs: %w", err)
	}
	if stale > 0 {
		q.logger.Warn("requeued jobs abandoned mid-run", "count", stale)
	}

	ids, err := q.jobs.QueuedIDs(ctx)
	if err != nil {
		return fmt.Errorf("rehydrate queued jobs: %w", err)
	}

	for _, id := range ids {
		select {
		case q.dispatch <- id:
		default:
			q.logger.Warn("dispatch queue full during rehydration", "job_id", id)
		}
	}

	if len(ids) > 0 {
		q.logger.Info("rehydrated queued jobs", "count", len(ids))
	}
	return nil
}

func (q *Queue) workerLoop(ctx context.Context, workerID int) {
	logger := q.logger.With("worker", workerID)

	for {
		select {
		case <-ctx.Done():
			return
		case jobID := <-q.dispatch:
			q.process(ctx, jobID, logger)
		}
	}
}

// process claims a job id and runs it behind the global concurrency
// semaphore and the per-channel lock.
func (q *Queue) process(ctx context.Context, jobID string, logger *slog.Logger) {
	if !q.claim(jobID) {
		// Enqueued twice; another worker owns it.
		return
	}
	defer q.release(jobID)

	if err := q.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer q.sem.Release(1)

	job, err := q.jobs.Get(ctx, jobID)
	if err != nil {
		logger.Error("failed to load job", "job_id", jobID, "error", err)
		return
	}
	if job == nil || job.Status != domain.JobStatusQueued {
		return
	}

	lock := q.locks.Acquire(strconv.FormatInt(job.ChannelID, 10))
	lock.Lock()
	defer lock.Unlock()

	q.runJob(ctx, job, logger)
}

func (q *Queue) claim(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.active[jobID]; ok {
		return false
	}
	q.active[jobID] = struct{}{}
	return true
}

func (q *Queue) release(jobID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.active, jobID)
}
