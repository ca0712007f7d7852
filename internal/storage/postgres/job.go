package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"channel_fetcher/internal/domain"
)

const uniqueViolation = "23505"

type JobStore struct {
	db *sqlx.DB
}

func NewJobStore(db *sqlx.DB) *JobStore {
	return &JobStore{db: db}
}

const jobColumns = `id, channel_id, lookback_days, status, stage,
	new_item_count, processed_item_count, checkpoint, error_message,
	created_at, started_at, finished_at`

func (s *JobStore) Insert(ctx context.Context, job *domain.FetchJob) error {
	query := `
		INSERT INTO fetch_jobs (id, channel_id, lookback_days, status, stage)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query,
		job.ID, job.ChannelID, job.LookbackDays, job.Status, job.Stage,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return domain.ErrActiveJobExists
	}
	return err
}

func (s *JobStore) Get(ctx context.Context, id string) (*domain.FetchJob, error) {
	var job domain.FetchJob
	err := s.db.GetContext(ctx, &job,
		`SELECT `+jobColumns+` FROM fetch_jobs WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// FindActive returns the channel's queued or running job, if any.
func (s *JobStore) FindActive(ctx context.Context, channelID int64) (*domain.FetchJob, error) {
	var job domain.FetchJob
	err := s.db.GetContext(ctx, &job, `
		SELECT `+jobColumns+`
		FROM fetch_jobs
		WHERE channel_id = $1 AND status IN ('queued', 'running')`,
		channelID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// QueuedIDs returns ids of all persisted queued jobs, oldest first, for
// dispatch-queue rehydration after a restart.
func (s *JobStore) QueuedIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		`SELECT id FROM fetch_jobs WHERE status = 'queued' ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *JobStore) MarkRunning(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE fetch_jobs
		SET status = 'running', stage = 'info', started_at = $2
		WHERE id = $1`,
		id, time.Now().UTC())
	return err
}

// RequeueStale resets jobs left in 'running' by a dead process back to
// 'queued' so they are picked up on the next rehydration. Returns the
// number of jobs reset.
func (s *JobStore) RequeueStale(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE fetch_jobs
		SET status = 'queued', started_at = NULL
		WHERE status = 'running'`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *JobStore) SetStage(ctx context.Context, id string, stage domain.JobStage) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE fetch_jobs SET stage = $2 WHERE id = $1`, id, stage)
	return err
}

// RecordProgress persists the commit point after a fully-saved batch, so a
// restarted job resumes from the checkpoint instead of the start.
func (s *JobStore) RecordProgress(ctx context.Context, id string, processed, newCount int, checkpoint int64) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, `
		UPDATE fetch_jobs
		SET processed_item_count = $2, new_item_count = $3, checkpoint = $4, stage = 'saving'
		WHERE id = $1`,
		id, processed, newCount, checkpoint)
	return err
}

func (s *JobStore) MarkCompleted(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE fetch_jobs
		SET status = 'completed', stage = 'completed', finished_at = $2
		WHERE id = $1`,
		id, time.Now().UTC())
	return err
}

func (s *JobStore) MarkFailed(ctx context.Context, id, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE fetch_jobs
		SET status = 'failed', stage = 'failed', error_message = $2, finished_at = $3
		WHERE id = $1`,
		id, message, time.Now().UTC())
	return err
}
