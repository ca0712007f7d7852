package domain

import (
	"errors"
	"time"
)

// ErrActiveJobExists is returned on job creation when the channel already
// has a queued or running job.
var ErrActiveJobExists = errors.New("channel already has an active fetch job")

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Active reports whether a job still occupies its channel's single
// active-job slot.
func (s JobStatus) Active() bool {
	return s == JobStatusQueued || s == JobStatusRunning
}

type JobStage string

const (
	JobStageQueued    JobStage = "queued"
	JobStageInfo      JobStage = "info"
	JobStageFetching  JobStage = "fetching"
	JobStageSaving    JobStage = "saving"
	JobStageCompleted JobStage = "completed"
	JobStageFailed    JobStage = "failed"
)

// FetchJob is one ingestion request for one channel over an optional
// day-bounded window. Checkpoint holds the smallest external item id saved
// so far; the fetch resumes with "items older than Checkpoint" after any
// interruption, so a restart never re-fetches committed batches.
type FetchJob struct {
	ID                 string     `db:"id"`
	ChannelID          int64      `db:"channel_id"`
	LookbackDays       int        `db:"lookback_days"`
	Status             JobStatus  `db:"status"`
	Stage              JobStage   `db:"stage"`
	NewItemCount       int        `db:"new_item_count"`
	ProcessedItemCount int        `db:"processed_item_count"`
	Checkpoint         int64      `db:"checkpoint"`
	ErrorMessage       *string    `db:"error_message"`
	CreatedAt          time.Time  `db:"created_at"`
	StartedAt          *time.Time `db:"started_at"`
	FinishedAt         *time.Time `db:"finished_at"`
}

// JobStats summarizes one finished fetch job for logging.
type JobStats struct {
	JobID     string
	ChannelID int64
	Processed int
	New       int
	Batches   int
	Duration  time.Duration
}
