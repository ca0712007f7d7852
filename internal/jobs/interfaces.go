package jobs

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"channel_fetcher/internal/domain"
	"channel_fetcher/internal/events"
	"channel_fetcher/internal/platform"
)

type JobStore interface {
	Insert(ctx context.Context, job *domain.FetchJob) error
	Get(ctx context.Context, id string) (*domain.FetchJob, error)
	FindActive(ctx context.Context, channelID int64) (*domain.FetchJob, error)
	QueuedIDs(ctx context.Context) ([]string, error)
	RequeueStale(ctx context.Context) (int, error)
	MarkRunning(ctx context.Context, id string) error
	SetStage(ctx context.Context, id string, stage domain.JobStage) error
	RecordProgress(ctx context.Context, id string, processed, newCount int, checkpoint int64) error
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, message string) error
}

type ItemStore interface {
	BulkInsert(ctx context.Context, channelID int64, items []domain.Item) (int, error)
	ExistingExternalIDs(ctx context.Context, channelID int64, ids []int64) (map[int64]struct{}, error)
}

type ChannelStore interface {
	Upsert(ctx context.Context, ch *domain.Channel) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Channel, error)
	GetByUsername(ctx context.Context, username string) (*domain.Channel, error)
	TouchLastFetched(ctx context.Context, id int64, at time.Time) error
}

// Client is the slice of the platform API the fetch subsystem consumes.
// Satisfied by platform.Client implementations.
type Client interface {
	ResolveChannel(ctx context.Context, username string) (*platform.ChannelInfo, error)
	JoinChannel(ctx context.Context, username string) error
	FetchHistory(ctx context.Context, channelID int64, untilID int64, sinceDaysAgo, limit int) ([]platform.HistoryItem, error)
}

// TokenLimiter is the shared-quota gate for platform calls.
type TokenLimiter interface {
	AcquireWait(ctx context.Context, tokens float64, maxWait time.Duration) (bool, error)
	CanJoin(ctx context.Context, dailyLimit int) (bool, error)
	RecordJoin(ctx context.Context) (int64, error)
}

type EventPublisher interface {
	PublishJobProgress(ctx context.Context, msg events.JobProgress) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
