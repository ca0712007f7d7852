package jobs

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"channel_fetcher/internal/domain"
	"channel_fetcher/internal/jobs/mocks"
	"channel_fetcher/internal/platform"
)

type QueueTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	jobStore     *mocks.MockJobStore
	itemStore    *mocks.MockItemStore
	channelStore *mocks.MockChannelStore
	client       *mocks.MockClient
	limiter      *mocks.MockTokenLimiter
	txManager    *mocks.MockTransactionManager

	queue  *Queue
	cfg    Config
	logger *slog.Logger
}

func (s *QueueTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.jobStore = mocks.NewMockJobStore(s.ctrl)
	s.itemStore = mocks.NewMockItemStore(s.ctrl)
	s.channelStore = mocks.NewMockChannelStore(s.ctrl)
	s.client = mocks.NewMockClient(s.ctrl)
	s.limiter = mocks.NewMockTokenLimiter(s.ctrl)
	s.txManager = mocks.NewMockTransactionManager(s.ctrl)

	s.cfg = Config{
		PoolSize:        1,
		QueueDepth:      4,
		MaxConcurrent:   1,
		LockCapacity:    8,
		BatchSize:       20,
		AcquireMaxWait:  50 * time.Millisecond,
		QuotaBuffer:     0,
		MaxInfoRetries:  3,
		MaxFetchRetries: 2,
		RetryBackoff:    time.Millisecond,
	}

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.queue = NewQueue(
		s.cfg,
		s.jobStore,
		s.itemStore,
		s.channelStore,
		s.client,
		s.limiter,
		nil,
		s.txManager,
		s.logger,
	)
}

func (s *QueueTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestQueueTestSuite(t *testing.T) {
	suite.Run(t, new(QueueTestSuite))
}

func (s *QueueTestSuite) passthroughTx() {
	s.txManager.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	).AnyTimes()
}

// history builds a newest-first batch of items with ids high..low inclusive.
func history(high, low int64) []platform.HistoryItem {
	var batch []platform.HistoryItem
	for id := high; id >= low; id-- {
		batch = append(batch, platform.HistoryItem{
			ExternalID:  id,
			Text:        "msg",
			PublishedAt: time.Now(),
		})
	}
	return batch
}

func (s *QueueTestSuite) TestEnqueue_NewJob() {
	ctx := context.Background()

	s.jobStore.EXPECT().FindActive(ctx, int64(7)).Return(nil, nil)
	s.jobStore.EXPECT().Insert(ctx, gomock.Any()).Return(nil)

	job, err := s.queue.Enqueue(ctx, 7, 30)

	s.NoError(err)
	s.NotEmpty(job.ID)
	s.Equal(int64(7), job.ChannelID)
	s.Equal(30, job.LookbackDays)
	s.Equal(domain.JobStatusQueued, job.Status)

	select {
	case id := <-s.queue.dispatch:
		s.Equal(job.ID, id)
	default:
		s.Fail("job was not dispatched")
	}
}

func (s *QueueTestSuite) TestEnqueue_ReusesActiveJob() {
	ctx := context.Background()
	existing := &domain.FetchJob{ID: "job-1", ChannelID: 7, Status: domain.JobStatusRunning}

	s.jobStore.EXPECT().FindActive(ctx, int64(7)).Return(existing, nil)

	job, err := s.queue.Enqueue(ctx, 7, 30)

	s.NoError(err)
	s.Equal(existing, job)
	s.Empty(s.queue.dispatch)
}

func (s *QueueTestSuite) TestEnqueue_LosesCreationRace() {
	ctx := context.Background()
	winner := &domain.FetchJob{ID: "job-1", ChannelID: 7, Status: domain.JobStatusQueued}

	gomock.InOrder(
		s.jobStore.EXPECT().FindActive(ctx, int64(7)).Return(nil, nil),
		s.jobStore.EXPECT().Insert(ctx, gomock.Any()).Return(domain.ErrActiveJobExists),
		s.jobStore.EXPECT().FindActive(ctx, int64(7)).Return(winner, nil),
	)

	job, err := s.queue.Enqueue(ctx, 7, 30)

	s.NoError(err)
	s.Equal(winner, job)
}

// The fetch phase pulls 45 items in three batches, hits a quota pause after
// the second, and resumes from the committed checkpoint to finish.
func (s *QueueTestSuite) TestRunJob_BatchesAndQuotaPause() {
	ctx := context.Background()
	job := &domain.FetchJob{
		ID:           "job-1",
		ChannelID:    7,
		LookbackDays: 30,
		Status:       domain.JobStatusQueued,
		Stage:        domain.JobStageQueued,
	}
	ch := &domain.Channel{ID: 7, Username: "acme"}

	s.jobStore.EXPECT().MarkRunning(ctx, "job-1").Return(nil)
	s.channelStore.EXPECT().Get(ctx, int64(7)).Return(ch, nil)

	s.limiter.EXPECT().AcquireWait(ctx, float64(1), s.cfg.AcquireMaxWait).Return(true, nil).AnyTimes()

	s.client.EXPECT().ResolveChannel(ctx, "acme").Return(&platform.ChannelInfo{
		ExternalID:      555,
		Title:           "Acme",
		SubscriberCount: 1200,
	}, nil)
	s.channelStore.EXPECT().Upsert(ctx, ch).Return(int64(7), nil)
	s.jobStore.EXPECT().SetStage(ctx, "job-1", domain.JobStageFetching).Return(nil)

	gomock.InOrder(
		s.client.EXPECT().FetchHistory(ctx, int64(555), int64(0), 30, 20).Return(history(100, 81), nil),
		s.client.EXPECT().FetchHistory(ctx, int64(555), int64(81), 30, 20).Return(history(80, 61), nil),
		s.client.EXPECT().FetchHistory(ctx, int64(555), int64(61), 30, 20).
			Return(nil, &platform.QuotaError{RetryAfter: 10 * time.Millisecond}),
		s.client.EXPECT().FetchHistory(ctx, int64(555), int64(61), 30, 20).Return(history(60, 56), nil),
		s.client.EXPECT().FetchHistory(ctx, int64(555), int64(56), 30, 20).Return(nil, nil),
	)

	s.itemStore.EXPECT().ExistingExternalIDs(ctx, int64(7), gomock.Any()).
		Return(map[int64]struct{}{}, nil).Times(3)
	s.passthroughTx()
	s.itemStore.EXPECT().BulkInsert(ctx, int64(7), gomock.Len(20)).Return(20, nil).Times(2)
	s.itemStore.EXPECT().BulkInsert(ctx, int64(7), gomock.Len(5)).Return(5, nil)

	gomock.InOrder(
		s.jobStore.EXPECT().RecordProgress(ctx, "job-1", 20, 20, int64(81)).Return(nil),
		s.jobStore.EXPECT().RecordProgress(ctx, "job-1", 40, 40, int64(61)).Return(nil),
		s.jobStore.EXPECT().RecordProgress(ctx, "job-1", 45, 45, int64(56)).Return(nil),
	)

	s.jobStore.EXPECT().MarkCompleted(ctx, "job-1").Return(nil)
	s.channelStore.EXPECT().TouchLastFetched(ctx, int64(7), gomock.Any()).Return(nil)

	s.queue.runJob(ctx, job, s.logger)
}

func (s *QueueTestSuite) TestRunJob_ResumesFromCheckpoint() {
	ctx := context.Background()
	job := &domain.FetchJob{
		ID:                 "job-1",
		ChannelID:          7,
		LookbackDays:       30,
		Status:             domain.JobStatusQueued,
		Stage:              domain.JobStageFetching,
		Checkpoint:         81,
		ProcessedItemCount: 20,
		NewItemCount:       20,
	}
	ch := &domain.Channel{ID: 7, Username: "acme"}

	s.jobStore.EXPECT().MarkRunning(ctx, "job-1").Return(nil)
	s.channelStore.EXPECT().Get(ctx, int64(7)).Return(ch, nil)
	s.limiter.EXPECT().AcquireWait(ctx, float64(1), s.cfg.AcquireMaxWait).Return(true, nil).AnyTimes()

	s.client.EXPECT().ResolveChannel(ctx, "acme").Return(&platform.ChannelInfo{ExternalID: 555}, nil)
	s.channelStore.EXPECT().Upsert(ctx, ch).Return(int64(7), nil)
	s.jobStore.EXPECT().SetStage(ctx, "job-1", domain.JobStageFetching).Return(nil)

	// The resumed cursor must be the persisted checkpoint, not zero.
	s.client.EXPECT().FetchHistory(ctx, int64(555), int64(81), 30, 20).Return(nil, nil)

	s.jobStore.EXPECT().MarkCompleted(ctx, "job-1").Return(nil)
	s.channelStore.EXPECT().TouchLastFetched(ctx, int64(7), gomock.Any()).Return(nil)

	s.queue.runJob(ctx, job, s.logger)
}

func (s *QueueTestSuite) TestRunJob_SkipsExistingItems() {
	ctx := context.Background()
	job := &domain.FetchJob{
		ID:           "job-1",
		ChannelID:    7,
		LookbackDays: 0,
		Status:       domain.JobStatusQueued,
	}
	ch := &domain.Channel{ID: 7, Username: "acme"}

	s.jobStore.EXPECT().MarkRunning(ctx, "job-1").Return(nil)
	s.channelStore.EXPECT().Get(ctx, int64(7)).Return(ch, nil)
	s.limiter.EXPECT().AcquireWait(ctx, float64(1), s.cfg.AcquireMaxWait).Return(true, nil).AnyTimes()

	s.client.EXPECT().ResolveChannel(ctx, "acme").Return(&platform.ChannelInfo{ExternalID: 555}, nil)
	s.channelStore.EXPECT().Upsert(ctx, ch).Return(int64(7), nil)
	s.jobStore.EXPECT().SetStage(ctx, "job-1", domain.JobStageFetching).Return(nil)

	gomock.InOrder(
		s.client.EXPECT().FetchHistory(ctx, int64(555), int64(0), 0, 20).Return(history(12, 10), nil),
		s.client.EXPECT().FetchHistory(ctx, int64(555), int64(10), 0, 20).Return(nil, nil),
	)

	s.itemStore.EXPECT().ExistingExternalIDs(ctx, int64(7), []int64{12, 11, 10}).
		Return(map[int64]struct{}{11: {}}, nil)
	s.passthroughTx()
	s.itemStore.EXPECT().BulkInsert(ctx, int64(7), gomock.Len(2)).Return(2, nil)
	s.jobStore.EXPECT().RecordProgress(ctx, "job-1", 3, 2, int64(10)).Return(nil)

	s.jobStore.EXPECT().MarkCompleted(ctx, "job-1").Return(nil)
	s.channelStore.EXPECT().TouchLastFetched(ctx, int64(7), gomock.Any()).Return(nil)

	s.queue.runJob(ctx, job, s.logger)
}

func (s *QueueTestSuite) TestRunJob_InfoPhaseSentinelFailsJob() {
	ctx := context.Background()
	job := &domain.FetchJob{ID: "job-1", ChannelID: 7, Status: domain.JobStatusQueued}
	ch := &domain.Channel{ID: 7, Username: "gone"}

	s.jobStore.EXPECT().MarkRunning(ctx, "job-1").Return(nil)
	s.channelStore.EXPECT().Get(ctx, int64(7)).Return(ch, nil)
	s.limiter.EXPECT().AcquireWait(ctx, float64(1), s.cfg.AcquireMaxWait).Return(true, nil)

	// Sentinel errors are permanent; no retry attempts follow.
	s.client.EXPECT().ResolveChannel(ctx, "gone").Return(nil, platform.ErrNotFound)

	s.jobStore.EXPECT().MarkFailed(ctx, "job-1", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, message string) error {
			s.Contains(message, "channel not found")
			return nil
		},
	)

	s.queue.runJob(ctx, job, s.logger)
}

func (s *QueueTestSuite) TestRunJob_TransientFetchRetriesExhausted() {
	ctx := context.Background()
	job := &domain.FetchJob{ID: "job-1", ChannelID: 7, Status: domain.JobStatusQueued}
	ch := &domain.Channel{ID: 7, Username: "acme"}

	s.jobStore.EXPECT().MarkRunning(ctx, "job-1").Return(nil)
	s.channelStore.EXPECT().Get(ctx, int64(7)).Return(ch, nil)
	s.limiter.EXPECT().AcquireWait(ctx, float64(1), s.cfg.AcquireMaxWait).Return(true, nil).AnyTimes()

	s.client.EXPECT().ResolveChannel(ctx, "acme").Return(&platform.ChannelInfo{ExternalID: 555}, nil)
	s.channelStore.EXPECT().Upsert(ctx, ch).Return(int64(7), nil)
	s.jobStore.EXPECT().SetStage(ctx, "job-1", domain.JobStageFetching).Return(nil)

	// MaxFetchRetries is 2, so the third consecutive failure is terminal.
	s.client.EXPECT().FetchHistory(ctx, int64(555), int64(0), 0, 20).
		Return(nil, errors.New("connection reset")).Times(3)

	s.jobStore.EXPECT().MarkFailed(ctx, "job-1", gomock.Any()).Return(nil)

	s.queue.runJob(ctx, job, s.logger)
}

func (s *QueueTestSuite) TestRunJob_MissingChannelFailsJob() {
	ctx := context.Background()
	job := &domain.FetchJob{ID: "job-1", ChannelID: 7, Status: domain.JobStatusQueued}

	s.jobStore.EXPECT().MarkRunning(ctx, "job-1").Return(nil)
	s.channelStore.EXPECT().Get(ctx, int64(7)).Return(nil, nil)
	s.jobStore.EXPECT().MarkFailed(ctx, "job-1", "channel no longer exists").Return(nil)

	s.queue.runJob(ctx, job, s.logger)
}
