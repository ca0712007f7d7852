// Package sweep runs the periodic background passes: translating items
// the ingestion side marked pending, and draining the join queue when the
// daily quota resets.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"channel_fetcher/internal/domain"
	"channel_fetcher/internal/events"
	"channel_fetcher/internal/translate"
)

//go:generate mockgen -source=sweep.go -destination=mocks/mocks.go -package=mocks

type PendingSource interface {
	FindPendingTranslation(ctx context.Context, limit int) ([]domain.PendingItem, error)
	MarkTranslationSkipped(ctx context.Context, itemID int64) error
}

type Translator interface {
	TranslateBatch(ctx context.Context, reqs []translate.Request) []translate.Outcome
}

type JoinDrainer interface {
	Drain(ctx context.Context, dailyLimit int) (int, error)
}

type EventPublisher interface {
	PublishItemTranslated(ctx context.Context, msg events.ItemTranslated) error
}

// Config holds sweep parameters.
type Config struct {
	Interval       time.Duration
	BatchLimit     int
	TargetLang     string
	JoinDailyLimit int
}

type Sweeper struct {
	cfg        Config
	pending    PendingSource
	translator Translator
	joins      JoinDrainer
	events     EventPublisher
	logger     *slog.Logger

	lastJoinDay string
}

func NewSweeper(
	cfg Config,
	pending PendingSource,
	translator Translator,
	joins JoinDrainer,
	eventPub EventPublisher,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		cfg:        cfg,
		pending:    pending,
		translator: translator,
		joins:      joins,
		events:     eventPub,
		logger:     logger.With("component", "sweep"),
	}
}

// Run executes sweeps on the configured interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("sweeper started", "interval", s.cfg.Interval)

	s.runOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	s.sweepTranslations(ctx)
	s.maybeDrainJoins(ctx)
}

// sweepTranslations translates one batch of pending items. The pipeline
// stores every successful translation durably before returning, so the
// event published here never races a stale read.
func (s *Sweeper) sweepTranslations(ctx context.Context) {
	rows, err := s.pending.FindPendingTranslation(ctx, s.cfg.BatchLimit)
	if err != nil {
		s.logger.Error("failed to load pending translations", "error", err)
		return
	}
	if len(rows) == 0 {
		return
	}

	now := time.Now()
	reqs := make([]translate.Request, len(rows))
	for i, row := range rows {
		reqs[i] = translate.Request{
			ItemID:     row.ItemID,
			Text:       row.Text,
			TargetLang: s.cfg.TargetLang,
			Age:        now.Sub(row.PublishedAt),
		}
	}

	outcomes := s.translator.TranslateBatch(ctx, reqs)

	translated, skipped := 0, 0
	for i, out := range outcomes {
		if !out.Translated {
			// Trivial text never translates; stamp it so the row stops
			// occupying the pending set. Failed items stay pending for
			// the next sweep.
			if out.Priority == domain.PrioritySkip {
				if err := s.pending.MarkTranslationSkipped(ctx, rows[i].ItemID); err != nil {
					s.logger.Warn("failed to stamp skipped item",
						"item_id", rows[i].ItemID,
						"error", err,
					)
				} else {
					skipped++
				}
			}
			continue
		}
		translated++

		if s.events == nil {
			continue
		}
		err := s.events.PublishItemTranslated(ctx, events.ItemTranslated{
			ItemID:     rows[i].ItemID,
			ChannelID:  rows[i].ChannelID,
			Text:       out.Text,
			SourceLang: out.SourceLang,
			TargetLang: s.cfg.TargetLang,
		})
		if err != nil {
			s.logger.Warn("failed to publish item.translated",
				"item_id", rows[i].ItemID,
				"error", err,
			)
		}
	}

	s.logger.Info("translation sweep finished",
		"pending", len(rows),
		"translated", translated,
		"skipped", skipped,
	)
}

// maybeDrainJoins drains the join queue once per UTC day, right after the
// quota counter has rolled over.
func (s *Sweeper) maybeDrainJoins(ctx context.Context) {
	if s.joins == nil {
		return
	}

	today := time.Now().UTC().Format("2006-01-02")
	if today == s.lastJoinDay {
		return
	}

	joined, err := s.joins.Drain(ctx, s.cfg.JoinDailyLimit)
	if err != nil {
		s.logger.Error("join queue drain failed", "error", err)
		return
	}
	s.lastJoinDay = today

	if joined > 0 {
		s.logger.Info("join queue drained", "joined", joined)
	}
}
