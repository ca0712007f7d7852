package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"channel_fetcher/internal/domain"
)

type ChannelStore struct {
	db *sqlx.DB
}

func NewChannelStore(db *sqlx.DB) *ChannelStore {
	return &ChannelStore{db: db}
}

// Upsert stores or refreshes channel metadata by username and returns the
// channel's row id.
func (s *ChannelStore) Upsert(ctx context.Context, ch *domain.Channel) (int64, error) {
	query := `
		INSERT INTO channels (username, external_id, title, description, subscriber_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (username) DO UPDATE SET
			external_id = EXCLUDED.external_id,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			subscriber_count = EXCLUDED.subscriber_count,
			updated_at = now()
		RETURNING id`

	var id int64
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		ch.Username,
		ch.ExternalID,
		ch.Title,
		ch.Description,
		ch.SubscriberCount,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *ChannelStore) Get(ctx context.Context, id int64) (*domain.Channel, error) {
	var ch domain.Channel
	query := `
		SELECT id, username, external_id, title, description, subscriber_count,
		       last_fetched_at, created_at, updated_at
		FROM channels
		WHERE id = $1`

	err := s.db.GetContext(ctx, &ch, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (s *ChannelStore) GetByUsername(ctx context.Context, username string) (*domain.Channel, error) {
	var ch domain.Channel
	query := `
		SELECT id, username, external_id, title, description, subscriber_count,
		       last_fetched_at, created_at, updated_at
		FROM channels
		WHERE lower(username) = lower($1)`

	err := s.db.GetContext(ctx, &ch, query, username)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// TouchLastFetched stamps a successful fetch completion.
func (s *ChannelStore) TouchLastFetched(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE channels SET last_fetched_at = $2, updated_at = now() WHERE id = $1`,
		id, at,
	)
	return err
}
