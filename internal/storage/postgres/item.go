package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"channel_fetcher/internal/domain"
)

type ItemStore struct {
	db *sqlx.DB
}

func NewItemStore(db *sqlx.DB) *ItemStore {
	return &ItemStore{db: db}
}

// BulkInsert inserts a batch of items for one channel, silently skipping
// external ids already stored. Returns the number actually inserted.
func (s *ItemStore) BulkInsert(ctx context.Context, channelID int64, items []domain.Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	valueStrings := make([]string, 0, len(items))
	args := make([]any, 0, len(items)*5)
	for i, item := range items {
		base := i * 5
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5,
		))
		args = append(args,
			channelID,
			item.ExternalID,
			item.Text,
			item.MediaKind,
			item.PublishedAt,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO items (channel_id, external_id, text, media_kind, published_at)
		VALUES %s
		ON CONFLICT (channel_id, external_id) DO NOTHING`,
		strings.Join(valueStrings, ", "),
	)

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("bulk insert items: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count inserted items: %w", err)
	}
	return int(inserted), nil
}

// ExistingExternalIDs returns which of the given external ids are already
// stored for the channel.
func (s *ItemStore) ExistingExternalIDs(ctx context.Context, channelID int64, ids []int64) (map[int64]struct{}, error) {
	result := make(map[int64]struct{}, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT external_id FROM items WHERE channel_id = $1 AND external_id = ANY($2)`

	rows, err := s.db.QueryContext(ctx, query, channelID, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var extID int64
		if err := rows.Scan(&extID); err != nil {
			return nil, err
		}
		result[extID] = struct{}{}
	}

	return result, rows.Err()
}

// FindPendingTranslation returns stored items that have not been translated
// yet, newest first.
func (s *ItemStore) FindPendingTranslation(ctx context.Context, limit int) ([]domain.PendingItem, error) {
	query := `
		SELECT id, channel_id, text, published_at
		FROM items
		WHERE translated_at IS NULL AND text <> ''
		ORDER BY published_at DESC
		LIMIT $1`

	var pending []domain.PendingItem
	if err := s.db.SelectContext(ctx, &pending, query, limit); err != nil {
		return nil, err
	}
	return pending, nil
}

// MarkTranslationSkipped stamps an item whose text needs no translation, so
// it stops reappearing in the pending set.
func (s *ItemStore) MarkTranslationSkipped(ctx context.Context, itemID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE items SET translated_at = now() WHERE id = $1`, itemID)
	return err
}
