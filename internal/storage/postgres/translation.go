package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"channel_fetcher/internal/domain"
)

// TranslationStore is the durable, non-expiring translation-memory tier,
// keyed by (item_id, target_lang).
type TranslationStore struct {
	db *sqlx.DB
}

func NewTranslationStore(db *sqlx.DB) *TranslationStore {
	return &TranslationStore{db: db}
}

func (s *TranslationStore) Get(ctx context.Context, itemID int64, targetLang string) (*domain.Translation, error) {
	var tr domain.Translation
	query := `
		SELECT item_id, target_lang, source_lang, text, priority, translated_at
		FROM item_translations
		WHERE item_id = $1 AND target_lang = $2`

	err := s.db.GetContext(ctx, &tr, query, itemID, targetLang)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tr, nil
}

// Apply records a finished translation and stamps the item as translated,
// in one transaction-capable unit.
func (s *TranslationStore) Apply(ctx context.Context, tr *domain.Translation) error {
	exec := GetExecutor(ctx, s.db)

	_, err := exec.ExecContext(ctx, `
		INSERT INTO item_translations (item_id, target_lang, source_lang, text, priority)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (item_id, target_lang) DO UPDATE SET
			source_lang = EXCLUDED.source_lang,
			text = EXCLUDED.text,
			priority = EXCLUDED.priority,
			translated_at = now()`,
		tr.ItemID, tr.TargetLang, tr.SourceLang, tr.Text, tr.Priority,
	)
	if err != nil {
		return fmt.Errorf("upsert translation: %w", err)
	}

	_, err = exec.ExecContext(ctx,
		`UPDATE items SET translated_at = now() WHERE id = $1`, tr.ItemID)
	if err != nil {
		return fmt.Errorf("stamp item translated: %w", err)
	}
	return nil
}
