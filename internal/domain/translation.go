package domain

import "time"

// Priority decides whether and how eagerly an item is translated.
type Priority string

const (
	PrioritySkip   Priority = "skip"
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Translation is the durable per-item translation record.
type Translation struct {
	ItemID       int64     `db:"item_id"`
	TargetLang   string    `db:"target_lang"`
	SourceLang   string    `db:"source_lang"`
	Text         string    `db:"text"`
	Priority     Priority  `db:"priority"`
	TranslatedAt time.Time `db:"translated_at"`
}

// CachedTranslation is the shared cache tier's payload.
type CachedTranslation struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	Hits       int64  `json:"-"`
}

// PendingItem is an ingested item awaiting translation, as returned by the
// pending-translation query.
type PendingItem struct {
	ItemID      int64     `db:"id"`
	ChannelID   int64     `db:"channel_id"`
	Text        string    `db:"text"`
	PublishedAt time.Time `db:"published_at"`
}
