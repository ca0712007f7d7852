package domain

import "time"

// Channel is a tracked source on the external messaging platform.
type Channel struct {
	ID              int64      `db:"id"`
	Username        string     `db:"username"`
	ExternalID      int64      `db:"external_id"`
	Title           string     `db:"title"`
	Description     *string    `db:"description"`
	SubscriberCount int        `db:"subscriber_count"`
	LastFetchedAt   *time.Time `db:"last_fetched_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// Item is one ingested message from a channel.
type Item struct {
	ID          int64     `db:"id"`
	ChannelID   int64     `db:"channel_id"`
	ExternalID  int64     `db:"external_id"`
	Text        string    `db:"text"`
	MediaKind   *string   `db:"media_kind"`
	PublishedAt time.Time `db:"published_at"`
	CreatedAt   time.Time `db:"created_at"`
}
