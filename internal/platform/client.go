package platform

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound means the username does not resolve to a channel.
	ErrNotFound = errors.New("channel not found")

	// ErrPrivateChannel means the channel exists but cannot be read.
	ErrPrivateChannel = errors.New("channel is private")

	// ErrInvalidUsername means the username is malformed.
	ErrInvalidUsername = errors.New("invalid channel username")
)

// QuotaError is the platform's backpressure signal. It is not a failure:
// callers pause for RetryAfter and resume from their checkpoint.
type QuotaError struct {
	RetryAfter time.Duration
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("platform quota exceeded, retry after %s", e.RetryAfter)
}

// AsQuota unwraps err into a QuotaError if one is in the chain.
func AsQuota(err error) (*QuotaError, bool) {
	var qe *QuotaError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}

// ChannelInfo is channel metadata as resolved by the platform.
type ChannelInfo struct {
	ExternalID      int64
	Title           string
	Description     string
	SubscriberCount int
}

// HistoryItem is one message pulled from a channel's history.
type HistoryItem struct {
	ExternalID  int64
	Text        string
	MediaKind   string
	PublishedAt time.Time
}

// Client is the opaque ingestion API. FetchHistory is a single cursor pull:
// it returns up to limit items strictly older than untilID (untilID 0 means
// newest first), newest to oldest, bounded to sinceDaysAgo when non-zero.
// An empty batch means the history is exhausted. All methods may return
// *QuotaError.
type Client interface {
	ResolveChannel(ctx context.Context, username string) (*ChannelInfo, error)
	JoinChannel(ctx context.Context, username string) error
	FetchHistory(ctx context.Context, channelID int64, untilID int64, sinceDaysAgo, limit int) ([]HistoryItem, error)
}
