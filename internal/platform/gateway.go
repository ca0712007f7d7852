package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Gateway is an HTTP implementation of Client against a platform gateway
// service. Quota responses (429) are surfaced as *QuotaError and never
// retried here; transient failures are retried with exponential backoff.
type Gateway struct {
	httpClient     *http.Client
	baseURL        string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// GatewayConfig holds gateway client configuration.
type GatewayConfig struct {
	BaseURL        string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewGateway(cfg GatewayConfig, logger *slog.Logger) *Gateway {
	return &Gateway{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        cfg.BaseURL,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("component", "platform"),
	}
}

func (g *Gateway) ResolveChannel(ctx context.Context, username string) (*ChannelInfo, error) {
	u := fmt.Sprintf("%s/channels/%s", g.baseURL, url.PathEscape(username))

	var resp channelResponse
	if err := g.getWithRetry(ctx, u, &resp); err != nil {
		return nil, err
	}

	return &ChannelInfo{
		ExternalID:      resp.ID,
		Title:           resp.Title,
		Description:     resp.Description,
		SubscriberCount: resp.SubscriberCount,
	}, nil
}

func (g *Gateway) JoinChannel(ctx context.Context, username string) error {
	u := fmt.Sprintf("%s/channels/%s/join", g.baseURL, url.PathEscape(username))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return g.decodeError(resp)
	}
	return nil
}

func (g *Gateway) FetchHistory(ctx context.Context, channelID int64, untilID int64, sinceDaysAgo, limit int) ([]HistoryItem, error) {
	u := fmt.Sprintf("%s/channels/%d/history?limit=%d", g.baseURL, channelID, limit)
	if untilID > 0 {
		u += fmt.Sprintf("&until_id=%d", untilID)
	}
	if sinceDaysAgo > 0 {
		u += fmt.Sprintf("&since_days=%d", sinceDaysAgo)
	}

	var resp historyResponse
	if err := g.getWithRetry(ctx, u, &resp); err != nil {
		return nil, err
	}

	items := make([]HistoryItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		publishedAt, err := time.Parse(time.RFC3339, it.PublishedAt)
		if err != nil {
			// Keep the item with a zero time rather than dropping it;
			// the checkpoint advances past its id either way, so a drop
			// would exclude it from ingestion permanently.
			g.logger.Warn("failed to parse published_at",
				"external_id", it.ID,
				"published_at", it.PublishedAt,
			)
			publishedAt = time.Time{}
		}
		items = append(items, HistoryItem{
			ExternalID:  it.ID,
			Text:        it.Text,
			MediaKind:   it.MediaKind,
			PublishedAt: publishedAt,
		})
	}
	return items, nil
}

// getWithRetry retries transient failures only. Quota and invalid-input
// errors pass through on the first occurrence.
func (g *Gateway) getWithRetry(ctx context.Context, u string, out any) error {
	var err error

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		err = g.doGet(ctx, u, out)
		if err == nil {
			return nil
		}
		if !retriable(err) {
			return err
		}
		if attempt == g.maxAttempts {
			break
		}

		backoff := g.calculateBackoff(attempt)
		g.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("after %d attempts: %w", g.maxAttempts, err)
}

func (g *Gateway) doGet(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return g.decodeError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (g *Gateway) decodeError(resp *http.Response) error {
	var body errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		retryAfter := time.Duration(body.RetryAfter) * time.Second
		if retryAfter <= 0 {
			retryAfter = time.Minute
		}
		return &QuotaError{RetryAfter: retryAfter}
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusForbidden:
		return ErrPrivateChannel
	case http.StatusBadRequest:
		return ErrInvalidUsername
	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body.Message)
	}
}

func (g *Gateway) calculateBackoff(attempt int) time.Duration {
	backoff := g.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > g.maxBackoff {
		backoff = g.maxBackoff
	}
	return backoff
}

// retriable reports whether an error is a transient failure worth another
// attempt. Quota signals and caller errors are not.
func retriable(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := AsQuota(err); ok {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrPrivateChannel) || errors.Is(err, ErrInvalidUsername) {
		return false
	}
	return true
}
