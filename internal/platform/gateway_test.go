package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, handler http.Handler) *Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewGateway(GatewayConfig{
		BaseURL:        srv.URL,
		Timeout:        5 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
	}, logger)
}

func TestGateway_ResolveChannel(t *testing.T) {
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/channels/acme", r.URL.Path)
		json.NewEncoder(w).Encode(channelResponse{
			ID:              555,
			Title:           "Acme News",
			Description:     "daily updates",
			SubscriberCount: 1200,
		})
	}))

	info, err := g.ResolveChannel(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, int64(555), info.ExternalID)
	assert.Equal(t, "Acme News", info.Title)
	assert.Equal(t, "daily updates", info.Description)
	assert.Equal(t, 1200, info.SubscriberCount)
}

func TestGateway_ResolveChannelSentinels(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusForbidden, ErrPrivateChannel},
		{http.StatusBadRequest, ErrInvalidUsername},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			var calls atomic.Int32
			g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))

			_, err := g.ResolveChannel(context.Background(), "acme")
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, int32(1), calls.Load(), "sentinel errors must not be retried")
		})
	}
}

func TestGateway_QuotaErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(errorResponse{Code: "quota_exceeded", RetryAfter: 120})
	}))

	_, err := g.FetchHistory(context.Background(), 555, 0, 0, 20)
	require.Error(t, err)

	quota, ok := AsQuota(err)
	require.True(t, ok)
	assert.Equal(t, 2*time.Minute, quota.RetryAfter)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGateway_QuotaErrorDefaultRetryAfter(t *testing.T) {
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := g.FetchHistory(context.Background(), 555, 0, 0, 20)
	quota, ok := AsQuota(err)
	require.True(t, ok)
	assert.Equal(t, time.Minute, quota.RetryAfter)
}

func TestGateway_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(channelResponse{ID: 555, Title: "Acme"})
	}))

	info, err := g.ResolveChannel(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, int64(555), info.ExternalID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGateway_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := g.ResolveChannel(context.Background(), "acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), calls.Load())
}

func TestGateway_FetchHistoryCursorParams(t *testing.T) {
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/channels/555/history", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "20", q.Get("limit"))
		assert.Equal(t, "81", q.Get("until_id"))
		assert.Equal(t, "30", q.Get("since_days"))

		json.NewEncoder(w).Encode(historyResponse{
			Items: []historyItem{
				{ID: 80, Text: "newer", PublishedAt: "2026-08-30T12:00:00Z"},
				{ID: 79, Text: "older", MediaKind: "photo", PublishedAt: "2026-08-30T11:00:00Z"},
			},
		})
	}))

	items, err := g.FetchHistory(context.Background(), 555, 81, 30, 20)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(80), items[0].ExternalID)
	assert.Equal(t, "photo", items[1].MediaKind)
	assert.Equal(t, 2026, items[0].PublishedAt.Year())
}

func TestGateway_FetchHistoryOmitsZeroCursor(t *testing.T) {
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.False(t, q.Has("until_id"))
		assert.False(t, q.Has("since_days"))
		json.NewEncoder(w).Encode(historyResponse{})
	}))

	items, err := g.FetchHistory(context.Background(), 555, 0, 0, 20)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestGateway_FetchHistoryKeepsUnparseableTimestamps(t *testing.T) {
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(historyResponse{
			Items: []historyItem{
				{ID: 80, Text: "good", PublishedAt: "2026-08-30T12:00:00Z"},
				{ID: 79, Text: "bad", PublishedAt: "yesterday"},
			},
		})
	}))

	// A broken timestamp must not drop the item: the caller's checkpoint
	// advances past its id regardless.
	items, err := g.FetchHistory(context.Background(), 555, 0, 0, 20)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(80), items[0].ExternalID)
	assert.False(t, items[0].PublishedAt.IsZero())
	assert.Equal(t, int64(79), items[1].ExternalID)
	assert.True(t, items[1].PublishedAt.IsZero())
}

func TestGateway_JoinChannel(t *testing.T) {
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/channels/acme/join", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))

	assert.NoError(t, g.JoinChannel(context.Background(), "acme"))
}

func TestGateway_JoinChannelQuota(t *testing.T) {
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(errorResponse{RetryAfter: 3600})
	}))

	err := g.JoinChannel(context.Background(), "acme")
	quota, ok := AsQuota(err)
	require.True(t, ok)
	assert.Equal(t, time.Hour, quota.RetryAfter)
}
