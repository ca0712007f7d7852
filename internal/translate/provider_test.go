package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *HTTPProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewHTTPProvider(ProviderConfig{
		Name:    "test",
		BaseURL: srv.URL,
		APIKey:  "secret",
		Timeout: 5 * time.Second,
	})
}

func TestHTTPProvider_Translate(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/translate", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req translateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"привет"}, req.Texts)
		assert.Equal(t, "ru", req.SourceLang)
		assert.Equal(t, "en", req.TargetLang)
		assert.Equal(t, "standard", req.Model)

		json.NewEncoder(w).Encode(translateResponse{Texts: []string{"hello"}})
	})

	out, err := p.Translate(context.Background(), "привет", "ru", "en", "standard")
	assert.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestHTTPProvider_TranslateBatchJoinsAndSplits(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req translateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// The whole sub-batch travels as one separator-joined payload.
		require.Len(t, req.Texts, 1)
		parts := strings.Split(req.Texts[0], strings.TrimSpace(batchSeparator))
		assert.Len(t, parts, 3)

		json.NewEncoder(w).Encode(translateResponse{
			Texts: []string{"hello" + batchSeparator + "world" + batchSeparator + "sun"},
		})
	})

	out, err := p.TranslateBatch(context.Background(), []string{"привет", "мир", "солнце"}, "ru", "en", "standard")
	assert.NoError(t, err)
	assert.Equal(t, []string{"hello", "world", "sun"}, out)
}

func TestHTTPProvider_TranslateBatchMangledSeparator(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		// A vendor that swallows one separator: two segments come back.
		json.NewEncoder(w).Encode(translateResponse{
			Texts: []string{"hello world" + batchSeparator + "sun"},
		})
	})

	out, err := p.TranslateBatch(context.Background(), []string{"привет", "мир", "солнце"}, "ru", "en", "standard")
	assert.NoError(t, err)
	assert.Len(t, out, 2, "mismatch must surface as a short segment list")
}

func TestHTTPProvider_TranslateBatchEmpty(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty batch")
	})

	out, err := p.TranslateBatch(context.Background(), nil, "ru", "en", "standard")
	assert.NoError(t, err)
	assert.Nil(t, out)
}

func TestHTTPProvider_AuthErrorIsPermanent(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := p.Translate(context.Background(), "привет", "ru", "en", "standard")
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.False(t, perr.Temporary)
	assert.Equal(t, "test", perr.Provider)
}

func TestHTTPProvider_ServerErrorIsTemporary(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := p.Translate(context.Background(), "привет", "ru", "en", "standard")
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.True(t, perr.Temporary)
}
