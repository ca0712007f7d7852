package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ProviderError distinguishes auth/config failures (not retriable, no
// fallback helps the same provider) from transient ones (fallback
// eligible).
type ProviderError struct {
	Provider  string
	Temporary bool
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// HTTPProvider talks to one translation vendor behind a uniform REST
// contract.
type HTTPProvider struct {
	name       string
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

type ProviderConfig struct {
	Name    string
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewHTTPProvider(cfg ProviderConfig) *HTTPProvider {
	return &HTTPProvider{
		name: cfg.Name,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

func (p *HTTPProvider) Name() string {
	return p.name
}

type translateRequest struct {
	Texts      []string `json:"texts"`
	SourceLang string   `json:"source_lang"`
	TargetLang string   `json:"target_lang"`
	Model      string   `json:"model"`
}

type translateResponse struct {
	Texts []string `json:"texts"`
}

func (p *HTTPProvider) Translate(ctx context.Context, text, srcLang, dstLang, model string) (string, error) {
	out, err := p.call(ctx, []string{text}, srcLang, dstLang, model)
	if err != nil {
		return "", err
	}
	if len(out) != 1 {
		return "", &ProviderError{
			Provider:  p.name,
			Temporary: true,
			Err:       fmt.Errorf("expected 1 segment, got %d", len(out)),
		}
	}
	return out[0], nil
}

// batchSeparator joins a sub-batch into one payload. It must survive
// translation untouched, hence a bare unicode symbol on its own line.
const batchSeparator = "\n␞\n"

// TranslateBatch sends the whole sub-batch as one separator-joined payload
// and splits the response on the same separator. The segment count is the
// caller's to verify: a mangled separator shows up as a count mismatch,
// never as silently misaligned text.
func (p *HTTPProvider) TranslateBatch(ctx context.Context, texts []string, srcLang, dstLang, model string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out, err := p.call(ctx, []string{strings.Join(texts, batchSeparator)}, srcLang, dstLang, model)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, &ProviderError{
			Provider:  p.name,
			Temporary: true,
			Err:       fmt.Errorf("expected 1 payload, got %d", len(out)),
		}
	}

	segments := strings.Split(out[0], strings.TrimSpace(batchSeparator))
	for i := range segments {
		segments[i] = strings.TrimSpace(segments[i])
	}
	return segments, nil
}

func (p *HTTPProvider) call(ctx context.Context, texts []string, srcLang, dstLang, model string) ([]string, error) {
	body, err := json.Marshal(translateRequest{
		Texts:      texts,
		SourceLang: srcLang,
		TargetLang: dstLang,
		Model:      model,
	})
	if err != nil {
		return nil, &ProviderError{Provider: p.name, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: p.name, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.name, Temporary: true, Err: fmt.Errorf("execute request: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &ProviderError{Provider: p.name, Err: fmt.Errorf("auth rejected: status %d", resp.StatusCode)}
	default:
		return nil, &ProviderError{Provider: p.name, Temporary: true, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var out translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ProviderError{Provider: p.name, Temporary: true, Err: fmt.Errorf("decode response: %w", err)}
	}
	return out.Texts, nil
}
