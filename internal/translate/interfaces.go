package translate

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"channel_fetcher/internal/domain"
)

// Provider is one external text-transformation vendor.
type Provider interface {
	Name() string
	Translate(ctx context.Context, text, srcLang, dstLang, model string) (string, error)
	TranslateBatch(ctx context.Context, texts []string, srcLang, dstLang, model string) ([]string, error)
}

// SharedCache is the cross-process cache tier.
type SharedCache interface {
	Get(ctx context.Context, key string) (*domain.CachedTranslation, error)
	Put(ctx context.Context, key string, val domain.CachedTranslation) error
}

// TranslationStore is the durable translation-memory tier.
type TranslationStore interface {
	Get(ctx context.Context, itemID int64, targetLang string) (*domain.Translation, error)
	Apply(ctx context.Context, tr *domain.Translation) error
}
