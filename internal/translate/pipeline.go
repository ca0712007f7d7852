// Package translate implements the batching, prioritizing, multi-tier
// cached translation pipeline. It never returns an error for a single
// item: on provider failure it degrades to a fallback provider, then to
// passing the original text through, so translation can never block
// ingestion.
package translate

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"channel_fetcher/internal/domain"
)

// Config holds pipeline parameters.
type Config struct {
	PrimaryModel           string
	StandardModel          string
	MaxBatchItems          int
	MaxBatchChars          int
	MaxConcurrent          int
	RequestsPerSec         float64
	MemoryCacheSize        int
	QualityEscalationChars int
}

// Request is one item to translate. A zero ItemID means there is no
// durable identity for the text (ad hoc translation).
type Request struct {
	ItemID     int64
	Text       string
	SourceLang string // "" = detect
	TargetLang string
	Age        time.Duration
}

// Outcome always carries usable text: translated on success, the original
// on skip or total failure.
type Outcome struct {
	Text       string
	SourceLang string
	Priority   domain.Priority
	FromCache  bool
	Translated bool
}

type Pipeline struct {
	cfg      Config
	primary  Provider
	fallback Provider
	memory   *memoryCache
	shared   SharedCache
	store    TranslationStore
	limiter  *rate.Limiter
	logger   *slog.Logger
}

func NewPipeline(
	cfg Config,
	primary, fallback Provider,
	shared SharedCache,
	store TranslationStore,
	logger *slog.Logger,
) *Pipeline {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 1
	}
	if cfg.QualityEscalationChars <= 0 {
		cfg.QualityEscalationChars = 200
	}

	return &Pipeline{
		cfg:      cfg,
		primary:  primary,
		fallback: fallback,
		memory:   newMemoryCache(cfg.MemoryCacheSize),
		shared:   shared,
		store:    store,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), int(cfg.RequestsPerSec)+1),
		logger:   logger.With("component", "translate"),
	}
}

// Translate translates one item through the cache tiers and providers.
func (p *Pipeline) Translate(ctx context.Context, req Request) Outcome {
	src := req.SourceLang
	if src == "" {
		src = DetectLang(req.Text)
	}

	priority := ClassifyPriority(req.Text, src, req.TargetLang, req.Age)
	if priority == domain.PrioritySkip {
		return Outcome{Text: req.Text, SourceLang: src, Priority: priority}
	}

	if out, ok := p.cacheLookup(ctx, req, src, priority); ok {
		return out
	}

	model := p.selectModel(priority, src, req.TargetLang, req.Text)
	translated, err := p.callWithFallback(ctx, req.Text, src, req.TargetLang, model)
	if err != nil {
		// Last resort: the original text, untranslated.
		p.logger.Warn("translation degraded to pass-through",
			"item_id", req.ItemID,
			"error", err,
		)
		return Outcome{Text: req.Text, SourceLang: src, Priority: priority}
	}

	p.writeCaches(ctx, req, src, translated, priority)
	return Outcome{Text: translated, SourceLang: src, Priority: priority, Translated: true}
}

// TranslateBatch translates many items, preserving input order. Cache
// misses are grouped by (language, model) and packed into bounded
// sub-batches; a mismatched provider response falls back to individual
// calls rather than ever misaligning text.
func (p *Pipeline) TranslateBatch(ctx context.Context, reqs []Request) []Outcome {
	outcomes := make([]Outcome, len(reqs))

	type groupKey struct {
		src   string
		dst   string
		model string
	}
	misses := make(map[groupKey][]int)

	for i, req := range reqs {
		src := req.SourceLang
		if src == "" {
			src = DetectLang(req.Text)
		}

		priority := ClassifyPriority(req.Text, src, req.TargetLang, req.Age)
		outcomes[i] = Outcome{Text: req.Text, SourceLang: src, Priority: priority}
		if priority == domain.PrioritySkip {
			continue
		}

		if out, ok := p.cacheLookup(ctx, req, src, priority); ok {
			outcomes[i] = out
			continue
		}

		model := p.selectModel(priority, src, req.TargetLang, req.Text)
		key := groupKey{src: src, dst: req.TargetLang, model: model}
		misses[key] = append(misses[key], i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxConcurrent)

	for key, idxs := range misses {
		for _, sub := range p.packSubBatches(idxs, reqs) {
			g.Go(func() error {
				p.translateSubBatch(gctx, key.src, key.dst, key.model, sub, reqs, outcomes)
				return nil
			})
		}
	}
	_ = g.Wait()

	return outcomes
}

// packSubBatches splits indices into runs bounded by both item count and
// total character budget.
func (p *Pipeline) packSubBatches(idxs []int, reqs []Request) [][]int {
	var batches [][]int
	var current []int
	chars := 0

	for _, i := range idxs {
		n := len(reqs[i].Text)
		if len(current) > 0 &&
			(len(current) >= p.cfg.MaxBatchItems || chars+n > p.cfg.MaxBatchChars) {
			batches = append(batches, current)
			current = nil
			chars = 0
		}
		current = append(current, i)
		chars += n
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

func (p *Pipeline) translateSubBatch(ctx context.Context, src, dst, model string, sub []int, reqs []Request, outcomes []Outcome) {
	texts := make([]string, len(sub))
	for j, i := range sub {
		texts[j] = reqs[i].Text
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return
	}

	segments, err := p.primary.TranslateBatch(ctx, texts, src, dst, model)
	if err != nil || len(segments) != len(texts) {
		if err != nil {
			p.logger.Warn("sub-batch translation failed, retrying items individually",
				"size", len(texts),
				"error", err,
			)
		} else {
			p.logger.Warn("sub-batch segment count mismatch, retrying items individually",
				"expected", len(texts),
				"got", len(segments),
			)
		}
		p.fallbackIndividually(ctx, sub, reqs, outcomes)
		return
	}

	for j, i := range sub {
		p.writeCaches(ctx, reqs[i], src, segments[j], outcomes[i].Priority)
		outcomes[i].Text = segments[j]
		outcomes[i].Translated = true
	}
}

// fallbackIndividually re-translates each leftover item in parallel via
// the single-item path, which carries its own provider fallback chain.
func (p *Pipeline) fallbackIndividually(ctx context.Context, sub []int, reqs []Request, outcomes []Outcome) {
	g, gctx := errgroup.WithContext(ctx)
	for _, i := range sub {
		g.Go(func() error {
			outcomes[i] = p.Translate(gctx, reqs[i])
			return nil
		})
	}
	_ = g.Wait()
}

// cacheLookup checks the durable, shared, and in-process tiers in that
// order, promoting hits into the memory tier.
func (p *Pipeline) cacheLookup(ctx context.Context, req Request, src string, priority domain.Priority) (Outcome, bool) {
	key := CacheKey(req.Text, src, req.TargetLang)

	if req.ItemID != 0 && p.store != nil {
		tr, err := p.store.Get(ctx, req.ItemID, req.TargetLang)
		if err != nil {
			p.logger.Warn("durable tier lookup failed", "item_id", req.ItemID, "error", err)
		} else if tr != nil {
			p.memory.Put(key, tr.Text, tr.SourceLang)
			return Outcome{
				Text:       tr.Text,
				SourceLang: tr.SourceLang,
				Priority:   priority,
				FromCache:  true,
				Translated: true,
			}, true
		}
	}

	if p.shared != nil {
		cached, err := p.shared.Get(ctx, key)
		if err != nil {
			p.logger.Warn("shared tier lookup failed", "error", err)
		} else if cached != nil {
			p.memory.Put(key, cached.Text, cached.SourceLang)
			return Outcome{
				Text:       cached.Text,
				SourceLang: cached.SourceLang,
				Priority:   priority,
				FromCache:  true,
				Translated: true,
			}, true
		}
	}

	if text, cachedSrc, ok := p.memory.Get(key); ok {
		return Outcome{
			Text:       text,
			SourceLang: cachedSrc,
			Priority:   priority,
			FromCache:  true,
			Translated: true,
		}, true
	}

	return Outcome{}, false
}

// selectModel escalates high-priority items and tricky same-family
// language pairs to the stronger model.
func (p *Pipeline) selectModel(priority domain.Priority, src, dst, text string) string {
	if priority == domain.PriorityHigh {
		return p.cfg.PrimaryModel
	}
	if sameFamily(src, dst) && len([]rune(text)) >= p.cfg.QualityEscalationChars {
		return p.cfg.PrimaryModel
	}
	return p.cfg.StandardModel
}

func (p *Pipeline) callWithFallback(ctx context.Context, text, src, dst, model string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	translated, err := p.primary.Translate(ctx, text, src, dst, model)
	if err == nil {
		return translated, nil
	}
	if p.fallback == nil {
		return "", err
	}

	p.logger.Warn("primary provider failed, using fallback",
		"primary", p.primary.Name(),
		"fallback", p.fallback.Name(),
		"error", err,
	)

	if werr := p.limiter.Wait(ctx); werr != nil {
		return "", werr
	}
	translated, ferr := p.fallback.Translate(ctx, text, src, dst, p.cfg.StandardModel)
	if ferr != nil {
		return "", ferr
	}
	return translated, nil
}

// writeCaches persists a successful translation into every tier. Failures
// here are logged only: the translation itself already succeeded.
func (p *Pipeline) writeCaches(ctx context.Context, req Request, src, translated string, priority domain.Priority) {
	key := CacheKey(req.Text, src, req.TargetLang)

	if req.ItemID != 0 && p.store != nil {
		err := p.store.Apply(ctx, &domain.Translation{
			ItemID:     req.ItemID,
			TargetLang: req.TargetLang,
			SourceLang: src,
			Text:       translated,
			Priority:   priority,
		})
		if err != nil {
			p.logger.Error("failed to store durable translation",
				"item_id", req.ItemID,
				"error", err,
			)
		}
	}

	if p.shared != nil {
		err := p.shared.Put(ctx, key, domain.CachedTranslation{Text: translated, SourceLang: src})
		if err != nil {
			p.logger.Warn("failed to write shared cache", "error", err)
		}
	}

	p.memory.Put(key, translated, src)
}
