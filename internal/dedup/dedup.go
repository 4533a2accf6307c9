// Package dedup rejects articles already seen (exact content hash) or
// topically identical to something accepted the same calendar day
// (vector similarity), persisting the survivors.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newsdesk/internal/domain"
	"newsdesk/internal/metrics"
	"newsdesk/internal/ports"
)

const dayLayout = "2006-01-02"

// Deduplicator filters a classified batch down to genuinely new articles
// and persists them. A missing similarity index degrades to hash-only
// dedup (fail-open).
type Deduplicator struct {
	store     ports.Store
	index     ports.SimilarityIndex
	threshold float64
	skipNoise bool
	now       func() time.Time
	logger    *slog.Logger
}

// Options tune dedup behavior per run.
type Options struct {
	SimilarityThreshold float64
	SkipNoise           bool
}

// New wires the durable store and the optional similarity index.
func New(store ports.Store, index ports.SimilarityIndex, opts Options, logger *slog.Logger) *Deduplicator {
	threshold := opts.SimilarityThreshold
	if threshold <= 0 {
		threshold = 0.85
	}
	return &Deduplicator{
		store:     store,
		index:     index,
		threshold: threshold,
		skipNoise: opts.SkipNoise,
		now:       time.Now,
		logger:    logger,
	}
}

// Filter drops known and same-day-similar articles, persists the rest,
// and returns the newly stored articles with IDs assigned.
func (d *Deduplicator) Filter(ctx context.Context, articles []domain.Article) ([]domain.Article, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	candidates := articles
	if d.skipNoise {
		candidates = make([]domain.Article, 0, len(articles))
		for _, a := range articles {
			if a.Category != domain.CategoryNoise {
				candidates = append(candidates, a)
			}
		}
	}

	hashes := make([]string, 0, len(candidates))
	for _, a := range candidates {
		if a.ContentHash != "" {
			hashes = append(hashes, a.ContentHash)
		}
	}

	existing, err := d.store.ExistingHashes(ctx, hashes)
	if err != nil {
		return nil, fmt.Errorf("check existing hashes: %w", err)
	}

	day := d.now().Format(dayLayout)
	var saved []domain.Article

	for _, a := range candidates {
		if existing[a.ContentHash] {
			metrics.DuplicatesDropped.WithLabelValues("hash").Inc()
			continue
		}
		if d.similarToday(ctx, a.Embedding, day) {
			metrics.DuplicatesDropped.WithLabelValues("similarity").Inc()
			d.logger.Debug("skipped same-day similar topic", "title", a.Title)
			continue
		}

		a.Status = domain.StatusPending
		inserted, err := d.store.InsertArticle(ctx, &a)
		if err != nil {
			// One bad row must not sink the batch.
			d.logger.Warn("insert failed", "hash", a.ContentHash, "error", err)
			continue
		}
		if !inserted {
			continue
		}

		d.indexEmbedding(ctx, a, day)
		saved = append(saved, a)
	}

	d.logger.Info("dedup done", "incoming", len(articles), "saved", len(saved))
	return saved, nil
}

// similarToday asks the index for the nearest same-day neighbor. Items on
// opposite sides of midnight are never compared: the day tag is a hard
// calendar boundary.
func (d *Deduplicator) similarToday(ctx context.Context, embedding []float32, day string) bool {
	if d.index == nil || len(embedding) == 0 {
		return false
	}

	distance, found, err := d.index.QueryNearest(ctx, embedding, day)
	if err != nil {
		d.logger.Debug("similarity query skipped", "error", err)
		return false
	}
	if !found {
		return false
	}

	// Cosine distance convention: similarity = 1 - distance.
	return 1.0-distance >= d.threshold
}

func (d *Deduplicator) indexEmbedding(ctx context.Context, a domain.Article, day string) {
	if d.index == nil || len(a.Embedding) == 0 {
		return
	}

	tags := ports.VectorTags{Day: day, Category: a.Category, ArticleID: a.ID}
	if err := d.index.Upsert(ctx, a.ContentHash, a.Embedding, tags); err != nil {
		d.logger.Warn("vector upsert failed", "hash", a.ContentHash, "error", err)
	}
}
