// Package classify implements the two-layer classifier: embedding
// similarity against precomputed category anchors when a provider is
// available, with a regex pattern fallback that always produces an answer.
package classify

import (
	"context"
	"log/slog"
	"math"

	"newsdesk/internal/domain"
	"newsdesk/internal/ports"
)

// Classifier scores and categorizes article batches. Anchors are computed
// once at construction; per-call embedding failures degrade silently to
// the regex layer.
type Classifier struct {
	provider ports.EmbeddingProvider
	specs    []domain.CategorySpec
	// anchors keep the configured category order; similarity ties
	// resolve to the earliest anchor.
	anchors      []domain.Anchor
	anchorMethod domain.ClassifyMethod
	fallback     *regexFallback
	logger       *slog.Logger
}

// New builds the classifier and computes category anchor vectors when the
// embedding provider is reachable; otherwise it starts regex-only.
func New(ctx context.Context, provider ports.EmbeddingProvider, specs []domain.CategorySpec, logger *slog.Logger) *Classifier {
	c := &Classifier{
		provider:     provider,
		specs:        specs,
		anchorMethod: domain.MethodRegex,
		fallback:     newRegexFallback(specs),
		logger:       logger,
	}
	c.initAnchors(ctx)
	return c
}

// AnchorMethod reports which layer anchors were built with.
func (c *Classifier) AnchorMethod() domain.ClassifyMethod {
	return c.anchorMethod
}

func (c *Classifier) initAnchors(ctx context.Context) {
	if c.provider == nil || len(c.specs) == 0 {
		return
	}

	texts := make([]string, len(c.specs))
	for i, spec := range c.specs {
		texts[i] = spec.Description
	}

	vectors, err := c.provider.Encode(ctx, texts)
	if err != nil || len(vectors) != len(c.specs) {
		c.logger.Warn("no anchor embeddings, regex-only classification", "error", err)
		return
	}

	c.anchors = make([]domain.Anchor, len(c.specs))
	for i, spec := range c.specs {
		c.anchors[i] = domain.Anchor{
			Category: spec.Name,
			Weight:   spec.Weight,
			Vector:   vectors[i],
		}
	}
	c.anchorMethod = domain.MethodEmbedding
	c.logger.Info("category anchors ready", "count", len(c.anchors))
}

// Process classifies and scores every article in the batch. It never
// fails: articles whose embedding could not be produced fall back to the
// regex layer.
func (c *Classifier) Process(ctx context.Context, articles []domain.Article) []domain.Article {
	if len(articles) == 0 {
		return articles
	}

	texts := make([]string, len(articles))
	for i, a := range articles {
		texts[i] = a.Title + " " + a.Summary
	}

	var embeddings [][]float32
	if c.anchorMethod == domain.MethodEmbedding {
		vecs, err := c.provider.Encode(ctx, texts)
		if err != nil {
			c.logger.Warn("batch embedding failed, falling back to regex", "error", err)
		} else {
			embeddings = vecs
		}
	}

	counts := map[domain.ClassifyMethod]int{}
	for i := range articles {
		var vec []float32
		if i < len(embeddings) {
			vec = embeddings[i]
		}

		if len(vec) > 0 && len(c.anchors) > 0 {
			cat, score := c.byEmbedding(vec)
			articles[i].Category = cat
			articles[i].Score = score
			articles[i].Method = domain.MethodEmbedding
			articles[i].Embedding = vec
		} else {
			cat, score := c.byRegex(texts[i])
			articles[i].Category = cat
			articles[i].Score = score
			articles[i].Method = domain.MethodRegex
			articles[i].Embedding = nil
		}
		counts[articles[i].Method]++
	}

	c.logger.Info("classification done",
		"articles", len(articles),
		"embedding", counts[domain.MethodEmbedding],
		"regex", counts[domain.MethodRegex])
	return articles
}

func (c *Classifier) byEmbedding(vec []float32) (string, float64) {
	bestCat := domain.CategoryGeneral
	bestSim := -1.0
	var bestWeight float64

	for _, anchor := range c.anchors {
		sim := domain.CosineSimilarity(vec, anchor.Vector)
		if sim > bestSim {
			bestSim = sim
			bestCat = anchor.Category
			bestWeight = anchor.Weight
		}
	}

	if bestCat == domain.CategoryNoise {
		return bestCat, domain.NoiseScore
	}
	return bestCat, round2(bestSim*10 + bestWeight)
}

func (c *Classifier) byRegex(text string) (string, float64) {
	cat, conf := c.fallback.classify(text)

	if cat == domain.CategoryNoise {
		return cat, domain.NoiseScore
	}

	var weight float64
	for _, spec := range c.specs {
		if spec.Name == cat {
			weight = spec.Weight
			break
		}
	}
	return cat, round2(5.0 + weight + conf*5.0)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
