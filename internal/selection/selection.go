// Package selection picks a bounded, category-diverse subset of pending
// articles using a rotating priority order over categories.
package selection

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"newsdesk/internal/domain"
	"newsdesk/internal/ports"
)

// BaseOrder returns category names sorted by static priority ascending,
// excluding the noise category.
func BaseOrder(specs []domain.CategorySpec) []string {
	ordered := make([]domain.CategorySpec, 0, len(specs))
	for _, spec := range specs {
		if spec.Name == domain.CategoryNoise {
			continue
		}
		ordered = append(ordered, spec)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	names := make([]string, len(ordered))
	for i, spec := range ordered {
		names[i] = spec.Name
	}
	return names
}

// Rotate left-rotates order by lastIndex modulo its length, so each run
// starts the sweep on a different category.
func Rotate(order []string, lastIndex int64) []string {
	if len(order) == 0 {
		return order
	}
	idx := int(lastIndex % int64(len(order)))
	if idx < 0 {
		idx += len(order)
	}
	rotated := make([]string, 0, len(order))
	rotated = append(rotated, order[idx:]...)
	rotated = append(rotated, order[:idx]...)
	return rotated
}

// Selector reads per-category candidate pools from the store and applies
// round-robin diverse selection.
type Selector struct {
	store    ports.Store
	topN     int
	minScore float64
	logger   *slog.Logger
}

// New builds a selector; topN bounds each category's candidate pool.
func New(store ports.Store, topN int, minScore float64, logger *slog.Logger) *Selector {
	if topN <= 0 {
		topN = 25
	}
	return &Selector{store: store, topN: topN, minScore: minScore, logger: logger}
}

// Pick returns up to limit pending articles maximizing category
// diversity: one sweep of the rotated order per round, popping the
// current best from each non-empty bucket, then backfilling by score.
// Given identical store contents and rotation state the result is
// deterministic.
func (s *Selector) Pick(ctx context.Context, limit int, order []string) ([]domain.Article, error) {
	if limit <= 0 || len(order) == 0 {
		return nil, nil
	}

	buckets := make(map[string][]domain.Article, len(order))
	for _, cat := range order {
		pool, err := s.store.PendingByCategory(ctx, cat, s.minScore, s.topN)
		if err != nil {
			return nil, fmt.Errorf("load candidates for %s: %w", cat, err)
		}
		buckets[cat] = pool
	}

	var selected []domain.Article
	seen := map[int64]bool{}

	for len(selected) < limit && anyLeft(buckets) {
		picked := false
		for _, cat := range order {
			if len(selected) >= limit {
				break
			}
			if len(buckets[cat]) == 0 {
				continue
			}
			article := buckets[cat][0]
			buckets[cat] = buckets[cat][1:]
			if seen[article.ID] {
				continue
			}
			seen[article.ID] = true
			selected = append(selected, article)
			picked = true
		}
		if !picked {
			break
		}
	}

	// Backfill remaining slots from leftovers by score, ignoring category.
	if len(selected) < limit {
		var leftovers []domain.Article
		for _, cat := range order {
			for _, article := range buckets[cat] {
				if !seen[article.ID] {
					leftovers = append(leftovers, article)
				}
			}
		}
		sort.SliceStable(leftovers, func(i, j int) bool {
			return leftovers[i].Score > leftovers[j].Score
		})
		for _, article := range leftovers {
			if len(selected) >= limit {
				break
			}
			seen[article.ID] = true
			selected = append(selected, article)
		}
	}

	s.logger.Info("selection done", "selected", len(selected), "limit", limit)
	return selected, nil
}

func anyLeft(buckets map[string][]domain.Article) bool {
	for _, pool := range buckets {
		if len(pool) > 0 {
			return true
		}
	}
	return false
}
