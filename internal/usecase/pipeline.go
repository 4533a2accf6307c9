// Package usecase orchestrates one full run: fetch, classify, dedup,
// select, approve, publish.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"newsdesk/internal/approval"
	"newsdesk/internal/dedup"
	"newsdesk/internal/domain"
	"newsdesk/internal/metrics"
	"newsdesk/internal/ports"
	"newsdesk/internal/selection"
)

// Classifier assigns a category and score to each candidate.
type Classifier interface {
	Process(ctx context.Context, articles []domain.Article) []domain.Article
}

// Approver runs the approval and publish phases over selected articles.
type Approver interface {
	Run(ctx context.Context, articles []domain.Article) approval.Summary
}

// PipelineDeps wires all driven adapters into the run pipeline.
type PipelineDeps struct {
	Source     ports.FeedSource
	Store      ports.Store
	Classifier Classifier
	Dedup      *dedup.Deduplicator
	Selector   *selection.Selector
	Approver   Approver
	Specs      []domain.CategorySpec
	Logger     *slog.Logger
}

// Pipeline implements the ingestion-to-publish workflow.
type Pipeline struct {
	source     ports.FeedSource
	store      ports.Store
	classifier Classifier
	dedup      *dedup.Deduplicator
	selector   *selection.Selector
	approver   Approver
	specs      []domain.CategorySpec
	logger     *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		source:     deps.Source,
		store:      deps.Store,
		classifier: deps.Classifier,
		dedup:      deps.Dedup,
		selector:   deps.Selector,
		approver:   deps.Approver,
		specs:      deps.Specs,
		logger:     deps.Logger,
	}
}

// RunOptions tune one run.
type RunOptions struct {
	// Limit caps how many articles reach approval this run.
	Limit int
	// Live persists and publishes; false simulates selection in memory
	// without touching the store or any destination.
	Live bool
	// KeepNoise lets NOISE-classified articles through for inspection.
	KeepNoise bool
}

// RunReport summarizes what one run did.
type RunReport struct {
	RunID    string
	Fetched  int
	Fresh    int
	Picked   []domain.Article
	Approval approval.Summary
}

// Run executes one full pipeline pass.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (RunReport, error) {
	started := time.Now()
	defer func() {
		metrics.RunDuration.Observe(time.Since(started).Seconds())
	}()

	report := RunReport{RunID: uuid.NewString()}
	logger := p.logger.With("run_id", report.RunID)
	logger.Info("pipeline run starting", "live", opts.Live, "limit", opts.Limit)

	candidates, err := p.source.Fetch(ctx)
	if err != nil {
		return report, fmt.Errorf("fetch feeds: %w", err)
	}
	report.Fetched = len(candidates)
	metrics.ArticlesFetched.Add(float64(len(candidates)))

	classified := p.classifier.Process(ctx, candidates)
	for _, a := range classified {
		metrics.ArticlesClassified.WithLabelValues(string(a.Method), a.Category).Inc()
	}

	rotation, err := p.store.Rotation(ctx)
	if err != nil {
		return report, fmt.Errorf("read rotation: %w", err)
	}
	order := selection.Rotate(selection.BaseOrder(p.specs), rotation.LastIndex)

	if !opts.Live {
		report.Picked = simulateSelection(classified, order, opts)
		logger.Info("dry run complete", "fetched", report.Fetched, "picked", len(report.Picked))
		return report, nil
	}

	fresh, err := p.dedup.Filter(ctx, classified)
	if err != nil {
		return report, fmt.Errorf("deduplicate: %w", err)
	}
	report.Fresh = len(fresh)

	picked, err := p.selector.Pick(ctx, opts.Limit, order)
	if err != nil {
		return report, fmt.Errorf("select articles: %w", err)
	}
	report.Picked = picked
	metrics.ArticlesSelected.Add(float64(len(picked)))

	if len(picked) > 0 {
		ids := make([]int64, len(picked))
		for i, a := range picked {
			ids[i] = a.ID
		}
		if err := p.store.UpdateStatus(ctx, ids, domain.StatusSelected); err != nil {
			return report, fmt.Errorf("mark selected: %w", err)
		}

		report.Approval = p.approver.Run(ctx, picked)
		metrics.Decisions.WithLabelValues("approved").Add(float64(report.Approval.Approved))
		metrics.Decisions.WithLabelValues("skipped").Add(float64(report.Approval.Skipped))
	}

	if err := p.store.AdvanceRotation(ctx); err != nil {
		return report, fmt.Errorf("advance rotation: %w", err)
	}

	logger.Info("pipeline run complete",
		"fetched", report.Fetched, "fresh", report.Fresh, "picked", len(report.Picked),
		"approved", report.Approval.Approved, "published", report.Approval.Published)
	return report, nil
}

// simulateSelection applies the diversity pass over in-memory candidates
// so a dry run shows what a live run would pick, without store writes.
func simulateSelection(articles []domain.Article, order []string, opts RunOptions) []domain.Article {
	buckets := make(map[string][]domain.Article, len(order))
	for _, a := range articles {
		if a.Category == domain.CategoryNoise && !opts.KeepNoise {
			continue
		}
		buckets[a.Category] = append(buckets[a.Category], a)
	}
	for cat := range buckets {
		sort.SliceStable(buckets[cat], func(i, j int) bool {
			return buckets[cat][i].Score > buckets[cat][j].Score
		})
	}

	limit := opts.Limit
	var picked []domain.Article
	for len(picked) < limit {
		advanced := false
		for _, cat := range order {
			if len(picked) >= limit {
				break
			}
			if len(buckets[cat]) == 0 {
				continue
			}
			picked = append(picked, buckets[cat][0])
			buckets[cat] = buckets[cat][1:]
			advanced = true
		}
		if !advanced {
			break
		}
	}
	return picked
}
