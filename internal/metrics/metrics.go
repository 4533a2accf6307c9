// Package metrics exposes pipeline counters for Prometheus scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ArticlesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsdesk_articles_fetched_total",
		Help: "Articles pulled from feeds before any filtering.",
	})

	ArticlesClassified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdesk_articles_classified_total",
		Help: "Articles classified, labeled by method and category.",
	}, []string{"method", "category"})

	DuplicatesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdesk_duplicates_dropped_total",
		Help: "Candidates dropped by deduplication, labeled by reason.",
	}, []string{"reason"})

	ArticlesSelected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsdesk_articles_selected_total",
		Help: "Articles picked for a run by the selector.",
	})

	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdesk_approval_decisions_total",
		Help: "Approval decisions recorded, labeled by outcome.",
	}, []string{"outcome"})

	Publishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdesk_publishes_total",
		Help: "Destination deliveries, labeled by destination and status.",
	}, []string{"destination", "status"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "newsdesk_run_duration_seconds",
		Help:    "Wall time of one full pipeline run.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
