// Package feed pulls candidate articles from RSS/Atom feeds. Feeds are
// fetched by a bounded worker pool; one broken feed never fails the run.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"newsdesk/internal/domain"
	"newsdesk/internal/ports"
)

// Source fetches and normalizes articles from a fixed feed list.
type Source struct {
	urls    []string
	workers int
	maxAge  time.Duration
	now     func() time.Time
	parser  *gofeed.Parser
	logger  *slog.Logger
}

var _ ports.FeedSource = (*Source)(nil)

// New builds a source over the given feed URLs. workers bounds parallel
// fetches; maxAge drops items older than the window.
func New(urls []string, workers int, maxAge time.Duration, logger *slog.Logger) *Source {
	if workers <= 0 {
		workers = 4
	}
	parser := gofeed.NewParser()
	parser.UserAgent = "newsdesk/1.0"
	return &Source{
		urls:    urls,
		workers: workers,
		maxAge:  maxAge,
		now:     time.Now,
		parser:  parser,
		logger:  logger,
	}
}

// Fetch pulls every feed and returns normalized candidates with content
// hashes set. Duplicate links within one fetch collapse to the first
// occurrence.
func (s *Source) Fetch(ctx context.Context) ([]domain.Article, error) {
	type result struct {
		articles []domain.Article
		url      string
		err      error
	}

	jobs := make(chan string)
	results := make(chan result)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for url := range jobs {
				articles, err := s.fetchOne(ctx, url)
				results <- result{articles: articles, url: url, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, url := range s.urls {
			select {
			case jobs <- url:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var all []domain.Article
	seen := map[string]struct{}{}
	for r := range results {
		if r.err != nil {
			s.logger.Warn("feed fetch failed", "feed", r.url, "error", r.err)
			continue
		}
		for _, a := range r.articles {
			if _, dup := seen[a.ContentHash]; dup {
				continue
			}
			seen[a.ContentHash] = struct{}{}
			all = append(all, a)
		}
	}

	if len(all) == 0 && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	s.logger.Info("feeds fetched", "feeds", len(s.urls), "articles", len(all))
	return all, nil
}

func (s *Source) fetchOne(ctx context.Context, url string) ([]domain.Article, error) {
	feed, err := s.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	cutoff := s.now().Add(-s.maxAge)
	articles := make([]domain.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Title == "" {
			continue
		}
		if published := itemTime(item); !published.IsZero() && published.Before(cutoff) {
			continue
		}

		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.Link)
		articles = append(articles, domain.Article{
			ContentHash: domain.HashContent(title, link),
			Title:       title,
			Link:        link,
			Summary:     cleanSummary(item),
			SourceFeed:  feedName(feed, url),
		})
	}
	return articles, nil
}

func itemTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

func feedName(feed *gofeed.Feed, url string) string {
	if feed.Title != "" {
		return feed.Title
	}
	return url
}

const maxSummaryLen = 1000

// cleanSummary strips markup from the item description and caps its
// length. Feeds routinely embed full HTML fragments here.
func cleanSummary(item *gofeed.Item) string {
	raw := item.Description
	if raw == "" {
		raw = item.Content
	}
	text := stripHTML(raw)
	if len(text) > maxSummaryLen {
		text = text[:maxSummaryLen]
	}
	return text
}

func stripHTML(raw string) string {
	if !strings.Contains(raw, "<") {
		return strings.TrimSpace(raw)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return strings.TrimSpace(strings.Join(strings.Fields(doc.Text()), " "))
}
