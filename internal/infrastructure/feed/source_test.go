package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"newsdesk/internal/domain"
	"newsdesk/internal/logging"
)

func rssBody(items string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Test Feed</title>%s</channel></rss>`, items)
}

func rssItem(title, link, desc, pubDate string) string {
	return fmt.Sprintf(`<item><title>%s</title><link>%s</link><description>%s</description><pubDate>%s</pubDate></item>`,
		title, link, desc, pubDate)
}

func TestFetchNormalizesItems(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	fresh := now.Add(-2 * time.Hour).Format(time.RFC1123Z)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(rssBody(
			rssItem("Budget session opens", "https://example.com/budget",
				"&lt;p&gt;Parliament &lt;b&gt;opens&lt;/b&gt; the session.&lt;/p&gt;", fresh),
		)))
	}))
	defer server.Close()

	s := New([]string{server.URL}, 2, 48*time.Hour, logging.Component(nil, "test"))
	articles, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article, got %d", len(articles))
	}

	a := articles[0]
	if a.Title != "Budget session opens" {
		t.Fatalf("unexpected title: %s", a.Title)
	}
	if a.Summary != "Parliament opens the session." {
		t.Fatalf("expected HTML stripped, got %q", a.Summary)
	}
	if a.ContentHash != domain.HashContent(a.Title, a.Link) {
		t.Fatal("content hash must derive from title and link")
	}
	if a.SourceFeed != "Test Feed" {
		t.Fatalf("unexpected source: %s", a.SourceFeed)
	}
}

func TestFetchDropsOldItems(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	old := now.Add(-72 * time.Hour).Format(time.RFC1123Z)
	fresh := now.Add(-1 * time.Hour).Format(time.RFC1123Z)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(rssBody(
			rssItem("Old story", "https://example.com/old", "stale", old) +
				rssItem("Fresh story", "https://example.com/fresh", "new", fresh),
		)))
	}))
	defer server.Close()

	s := New([]string{server.URL}, 2, 48*time.Hour, logging.Component(nil, "test"))
	articles, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(articles) != 1 || articles[0].Title != "Fresh story" {
		t.Fatalf("expected only the fresh story, got %v", articles)
	}
}

func TestFetchCollapsesDuplicateLinks(t *testing.T) {
	t.Parallel()

	fresh := time.Now().UTC().Add(-time.Hour).Format(time.RFC1123Z)
	item := rssItem("Same story", "https://example.com/same", "text", fresh)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(rssBody(item + item)))
	}))
	defer server.Close()

	// The same feed twice also exercises cross-feed dedup.
	s := New([]string{server.URL, server.URL}, 2, 48*time.Hour, logging.Component(nil, "test"))
	articles, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected duplicates collapsed to 1, got %d", len(articles))
	}
}

func TestFetchSurvivesBrokenFeed(t *testing.T) {
	t.Parallel()

	fresh := time.Now().UTC().Add(-time.Hour).Format(time.RFC1123Z)

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(rssBody(rssItem("Works", "https://example.com/works", "ok", fresh))))
	}))
	defer good.Close()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	s := New([]string{bad.URL, good.URL}, 2, 48*time.Hour, logging.Component(nil, "test"))
	articles, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(articles) != 1 || articles[0].Title != "Works" {
		t.Fatalf("expected the working feed's article, got %v", articles)
	}
}
