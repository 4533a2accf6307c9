package classify

import (
	"context"
	"errors"
	"testing"

	"newsdesk/internal/domain"
	"newsdesk/internal/logging"
)

func testSpecs() []domain.CategorySpec {
	return []domain.CategorySpec{
		{
			Name:        "ALERTS",
			Description: "Urgent security warnings and fraud alerts.",
			Weight:      10.0,
			Priority:    2,
			Patterns:    []string{`\bscam\b`, `\bfraud\b`, `\bphishing\b`, `\bmalware\b`},
		},
		{
			Name:        "FINANCE",
			Description: "Markets, banking, budgets.",
			Weight:      7.0,
			Priority:    5,
			Patterns:    []string{`\bstock\s+market\b`, `\bbudget\b`, `\binflation\b`},
		},
		{
			Name:        domain.CategoryNoise,
			Description: "Celebrity gossip and horoscopes.",
			Weight:      -100.0,
			Priority:    99,
			Patterns:    []string{`\bhoroscope\b`, `\bgossip\b`},
		},
	}
}

type fakeProvider struct {
	anchors [][]float32
	batches [][][]float32
	err     error
	calls   int
}

func (f *fakeProvider) Encode(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.calls == 1 {
		return f.anchors, nil
	}
	if len(f.batches) > 0 {
		batch := f.batches[0]
		f.batches = f.batches[1:]
		return batch, nil
	}
	return nil, errors.New("no scripted batch")
}

func TestEmbeddingScore(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		// Orthogonal unit anchors: ALERTS, FINANCE, NOISE.
		anchors: [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		batches: [][][]float32{{
			// Identical to the FINANCE anchor: similarity 1.0.
			{0, 1, 0},
			// cos with FINANCE = 9/sqrt(81+19) = 0.9.
			{0, 9, 4.3588989},
		}},
	}

	c := New(context.Background(), provider, testSpecs(), logging.Component(nil, "test"))
	if c.AnchorMethod() != domain.MethodEmbedding {
		t.Fatalf("expected embedding anchors, got %s", c.AnchorMethod())
	}

	articles := c.Process(context.Background(), []domain.Article{
		{Title: "markets rally"},
		{Title: "quarterly results"},
	})

	if articles[0].Category != "FINANCE" || articles[0].Score != 17.0 {
		t.Fatalf("expected FINANCE 17.0, got %s %.2f", articles[0].Category, articles[0].Score)
	}
	if articles[1].Category != "FINANCE" || articles[1].Score != 16.0 {
		t.Fatalf("expected FINANCE 16.0, got %s %.2f", articles[1].Category, articles[1].Score)
	}
	if articles[0].Method != domain.MethodEmbedding {
		t.Fatalf("expected embedding method, got %s", articles[0].Method)
	}
	if len(articles[0].Embedding) == 0 {
		t.Fatal("expected embedding retained on article")
	}
}

func TestEmbeddingNoiseForcedScore(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		anchors: [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		batches: [][][]float32{{{0, 0, 1}}},
	}

	c := New(context.Background(), provider, testSpecs(), logging.Component(nil, "test"))
	out := c.Process(context.Background(), []domain.Article{{Title: "celebrity gossip"}})

	if out[0].Category != domain.CategoryNoise {
		t.Fatalf("expected NOISE, got %s", out[0].Category)
	}
	if out[0].Score != domain.NoiseScore {
		t.Fatalf("expected %.1f, got %.2f", domain.NoiseScore, out[0].Score)
	}
}

func TestRegexFallbackWhenProviderDown(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{err: errors.New("backend down")}
	c := New(context.Background(), provider, testSpecs(), logging.Component(nil, "test"))
	if c.AnchorMethod() != domain.MethodRegex {
		t.Fatalf("expected regex-only startup, got %s", c.AnchorMethod())
	}

	out := c.Process(context.Background(), []domain.Article{
		// Three distinct ALERTS patterns: confidence capped at 1.0.
		{Title: "phishing scam spreads new malware"},
		// One FINANCE hit: confidence 1/3.
		{Title: "budget session opens"},
		// No hits anywhere.
		{Title: "village fair draws crowds"},
	})

	if out[0].Category != "ALERTS" || out[0].Score != 20.0 {
		t.Fatalf("expected ALERTS 20.0, got %s %.2f", out[0].Category, out[0].Score)
	}
	if out[1].Category != "FINANCE" || out[1].Score != 13.67 {
		t.Fatalf("expected FINANCE 13.67, got %s %.2f", out[1].Category, out[1].Score)
	}
	if out[2].Category != domain.CategoryGeneral || out[2].Score != 6.0 {
		t.Fatalf("expected GENERAL 6.0, got %s %.2f", out[2].Category, out[2].Score)
	}
	for _, a := range out {
		if a.Method != domain.MethodRegex {
			t.Fatalf("expected regex method, got %s", a.Method)
		}
	}
}

func TestRegexNoiseForcedScore(t *testing.T) {
	t.Parallel()

	c := New(context.Background(), nil, testSpecs(), logging.Component(nil, "test"))
	out := c.Process(context.Background(), []domain.Article{{Title: "daily horoscope for pisces"}})

	if out[0].Category != domain.CategoryNoise || out[0].Score != domain.NoiseScore {
		t.Fatalf("expected NOISE %.1f, got %s %.2f", domain.NoiseScore, out[0].Category, out[0].Score)
	}
}

func TestBatchEmbeddingFailureFallsBack(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		anchors: [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		// No scripted batches: the per-run Encode fails.
	}
	c := New(context.Background(), provider, testSpecs(), logging.Component(nil, "test"))

	out := c.Process(context.Background(), []domain.Article{{Title: "fraud warning issued"}})
	if out[0].Method != domain.MethodRegex {
		t.Fatalf("expected regex fallback, got %s", out[0].Method)
	}
	if out[0].Category != "ALERTS" {
		t.Fatalf("expected ALERTS, got %s", out[0].Category)
	}
}
