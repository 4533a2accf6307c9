// Package writer composes long-form post text through a chain of
// OpenAI-compatible chat providers. Providers that rate-limit are
// blocked for the rest of the day in the durable store; the chain moves
// on to the next provider, and a fully exhausted chain falls back to the
// caller's plain-text composition.
package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"newsdesk/internal/config"
	"newsdesk/internal/domain"
	"newsdesk/internal/faults"
	"newsdesk/internal/ports"
)

const systemPrompt = "You write concise, factual social media posts for a news feed. " +
	"Given a headline and summary, produce a short post under 500 characters. " +
	"No hashtags, no invented facts."

// Provider is one OpenAI-compatible chat endpoint.
type Provider struct {
	name     string
	endpoint string
	model    string
	apiKey   string
	http     *http.Client
}

// NewProvider builds a provider from configuration.
func NewProvider(cfg config.WriterProviderConfig) *Provider {
	return &Provider{
		name:     cfg.Name,
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: 20 * time.Second},
	}
}

// Compose asks the provider for post text.
func (p *Provider) Compose(ctx context.Context, article domain.Article) (string, error) {
	if p.apiKey == "" || p.endpoint == "" || p.model == "" {
		return "", fmt.Errorf("provider %s misconfigured", p.name)
	}

	body, err := json.Marshal(map[string]any{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": fmt.Sprintf("Headline: %s\n\nSummary: %s", article.Title, article.Summary)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", faults.Transientf("chat request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", faults.FromStatus(resp.StatusCode,
			fmt.Errorf("chat error %s: %s", resp.Status, strings.TrimSpace(string(detail))))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("chat response had no content")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// Chain walks providers in order, skipping ones blocked for today.
type Chain struct {
	providers []*Provider
	store     ports.Store
	now       func() time.Time
	logger    *slog.Logger
}

// NewChain builds the provider chain. store persists day-scoped blocks
// across runs.
func NewChain(providers []*Provider, store ports.Store, logger *slog.Logger) *Chain {
	return &Chain{
		providers: providers,
		store:     store,
		now:       time.Now,
		logger:    logger,
	}
}

func (c *Chain) blocked(ctx context.Context, name string) bool {
	until, err := c.store.ProviderBlockedUntil(ctx, name)
	if err != nil {
		c.logger.Warn("reading provider block failed", "provider", name, "error", err)
		return false
	}
	if until.IsZero() {
		return false
	}
	return !c.now().Truncate(24 * time.Hour).After(until.Truncate(24 * time.Hour))
}

func (c *Chain) blockForToday(ctx context.Context, name string) {
	today := c.now().Truncate(24 * time.Hour)
	if err := c.store.BlockProviderUntil(ctx, name, today); err != nil {
		c.logger.Warn("recording provider block failed", "provider", name, "error", err)
	}
}

// Compose returns post text from the first provider that succeeds. A
// rate-limited provider is blocked for the rest of the day. The error is
// non-nil only when every provider failed or was blocked.
func (c *Chain) Compose(ctx context.Context, article domain.Article) (string, error) {
	var lastErr error
	for _, p := range c.providers {
		if c.blocked(ctx, p.name) {
			c.logger.Debug("provider blocked for today", "provider", p.name)
			continue
		}

		text, err := p.Compose(ctx, article)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if faults.IsRateLimited(err) {
			c.logger.Warn("provider rate limited, blocking for today", "provider", p.name)
			c.blockForToday(ctx, p.name)
			continue
		}
		c.logger.Warn("provider failed", "provider", p.name, "error", err)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no writer provider available")
	}
	return "", lastErr
}
