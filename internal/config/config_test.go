package config

import (
	"os"
	"path/filepath"
	"testing"

	"newsdesk/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Pipeline.ArticlesPerRun != 4 {
		t.Fatalf("expected articlesPerRun 4, got %d", cfg.Pipeline.ArticlesPerRun)
	}
	if cfg.Pipeline.SimilarityThreshold != 0.85 {
		t.Fatalf("expected similarity threshold 0.85, got %v", cfg.Pipeline.SimilarityThreshold)
	}
	if cfg.Approval.TimeoutSec != 300 || cfg.Approval.SendDelaySec != 4 || cfg.Approval.PollIntervalSec != 30 {
		t.Fatalf("unexpected approval defaults: %+v", cfg.Approval)
	}
	if len(cfg.Categories) == 0 {
		t.Fatal("expected default categories")
	}

	rl := cfg.Platforms.RateLimits["telegram"]
	if rl.RequestsPerHour != 3000 || rl.BackoffBase != 1.5 {
		t.Fatalf("unexpected telegram rate limit: %+v", rl)
	}
}

func TestDefaultCategoriesCoverPriorities(t *testing.T) {
	cfg := Load()
	specs := cfg.CategorySpecs()

	byName := map[string]domain.CategorySpec{}
	for _, s := range specs {
		byName[s.Name] = s
	}

	welfare, ok := byName["WELFARE"]
	if !ok || welfare.Priority != 1 || welfare.Weight != 14.0 {
		t.Fatalf("unexpected WELFARE spec: %+v", welfare)
	}
	noise, ok := byName[domain.CategoryNoise]
	if !ok || noise.Weight != -100.0 {
		t.Fatalf("unexpected NOISE spec: %+v", noise)
	}
	if len(welfare.Patterns) == 0 {
		t.Fatal("expected regex patterns on WELFARE")
	}
}

func TestLoadYAMLMerge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
instance:
  name: regional
  display: Regional Desk
pipeline:
  articlesPerRun: 6
approval:
  timeoutSec: 120
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("NEWSDESK_CONFIG", path)

	cfg := Load()

	if cfg.Instance.Display != "Regional Desk" {
		t.Fatalf("expected display override, got %s", cfg.Instance.Display)
	}
	if cfg.Pipeline.ArticlesPerRun != 6 {
		t.Fatalf("expected articlesPerRun 6, got %d", cfg.Pipeline.ArticlesPerRun)
	}
	if cfg.Approval.TimeoutSec != 120 {
		t.Fatalf("expected timeout 120, got %d", cfg.Approval.TimeoutSec)
	}
	// Untouched fields keep defaults.
	if cfg.Pipeline.TopPerCategory != 25 {
		t.Fatalf("expected default topPerCategory, got %d", cfg.Pipeline.TopPerCategory)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://env/db")
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("APPROVAL_TIMEOUT_SEC", "90")
	t.Setenv("AUTO_APPROVE", "true")

	cfg := Load()

	if cfg.Database.DSN != "postgres://env/db" {
		t.Fatalf("expected DSN from env, got %s", cfg.Database.DSN)
	}
	if cfg.Telegram.BotToken != "env-token" {
		t.Fatalf("expected token from env, got %s", cfg.Telegram.BotToken)
	}
	if cfg.Approval.TimeoutSec != 90 {
		t.Fatalf("expected timeout 90, got %d", cfg.Approval.TimeoutSec)
	}
	if !cfg.Approval.AutoApprove {
		t.Fatal("expected auto-approve enabled")
	}
}

func TestUnknownTimezoneFallsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("scheduler:\n  timezone: Mars/Olympus\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("NEWSDESK_CONFIG", path)

	cfg := Load()
	if cfg.Scheduler.Location().String() != "UTC" {
		t.Fatalf("expected UTC fallback, got %s", cfg.Scheduler.Location())
	}
}
