package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"newsdesk/internal/app"
	"newsdesk/internal/config"
	"newsdesk/internal/domain"
	"newsdesk/internal/logging"
	"newsdesk/internal/usecase"
)

func main() {
	var (
		live          = flag.Bool("live", false, "persist articles and publish to real destinations")
		test          = flag.Bool("test", false, "full pipeline pass with dry-run destinations")
		status        = flag.Bool("status", false, "print store statistics and exit")
		resetRotation = flag.Bool("reset-rotation", false, "reset category rotation and exit")
		serve         = flag.Bool("serve", false, "run on the configured schedule with a metrics endpoint")
		limit         = flag.Int("limit", 0, "articles per run (0 uses the configured value)")
		keepNoise     = flag.Bool("keep-noise", false, "let NOISE-classified articles through for inspection")
	)
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger, app.Options{TestMode: *test})
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	switch {
	case *status:
		stats, err := application.Status(ctx)
		if err != nil {
			logger.Error("status failed", "error", err)
			os.Exit(1)
		}
		printStats(stats)

	case *resetRotation:
		if err := application.ResetRotation(ctx); err != nil {
			logger.Error("rotation reset failed", "error", err)
			os.Exit(1)
		}
		fmt.Println("rotation reset")

	case *serve:
		opts := usecase.RunOptions{Limit: *limit, Live: *live || *test, KeepNoise: *keepNoise}
		if err := application.Serve(ctx, opts); err != nil {
			logger.Error("serve failed", "error", err)
			os.Exit(1)
		}

	default:
		opts := usecase.RunOptions{Limit: *limit, Live: *live || *test, KeepNoise: *keepNoise}
		report, err := application.Run(ctx, opts)
		if err != nil {
			logger.Error("run failed", "error", err)
			os.Exit(1)
		}
		printReport(report, opts.Live)
	}
}

func printStats(stats domain.StoreStats) {
	fmt.Printf("articles: %d\n", stats.Total)
	fmt.Println("by status:")
	for _, key := range sortedKeys(stats.ByStatus) {
		fmt.Printf("  %-10s %d\n", key, stats.ByStatus[key])
	}
	fmt.Println("by category:")
	for _, key := range sortedKeys(stats.ByCategory) {
		fmt.Printf("  %-10s %d\n", key, stats.ByCategory[key])
	}
	fmt.Printf("rotation: index=%d runs=%d\n", stats.Rotation.LastIndex, stats.Rotation.RunCount)
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printReport(report usecase.RunReport, live bool) {
	mode := "dry-run"
	if live {
		mode = "live"
	}
	fmt.Printf("run %s (%s): fetched=%d fresh=%d picked=%d\n",
		report.RunID, mode, report.Fetched, report.Fresh, len(report.Picked))
	for _, a := range report.Picked {
		fmt.Printf("  [%s %.2f] %s\n", a.Category, a.Score, a.Title)
	}
	if live {
		fmt.Printf("approved=%d skipped=%d published=%d failed=%d\n",
			report.Approval.Approved, report.Approval.Skipped,
			report.Approval.Published, report.Approval.Failed)
	}
}
