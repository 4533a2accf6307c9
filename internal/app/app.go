// Package app wires configuration to adapters and use cases.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"newsdesk/internal/approval"
	"newsdesk/internal/classify"
	"newsdesk/internal/config"
	"newsdesk/internal/dedup"
	"newsdesk/internal/domain"
	"newsdesk/internal/infrastructure/embed"
	"newsdesk/internal/infrastructure/feed"
	"newsdesk/internal/infrastructure/platforms"
	"newsdesk/internal/infrastructure/scheduler"
	"newsdesk/internal/infrastructure/storage"
	"newsdesk/internal/infrastructure/telegram"
	"newsdesk/internal/infrastructure/vector"
	"newsdesk/internal/infrastructure/writer"
	"newsdesk/internal/logging"
	"newsdesk/internal/metrics"
	"newsdesk/internal/ports"
	"newsdesk/internal/selection"
	"newsdesk/internal/usecase"
)

// Options tune how the application builds its adapters.
type Options struct {
	// TestMode swaps publish destinations for dry-run versions so a full
	// pipeline pass never reaches external platforms.
	TestMode bool
}

// Application owns adapter lifecycles and exposes the CLI operations.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *storage.Store
	index    *vector.Index
	pipeline *usecase.Pipeline
}

// New connects all backends and wires the pipeline. The returned
// application must be Closed.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := storage.New(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	// The similarity index is optional: without it dedup degrades to
	// hash-only.
	index, err := vector.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
		logging.Component(baseLogger, "vector"))
	if err != nil {
		baseLogger.Warn("similarity index unavailable, hash-only dedup", "error", err)
		index = nil
	}

	specs := cfg.CategorySpecs()

	embedder := embed.NewClient(cfg.Embedding.Endpoint, cfg.Embedding.APIKey,
		time.Duration(cfg.Embedding.TimeoutSec)*time.Second)

	classifier := classify.New(ctx, embedder, specs, logging.Component(baseLogger, "classify"))

	source := feed.New(cfg.Feeds, cfg.Pipeline.MaxFeedWorkers,
		time.Duration(cfg.Pipeline.MaxAgeHours)*time.Hour,
		logging.Component(baseLogger, "feed"))

	var simIndex ports.SimilarityIndex
	if index != nil {
		simIndex = index
	}
	deduper := dedup.New(store, simIndex, dedup.Options{
		SimilarityThreshold: cfg.Pipeline.SimilarityThreshold,
		SkipNoise:           cfg.Pipeline.SkipNoise,
	}, logging.Component(baseLogger, "dedup"))

	selector := selection.New(store, cfg.Pipeline.TopPerCategory, cfg.Pipeline.MinScore,
		logging.Component(baseLogger, "selection"))

	var channel ports.NotificationChannel
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		bot := telegram.NewBot(cfg.Telegram.BotToken)
		channel = telegram.NewChannel(bot, cfg.Telegram.ChatID, cfg.Instance.Display,
			logging.Component(baseLogger, "telegram"))
	}

	orchestrator := approval.New(store, channel,
		buildDestinations(cfg, opts.TestMode, baseLogger),
		cfg.Instance.Display,
		approval.Config{
			SendDelay:        time.Duration(cfg.Approval.SendDelaySec) * time.Second,
			PollInterval:     time.Duration(cfg.Approval.PollIntervalSec) * time.Second,
			Timeout:          time.Duration(cfg.Approval.TimeoutSec) * time.Second,
			PollFailureLimit: cfg.Approval.PollFailureLimit,
			AutoApprove:      cfg.Approval.AutoApprove || channel == nil,
			TimeoutApproves:  cfg.Approval.TimeoutApproves,
		},
		logging.Component(baseLogger, "approval"))

	if cfg.Writer.Enabled && len(cfg.Writer.Providers) > 0 {
		providers := make([]*writer.Provider, 0, len(cfg.Writer.Providers))
		for _, pc := range cfg.Writer.Providers {
			providers = append(providers, writer.NewProvider(pc))
		}
		orchestrator = orchestrator.WithComposer(
			writer.NewChain(providers, store, logging.Component(baseLogger, "writer")))
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Store:      store,
		Classifier: classifier,
		Dedup:      deduper,
		Selector:   selector,
		Approver:   orchestrator,
		Specs:      specs,
		Logger:     logging.Component(baseLogger, "pipeline"),
	})

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		store:    store,
		index:    index,
		pipeline: pipeline,
	}, nil
}

func buildDestinations(cfg config.Config, dryRun bool, logger *slog.Logger) []ports.Destination {
	var dests []ports.Destination
	for _, name := range cfg.Platforms.Enabled {
		var sender platforms.Sender
		switch name {
		case "facebook":
			if cfg.Platforms.Facebook.PageID == "" {
				continue
			}
			sender = platforms.NewFacebook(cfg.Platforms.Facebook.PageID, cfg.Platforms.Facebook.AccessToken)
		case "twitter":
			if cfg.Platforms.Twitter.BearerToken == "" {
				continue
			}
			sender = platforms.NewTwitter(cfg.Platforms.Twitter.BearerToken)
		default:
			// telegram delivery rides on the approval channel itself.
			continue
		}

		rl := cfg.Platforms.RateLimits[name]
		dests = append(dests, platforms.NewThrottled(sender, platforms.Limits{
			RequestsPerHour: rl.RequestsPerHour,
			RetryAttempts:   rl.RetryAttempts,
			BackoffBase:     rl.BackoffBase,
		}, dryRun, logging.Component(logger, "platform."+name)))
	}
	return dests
}

// Close releases backend connections.
func (a *Application) Close() {
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Warn("closing similarity index", "error", err)
		}
	}
	a.store.Close()
}

// Run performs one pipeline pass.
func (a *Application) Run(ctx context.Context, opts usecase.RunOptions) (usecase.RunReport, error) {
	if opts.Limit <= 0 {
		opts.Limit = a.cfg.Pipeline.ArticlesPerRun
	}
	return a.pipeline.Run(ctx, opts)
}

// Status reads store statistics.
func (a *Application) Status(ctx context.Context) (domain.StoreStats, error) {
	return a.store.Stats(ctx)
}

// ResetRotation returns category rotation to the initial order.
func (a *Application) ResetRotation(ctx context.Context) error {
	return a.store.ResetRotation(ctx)
}

// Serve runs the pipeline on the configured interval until the context
// is canceled, exposing Prometheus metrics on the side.
func (a *Application) Serve(ctx context.Context, opts usecase.RunOptions) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server failed", "error", err)
		}
	}()

	driver := scheduler.NewInterval(
		time.Duration(a.cfg.Scheduler.IntervalHours)*time.Hour,
		a.cfg.Scheduler.Location())

	if err := driver.Start(ctx, func(t time.Time) {
		a.logger.Info("scheduled run", "tick", t.Format(time.RFC3339))
		if _, err := a.Run(ctx, opts); err != nil {
			a.logger.Error("scheduled run failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := driver.Stop(stopCtx); err != nil {
		a.logger.Warn("stopping scheduler", "error", err)
	}
	if err := srv.Shutdown(stopCtx); err != nil {
		a.logger.Warn("stopping metrics server", "error", err)
	}
	return nil
}
