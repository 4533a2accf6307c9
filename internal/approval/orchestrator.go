// Package approval coordinates the post-selection phases: broadcast of
// approval requests, shared-deadline decision collection, and
// rate-limited publish fan-out.
package approval

import (
	"context"
	"log/slog"
	"time"

	"newsdesk/internal/domain"
	"newsdesk/internal/metrics"
	"newsdesk/internal/ports"
)

// Config shapes the three orchestration phases.
type Config struct {
	SendDelay        time.Duration
	PollInterval     time.Duration
	Timeout          time.Duration
	PollFailureLimit int
	AutoApprove      bool
	// TimeoutApproves resolves articles still pending at the shared
	// deadline: true approves them all, false skips them all.
	TimeoutApproves bool
}

// Composer optionally turns an approved article into long-form text
// before publishing. Failure falls back to the standard post text.
type Composer interface {
	Compose(ctx context.Context, article domain.Article) (string, error)
}

// Summary reports what one orchestration run did.
type Summary struct {
	Approved  int
	Skipped   int
	Published int
	Failed    int
	Errors    int
}

type job struct {
	article  domain.Article
	handle   string
	decision domain.Decision
}

// Orchestrator runs the approval/publish state machine for one batch.
// All phases tolerate per-item and per-destination failures; nothing an
// individual article does can abort the batch.
type Orchestrator struct {
	store        ports.Store
	channel      ports.NotificationChannel
	destinations []ports.Destination
	composer     Composer
	display      string
	cfg          Config
	now          func() time.Time
	sleep        func(time.Duration)
	logger       *slog.Logger
}

// New builds an orchestrator. channel may be nil (everything is then
// fail-open approved); destinations may be empty.
func New(store ports.Store, channel ports.NotificationChannel, destinations []ports.Destination, display string, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.PollFailureLimit <= 0 {
		cfg.PollFailureLimit = 3
	}
	return &Orchestrator{
		store:        store,
		channel:      channel,
		destinations: destinations,
		display:      display,
		cfg:          cfg,
		now:          time.Now,
		sleep:        time.Sleep,
		logger:       logger,
	}
}

// WithComposer attaches an optional long-form composer.
func (o *Orchestrator) WithComposer(c Composer) *Orchestrator {
	o.composer = c
	return o
}

// Run executes the three phases in strict order: broadcast, collection,
// publish. The returned summary is informational; Run never fails.
func (o *Orchestrator) Run(ctx context.Context, articles []domain.Article) Summary {
	if len(articles) == 0 {
		return Summary{}
	}

	jobs := o.broadcast(ctx, articles)
	o.collect(ctx, jobs)
	return o.publish(ctx, jobs)
}

// broadcast is phase A: one approval request per article with a fixed
// gap between sends. An unusable channel, auto-approve mode, or a
// mid-broadcast authorization failure all resolve to approved without
// waiting (fail-open).
func (o *Orchestrator) broadcast(ctx context.Context, articles []domain.Article) []*job {
	jobs := make([]*job, len(articles))
	for i, a := range articles {
		jobs[i] = &job{article: a, decision: domain.DecisionPending}
	}

	if o.channel == nil || !o.channel.Usable() {
		o.logger.Warn("approval channel unusable, approving whole batch")
		for _, j := range jobs {
			o.decide(ctx, j, domain.DecisionApproved)
		}
		return jobs
	}

	if o.cfg.AutoApprove {
		for _, j := range jobs {
			if err := o.channel.Notify(ctx, j.article); err != nil {
				o.logger.Warn("notify failed", "article", j.article.ID, "error", err)
			}
			o.decide(ctx, j, domain.DecisionApproved)
		}
		return jobs
	}

	for i, j := range jobs {
		if !o.channel.Usable() {
			o.logger.Warn("channel became unusable mid-broadcast, approving remainder")
			for _, rest := range jobs[i:] {
				if rest.decision == domain.DecisionPending {
					o.decide(ctx, rest, domain.DecisionApproved)
				}
			}
			break
		}

		handle, err := o.channel.Send(ctx, j.article)
		if err != nil {
			// No affordance was delivered for this article, so no
			// decision can ever arrive: resolve it open.
			o.logger.Warn("approval send failed", "article", j.article.ID, "error", err)
			o.decide(ctx, j, domain.DecisionApproved)
			continue
		}

		j.handle = handle
		o.saveJob(ctx, j)

		if i < len(jobs)-1 {
			o.sleep(o.cfg.SendDelay)
		}
	}
	return jobs
}

// collect is phase B: poll the channel under one shared deadline
// computed for the whole pending set. Sleeps in fixed chunks between
// polls; repeated poll failures force-approve the remainder.
func (o *Orchestrator) collect(ctx context.Context, jobs []*job) {
	pending := map[int64]*job{}
	for _, j := range jobs {
		if j.decision == domain.DecisionPending {
			pending[j.article.ID] = j
		}
	}
	if len(pending) == 0 {
		return
	}

	deadline := o.now().Add(o.cfg.Timeout)
	failures := 0

	for len(pending) > 0 && o.now().Before(deadline) {
		events, err := o.channel.Poll(ctx)
		if err != nil {
			failures++
			o.logger.Warn("poll failed", "consecutive", failures, "error", err)
			if failures >= o.cfg.PollFailureLimit {
				o.logger.Warn("poll failure threshold reached, approving remainder")
				o.resolvePending(ctx, pending, domain.DecisionApproved)
				return
			}
			o.sleep(o.cfg.PollInterval)
			continue
		}
		failures = 0

		for _, ev := range events {
			j, ok := pending[ev.ArticleID]
			if !ok {
				// Stale or foreign event; not ours to act on.
				continue
			}
			o.applyEvent(ctx, ev, j, pending)
		}

		if len(pending) == 0 {
			return
		}
		o.sleep(o.cfg.PollInterval)
	}

	if len(pending) > 0 {
		policy := domain.DecisionSkipped
		if o.cfg.TimeoutApproves {
			policy = domain.DecisionApproved
		}
		o.logger.Info("approval deadline passed", "pending", len(pending), "policy", policy)
		o.resolvePending(ctx, pending, policy)
	}
}

func (o *Orchestrator) applyEvent(ctx context.Context, ev ports.DecisionEvent, j *job, pending map[int64]*job) {
	if err := o.channel.Acknowledge(ctx, ev); err != nil {
		o.logger.Debug("acknowledge failed", "article", ev.ArticleID, "error", err)
	}
	o.retract(ctx, j)

	switch ev.Action {
	case domain.ActionApprove:
		o.decide(ctx, j, domain.DecisionApproved)
		delete(pending, j.article.ID)
	case domain.ActionSkip:
		o.decide(ctx, j, domain.DecisionSkipped)
		delete(pending, j.article.ID)
	case domain.ActionApproveAll:
		o.decide(ctx, j, domain.DecisionApproved)
		delete(pending, j.article.ID)
		// Two passes: collect ids first, then mutate, so the cascade
		// never mutates the set it is iterating.
		ids := make([]int64, 0, len(pending))
		for id := range pending {
			ids = append(ids, id)
		}
		for _, id := range ids {
			other := pending[id]
			o.retract(ctx, other)
			o.decide(ctx, other, domain.DecisionApproved)
			delete(pending, id)
		}
	}
}

func (o *Orchestrator) resolvePending(ctx context.Context, pending map[int64]*job, decision domain.Decision) {
	ids := make([]int64, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	for _, id := range ids {
		j := pending[id]
		o.retract(ctx, j)
		o.decide(ctx, j, decision)
		delete(pending, id)
	}
}

// publish is phase C: fan approved articles out to every enabled
// destination (never the approval channel itself). Destinations apply
// their own retries and rate limits; a failed destination does not stop
// delivery to the others.
func (o *Orchestrator) publish(ctx context.Context, jobs []*job) Summary {
	var sum Summary

	var approvedIDs, skippedIDs []int64
	for _, j := range jobs {
		switch j.decision {
		case domain.DecisionApproved:
			sum.Approved++
			approvedIDs = append(approvedIDs, j.article.ID)
		case domain.DecisionSkipped:
			sum.Skipped++
			skippedIDs = append(skippedIDs, j.article.ID)
		}
	}
	o.markStatus(ctx, approvedIDs, domain.StatusApproved)
	o.markStatus(ctx, skippedIDs, domain.StatusSkipped)

	for _, j := range jobs {
		if j.decision != domain.DecisionApproved {
			continue
		}

		text := o.postText(ctx, j.article)
		succeeded := 0

		for _, dest := range o.destinations {
			if dest.Name() == "telegram" {
				continue
			}

			outcome := dest.Send(ctx, text, "", j.article.Link)

			status := domain.PublishOK
			if !outcome.Success {
				status = domain.PublishFailed
				sum.Errors++
				o.logger.Warn("destination failed", "destination", dest.Name(), "article", j.article.ID, "error", outcome.Error)
			} else {
				succeeded++
			}

			metrics.Publishes.WithLabelValues(dest.Name(), string(status)).Inc()

			rec := domain.PublishRecord{
				ArticleID:   j.article.ID,
				Destination: dest.Name(),
				RemoteID:    outcome.RemoteID,
				Status:      status,
				Error:       outcome.Error,
			}
			if err := o.store.AppendPublishRecord(ctx, rec); err != nil {
				o.logger.Warn("publish log write failed", "article", j.article.ID, "error", err)
			}
		}

		// Published when anything landed, or when there is nowhere to
		// publish at all: either way the article must not be re-selected.
		if succeeded > 0 || len(o.enabledDestinations()) == 0 {
			sum.Published++
			o.markStatus(ctx, []int64{j.article.ID}, domain.StatusPublished)
		} else {
			sum.Failed++
			o.markStatus(ctx, []int64{j.article.ID}, domain.StatusFailed)
		}
	}

	o.logger.Info("orchestration done",
		"approved", sum.Approved, "skipped", sum.Skipped,
		"published", sum.Published, "failed", sum.Failed, "errors", sum.Errors)
	return sum
}

func (o *Orchestrator) enabledDestinations() []ports.Destination {
	out := make([]ports.Destination, 0, len(o.destinations))
	for _, d := range o.destinations {
		if d.Name() != "telegram" {
			out = append(out, d)
		}
	}
	return out
}

func (o *Orchestrator) postText(ctx context.Context, article domain.Article) string {
	if o.composer != nil {
		long, err := o.composer.Compose(ctx, article)
		if err == nil && long != "" {
			return long
		}
		if err != nil {
			o.logger.Warn("composer failed, using standard text", "article", article.ID, "error", err)
		}
	}
	return BuildPostText(o.display, article)
}

func (o *Orchestrator) decide(ctx context.Context, j *job, decision domain.Decision) {
	if j.decision != domain.DecisionPending {
		// Terminal decisions never change.
		return
	}
	j.decision = decision
	if err := o.store.SetDecision(ctx, j.article.ID, decision); err != nil {
		o.logger.Warn("decision write failed", "article", j.article.ID, "error", err)
	}
}

func (o *Orchestrator) saveJob(ctx context.Context, j *job) {
	rec := domain.ApprovalJob{
		ArticleID:  j.article.ID,
		MessageRef: j.handle,
		Decision:   domain.DecisionPending,
	}
	if err := o.store.SaveApprovalJob(ctx, rec); err != nil {
		o.logger.Warn("approval job write failed", "article", j.article.ID, "error", err)
	}
}

func (o *Orchestrator) retract(ctx context.Context, j *job) {
	if j.handle == "" {
		return
	}
	if err := o.channel.RetractAffordance(ctx, j.handle); err != nil {
		o.logger.Debug("retract failed", "article", j.article.ID, "error", err)
	}
}

func (o *Orchestrator) markStatus(ctx context.Context, ids []int64, status domain.Status) {
	if len(ids) == 0 {
		return
	}
	if err := o.store.UpdateStatus(ctx, ids, status); err != nil {
		o.logger.Warn("status update failed", "status", status, "error", err)
	}
}
