// Package platforms implements social publish destinations. Each raw
// platform client is wrapped in a throttled destination that enforces
// per-platform rate gaps and retry backoff.
package platforms

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newsdesk/internal/faults"
	"newsdesk/internal/ports"
)

// Sender is a raw platform call without throttling or retries.
type Sender interface {
	Name() string
	Post(ctx context.Context, text, imageRef, link string) (remoteID string, err error)
}

// Limits throttles one destination.
type Limits struct {
	RequestsPerHour int
	RetryAttempts   int
	BackoffBase     float64
}

// Throttled wraps a Sender with minimum-gap rate limiting, exponential
// retry backoff, and a dry-run short circuit. Not safe for concurrent
// use; the publish fan-out is sequential.
type Throttled struct {
	sender   Sender
	limits   Limits
	dryRun   bool
	lastSend time.Time
	now      func() time.Time
	sleep    func(time.Duration)
	logger   *slog.Logger
}

var _ ports.Destination = (*Throttled)(nil)

// NewThrottled wraps sender with the given limits. dryRun makes Send
// report success without any network call.
func NewThrottled(sender Sender, limits Limits, dryRun bool, logger *slog.Logger) *Throttled {
	if limits.RequestsPerHour <= 0 {
		limits.RequestsPerHour = 60
	}
	if limits.RetryAttempts <= 0 {
		limits.RetryAttempts = 3
	}
	if limits.BackoffBase <= 1 {
		limits.BackoffBase = 2.0
	}
	return &Throttled{
		sender: sender,
		limits: limits,
		dryRun: dryRun,
		now:    time.Now,
		sleep:  time.Sleep,
		logger: logger,
	}
}

// Name returns the wrapped platform's name.
func (t *Throttled) Name() string {
	return t.sender.Name()
}

func (t *Throttled) minGap() time.Duration {
	return time.Duration(float64(time.Hour) / float64(t.limits.RequestsPerHour))
}

func (t *Throttled) awaitSlot() {
	if t.lastSend.IsZero() {
		return
	}
	elapsed := t.now().Sub(t.lastSend)
	if gap := t.minGap(); elapsed < gap {
		t.sleep(gap - elapsed)
	}
}

func (t *Throttled) backoff(attempt int) time.Duration {
	seconds := 1.0
	for i := 0; i < attempt; i++ {
		seconds *= t.limits.BackoffBase
	}
	return time.Duration(seconds * float64(time.Second))
}

// Send delivers one post, retrying transient failures with exponential
// backoff. Authorization failures are terminal on the first attempt.
func (t *Throttled) Send(ctx context.Context, text, imageRef, link string) ports.PublishOutcome {
	if t.dryRun {
		t.logger.Info("dry-run publish", "platform", t.Name())
		return ports.PublishOutcome{Success: true, RemoteID: "dry-run"}
	}

	var lastErr error
	for attempt := 0; attempt < t.limits.RetryAttempts; attempt++ {
		if attempt > 0 {
			t.sleep(t.backoff(attempt))
		}
		t.awaitSlot()

		remoteID, err := t.sender.Post(ctx, text, imageRef, link)
		t.lastSend = t.now()
		if err == nil {
			return ports.PublishOutcome{Success: true, RemoteID: remoteID}
		}

		lastErr = err
		if faults.IsAuth(err) || faults.IsValidation(err) {
			t.logger.Error("publish failed, not retrying", "platform", t.Name(), "error", err)
			break
		}
		t.logger.Warn("publish attempt failed", "platform", t.Name(), "attempt", attempt+1, "error", err)
	}
	return ports.PublishOutcome{Error: fmt.Sprintf("%v", lastErr)}
}
