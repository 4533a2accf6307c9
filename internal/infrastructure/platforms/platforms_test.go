package platforms

import (
	"context"
	"errors"
	"testing"
	"time"

	"newsdesk/internal/faults"
	"newsdesk/internal/logging"
)

type scriptedSender struct {
	name  string
	errs  []error
	calls int
}

func (s *scriptedSender) Name() string { return s.name }

func (s *scriptedSender) Post(_ context.Context, _, _, _ string) (string, error) {
	var err error
	if s.calls < len(s.errs) {
		err = s.errs[s.calls]
	}
	s.calls++
	if err != nil {
		return "", err
	}
	return "remote-1", nil
}

// withFakeClock replaces the wall clock: sleeping advances time and is
// recorded.
func withFakeClock(t *Throttled) *[]time.Duration {
	var slept []time.Duration
	clock := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	t.now = func() time.Time { return clock }
	t.sleep = func(d time.Duration) {
		slept = append(slept, d)
		clock = clock.Add(d)
	}
	return &slept
}

func TestDryRunSkipsSender(t *testing.T) {
	t.Parallel()

	sender := &scriptedSender{name: "facebook"}
	d := NewThrottled(sender, Limits{}, true, logging.Component(nil, "test"))

	outcome := d.Send(context.Background(), "hello", "", "")
	if !outcome.Success || outcome.RemoteID != "dry-run" {
		t.Fatalf("expected dry-run success, got %+v", outcome)
	}
	if sender.calls != 0 {
		t.Fatal("dry-run must not call the sender")
	}
}

func TestRetryWithBackoff(t *testing.T) {
	t.Parallel()

	sender := &scriptedSender{name: "twitter", errs: []error{
		faults.Transientf("503"),
		faults.Transientf("503"),
	}}
	d := NewThrottled(sender, Limits{RequestsPerHour: 3600, RetryAttempts: 3, BackoffBase: 2.0}, false, logging.Component(nil, "test"))
	slept := withFakeClock(d)

	outcome := d.Send(context.Background(), "hello", "", "")
	if !outcome.Success || outcome.RemoteID != "remote-1" {
		t.Fatalf("expected eventual success, got %+v", outcome)
	}
	if sender.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", sender.calls)
	}

	// Backoff sleeps base^attempt seconds before retries 2 and 3.
	var backoffs []time.Duration
	for _, s := range *slept {
		if s >= time.Second {
			backoffs = append(backoffs, s)
		}
	}
	if len(backoffs) != 2 || backoffs[0] != 2*time.Second || backoffs[1] != 4*time.Second {
		t.Fatalf("unexpected backoff sequence: %v", backoffs)
	}
}

func TestRetriesExhausted(t *testing.T) {
	t.Parallel()

	sender := &scriptedSender{name: "twitter", errs: []error{
		faults.Transientf("503"),
		faults.Transientf("503"),
		faults.Transientf("503"),
	}}
	d := NewThrottled(sender, Limits{RequestsPerHour: 3600, RetryAttempts: 3, BackoffBase: 2.0}, false, logging.Component(nil, "test"))
	withFakeClock(d)

	outcome := d.Send(context.Background(), "hello", "", "")
	if outcome.Success {
		t.Fatal("expected failure after exhausted retries")
	}
	if outcome.Error == "" {
		t.Fatal("expected error message in outcome")
	}
	if sender.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", sender.calls)
	}
}

func TestAuthFailureNotRetried(t *testing.T) {
	t.Parallel()

	sender := &scriptedSender{name: "facebook", errs: []error{
		faults.New(faults.KindAuth, errors.New("invalid token")),
	}}
	d := NewThrottled(sender, Limits{RequestsPerHour: 3600, RetryAttempts: 3, BackoffBase: 2.0}, false, logging.Component(nil, "test"))
	withFakeClock(d)

	outcome := d.Send(context.Background(), "hello", "", "")
	if outcome.Success {
		t.Fatal("expected failure")
	}
	if sender.calls != 1 {
		t.Fatalf("auth failure must not be retried, got %d attempts", sender.calls)
	}
}

func TestRateLimitGapBetweenSends(t *testing.T) {
	t.Parallel()

	sender := &scriptedSender{name: "facebook"}
	// 200/hour means an 18s minimum gap.
	d := NewThrottled(sender, Limits{RequestsPerHour: 200, RetryAttempts: 3, BackoffBase: 2.0}, false, logging.Component(nil, "test"))
	slept := withFakeClock(d)

	d.Send(context.Background(), "first", "", "")
	d.Send(context.Background(), "second", "", "")

	if sender.calls != 2 {
		t.Fatalf("expected 2 sends, got %d", sender.calls)
	}
	if len(*slept) != 1 || (*slept)[0] != 18*time.Second {
		t.Fatalf("expected one 18s gap sleep, got %v", *slept)
	}
}
