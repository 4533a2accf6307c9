package ports

import (
	"context"
	"errors"
	"time"

	"newsdesk/internal/domain"
)

// ErrEmbeddingUnavailable marks an embedding backend that cannot serve
// right now. Callers must treat it as a degradation signal, never fatal.
var ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")

// FeedSource produces candidate articles with title, link, summary,
// content hash and source already set.
type FeedSource interface {
	Fetch(ctx context.Context) ([]domain.Article, error)
}

// EmbeddingProvider encodes a batch of texts into fixed-length vectors.
// Unavailability is reported as ErrEmbeddingUnavailable and must be safe
// to probe repeatedly.
type EmbeddingProvider interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorTags annotate an indexed embedding for later filtered queries.
type VectorTags struct {
	Day       string
	Category  string
	ArticleID int64
}

// SimilarityIndex holds article embeddings for same-day near-duplicate
// detection. QueryNearest returns the cosine distance of the single
// nearest neighbor among entries tagged with the given day.
type SimilarityIndex interface {
	Upsert(ctx context.Context, key string, vector []float32, tags VectorTags) error
	QueryNearest(ctx context.Context, vector []float32, day string) (distance float64, found bool, err error)
}

// Store is the durable single-writer persistence boundary.
type Store interface {
	EnsureSchema(ctx context.Context) error

	// ExistingHashes reports which of the given content hashes are already stored.
	ExistingHashes(ctx context.Context, hashes []string) (map[string]bool, error)
	// InsertArticle persists a new article if its hash is absent.
	// Returns false when the hash already existed; on success the article ID is set.
	InsertArticle(ctx context.Context, article *domain.Article) (bool, error)
	// PendingByCategory returns up to limit pending articles of one category
	// with score above minScore, best first.
	PendingByCategory(ctx context.Context, category string, minScore float64, limit int) ([]domain.Article, error)
	UpdateStatus(ctx context.Context, ids []int64, status domain.Status) error

	Rotation(ctx context.Context) (domain.RotationState, error)
	AdvanceRotation(ctx context.Context) error
	ResetRotation(ctx context.Context) error

	SaveApprovalJob(ctx context.Context, job domain.ApprovalJob) error
	// SetDecision records a terminal decision; it is a no-op for jobs
	// that are already decided.
	SetDecision(ctx context.Context, articleID int64, decision domain.Decision) error
	Decision(ctx context.Context, articleID int64) (domain.Decision, error)

	AppendPublishRecord(ctx context.Context, rec domain.PublishRecord) error

	// ProviderBlockedUntil returns the zero time when the provider has no
	// block record; a stored date in the past counts as unblocked by the caller.
	ProviderBlockedUntil(ctx context.Context, name string) (time.Time, error)
	BlockProviderUntil(ctx context.Context, name string, until time.Time) error

	Stats(ctx context.Context) (domain.StoreStats, error)
}

// DecisionEvent is one external approval action pulled from the channel.
type DecisionEvent struct {
	Action     domain.ApprovalAction
	ArticleID  int64
	CallbackID string
}

// NotificationChannel is the human approval surface. Usable can flip to
// false mid-session (e.g. on an authorization failure); implementations
// must return errors instead of panicking.
type NotificationChannel interface {
	Usable() bool
	// Send posts an approval request and returns an opaque handle for
	// retracting its action affordance later.
	Send(ctx context.Context, article domain.Article) (handle string, err error)
	// Notify posts a notification-only message with no decision affordance.
	Notify(ctx context.Context, article domain.Article) error
	Poll(ctx context.Context) ([]DecisionEvent, error)
	Acknowledge(ctx context.Context, ev DecisionEvent) error
	RetractAffordance(ctx context.Context, handle string) error
}

// PublishOutcome is the result of one destination delivery.
type PublishOutcome struct {
	Success  bool
	RemoteID string
	Error    string
}

// Destination is one publish target. Name is used for rate-limit and
// backoff configuration lookup.
type Destination interface {
	Name() string
	Send(ctx context.Context, text, imageRef, link string) PublishOutcome
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
