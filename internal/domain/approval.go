package domain

import "time"

// Decision is the terminal outcome of one approval job. Once a job
// leaves DecisionPending it never changes again.
type Decision string

const (
	DecisionPending  Decision = "pending"
	DecisionApproved Decision = "approved"
	DecisionSkipped  Decision = "skipped"
)

// ApprovalAction is what an external decision event asks for.
type ApprovalAction string

const (
	ActionApprove    ApprovalAction = "approve"
	ActionSkip       ApprovalAction = "skip"
	ActionApproveAll ApprovalAction = "approve_all"
)

// ApprovalJob links an article to the notification sent for it.
// MessageRef is the opaque channel handle used to retract the action
// affordance after a decision lands.
type ApprovalJob struct {
	ArticleID  int64
	MessageRef string
	Decision   Decision
	UpdatedAt  time.Time
}

// RotationState is the single persistent record that shifts the category
// priority order between runs. Read once per run, advanced once at the end.
type RotationState struct {
	LastIndex int64
	RunCount  int64
	UpdatedAt time.Time
}

// PublishStatus is the outcome of one delivery attempt to one destination.
type PublishStatus string

const (
	PublishOK     PublishStatus = "published"
	PublishFailed PublishStatus = "failed"
)

// PublishRecord is one row of the append-only publish log:
// one record per (article, destination) attempt.
type PublishRecord struct {
	ArticleID   int64
	Destination string
	RemoteID    string
	Status      PublishStatus
	Error       string
	CreatedAt   time.Time
}

// StoreStats is a read-only snapshot used by the status command.
type StoreStats struct {
	Total      int64
	ByStatus   map[string]int64
	ByCategory map[string]int64
	Rotation   RotationState
}
