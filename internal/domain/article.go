package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Status tracks an article through the pipeline lifecycle.
// Transitions only move forward: pending → selected → approved|skipped → published|failed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSelected  Status = "selected"
	StatusApproved  Status = "approved"
	StatusSkipped   Status = "skipped"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// ClassifyMethod records which classifier layer produced the result.
type ClassifyMethod string

const (
	MethodEmbedding ClassifyMethod = "embedding"
	MethodRegex     ClassifyMethod = "regex"
)

// Reserved category names present in every configuration.
const (
	CategoryGeneral = "GENERAL"
	CategoryNoise   = "NOISE"
)

// Article is the core entity flowing through the pipeline.
// ContentHash is the global dedup key; ID is assigned by the store.
type Article struct {
	ID          int64
	ContentHash string
	Title       string
	Link        string
	Summary     string
	SourceFeed  string
	Category    string
	Score       float64
	Method      ClassifyMethod
	Embedding   []float32
	Status      Status
	CreatedAt   time.Time
	PublishedAt time.Time
}

// HashContent derives the stable dedup fingerprint from title and link.
func HashContent(title, link string) string {
	sum := sha256.Sum256([]byte(title + link))
	return hex.EncodeToString(sum[:])
}
