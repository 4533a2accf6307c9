// Package storage implements the durable store on Postgres. All queries
// are built with squirrel and executed on a pgx pool; operations assume
// the pipeline's single-writer model.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"newsdesk/internal/domain"
	"newsdesk/internal/ports"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store persists articles, rotation state, approval jobs, the publish
// log, and day-scoped provider blocks.
type Store struct {
	pool *pgxpool.Pool
}

var _ ports.Store = (*Store)(nil)

// New connects a pgx pool and verifies the connection.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an existing pool, used by tests.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS articles (
		id           BIGSERIAL PRIMARY KEY,
		content_hash TEXT        NOT NULL UNIQUE,
		title        TEXT        NOT NULL,
		link         TEXT        NOT NULL DEFAULT '',
		summary      TEXT        NOT NULL DEFAULT '',
		category     TEXT        NOT NULL DEFAULT 'GENERAL',
		score        DOUBLE PRECISION NOT NULL DEFAULT 0,
		method       TEXT        NOT NULL DEFAULT 'regex',
		status       TEXT        NOT NULL DEFAULT 'pending',
		source_feed  TEXT        NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		published_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_status_cat
		ON articles (status, category, score DESC)`,
	`CREATE TABLE IF NOT EXISTS rotation_state (
		id         INT PRIMARY KEY CHECK (id = 1),
		last_index BIGINT      NOT NULL DEFAULT 0,
		run_count  BIGINT      NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`INSERT INTO rotation_state (id) VALUES (1) ON CONFLICT (id) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS approval_jobs (
		article_id  BIGINT PRIMARY KEY,
		message_ref TEXT        NOT NULL DEFAULT '',
		decision    TEXT        NOT NULL DEFAULT 'pending',
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS publish_log (
		id          BIGSERIAL PRIMARY KEY,
		article_id  BIGINT      NOT NULL,
		destination TEXT        NOT NULL,
		remote_id   TEXT        NOT NULL DEFAULT '',
		status      TEXT        NOT NULL,
		error_msg   TEXT        NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS provider_blocks (
		name          TEXT PRIMARY KEY,
		blocked_until DATE        NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates all tables if they do not exist. Safe to call on
// every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// ExistingHashes reports which content hashes are already stored.
func (s *Store) ExistingHashes(ctx context.Context, hashes []string) (map[string]bool, error) {
	result := make(map[string]bool, len(hashes))
	if len(hashes) == 0 {
		return result, nil
	}

	query, args, err := psql.Select("content_hash").
		From("articles").
		Where(sq.Expr("content_hash = ANY(?)", hashes)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build hash query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query hashes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("scan hash: %w", err)
		}
		result[hash] = true
	}
	return result, rows.Err()
}

// InsertArticle persists the article unless its hash already exists.
// Returns false without error when the row was already there.
func (s *Store) InsertArticle(ctx context.Context, article *domain.Article) (bool, error) {
	query, args, err := psql.Insert("articles").
		Columns("content_hash", "title", "link", "summary", "category", "score", "method", "status", "source_feed").
		Values(article.ContentHash, article.Title, article.Link, article.Summary,
			article.Category, article.Score, article.Method, domain.StatusPending, article.SourceFeed).
		Suffix("ON CONFLICT (content_hash) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}

	err = s.pool.QueryRow(ctx, query, args...).Scan(&article.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert article: %w", err)
	}
	article.Status = domain.StatusPending
	return true, nil
}

const articleColumns = "id, content_hash, title, link, summary, category, score, method, status, source_feed, created_at"

func scanArticle(row pgx.Row) (domain.Article, error) {
	var a domain.Article
	err := row.Scan(&a.ID, &a.ContentHash, &a.Title, &a.Link, &a.Summary,
		&a.Category, &a.Score, &a.Method, &a.Status, &a.SourceFeed, &a.CreatedAt)
	return a, err
}

// PendingByCategory returns the category's candidate pool: pending
// articles above minScore, best score first, ties broken by id for
// deterministic selection.
func (s *Store) PendingByCategory(ctx context.Context, category string, minScore float64, limit int) ([]domain.Article, error) {
	query, args, err := psql.Select(articleColumns).
		From("articles").
		Where(sq.Eq{"status": domain.StatusPending, "category": category}).
		Where(sq.Gt{"score": minScore}).
		OrderBy("score DESC", "id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build candidates query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var pool []domain.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		pool = append(pool, a)
	}
	return pool, rows.Err()
}

// UpdateStatus moves the given articles to a new lifecycle status;
// publishing also stamps published_at.
func (s *Store) UpdateStatus(ctx context.Context, ids []int64, status domain.Status) error {
	if len(ids) == 0 {
		return nil
	}

	builder := psql.Update("articles").
		Set("status", status).
		Where(sq.Expr("id = ANY(?)", ids))
	if status == domain.StatusPublished {
		builder = builder.Set("published_at", sq.Expr("NOW()"))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build status update: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// Rotation reads the single rotation record.
func (s *Store) Rotation(ctx context.Context) (domain.RotationState, error) {
	query, args, err := psql.Select("last_index", "run_count", "updated_at").
		From("rotation_state").
		Where(sq.Eq{"id": 1}).
		ToSql()
	if err != nil {
		return domain.RotationState{}, fmt.Errorf("build rotation query: %w", err)
	}

	var state domain.RotationState
	err = s.pool.QueryRow(ctx, query, args...).Scan(&state.LastIndex, &state.RunCount, &state.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RotationState{}, nil
	}
	if err != nil {
		return domain.RotationState{}, fmt.Errorf("read rotation: %w", err)
	}
	return state, nil
}

// AdvanceRotation bumps the rotation offset and the run counter.
func (s *Store) AdvanceRotation(ctx context.Context) error {
	query, args, err := psql.Update("rotation_state").
		Set("last_index", sq.Expr("last_index + 1")).
		Set("run_count", sq.Expr("run_count + 1")).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": 1}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build rotation advance: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("advance rotation: %w", err)
	}
	return nil
}

// ResetRotation returns the rotation to its initial position.
func (s *Store) ResetRotation(ctx context.Context) error {
	query, args, err := psql.Update("rotation_state").
		Set("last_index", 0).
		Set("run_count", 0).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": 1}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build rotation reset: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("reset rotation: %w", err)
	}
	return nil
}

// SaveApprovalJob records the notification handle for an article.
func (s *Store) SaveApprovalJob(ctx context.Context, job domain.ApprovalJob) error {
	query, args, err := psql.Insert("approval_jobs").
		Columns("article_id", "message_ref", "decision", "updated_at").
		Values(job.ArticleID, job.MessageRef, domain.DecisionPending, sq.Expr("NOW()")).
		Suffix("ON CONFLICT (article_id) DO UPDATE SET message_ref = EXCLUDED.message_ref, updated_at = NOW()").
		ToSql()
	if err != nil {
		return fmt.Errorf("build approval insert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("save approval job: %w", err)
	}
	return nil
}

// SetDecision records a terminal decision. Jobs that already left
// pending are untouched, so repeated events become no-ops.
func (s *Store) SetDecision(ctx context.Context, articleID int64, decision domain.Decision) error {
	query, args, err := psql.Update("approval_jobs").
		Set("decision", decision).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"article_id": articleID, "decision": domain.DecisionPending}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build decision update: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("set decision: %w", err)
	}
	return nil
}

// Decision returns the recorded decision, pending when no job exists.
func (s *Store) Decision(ctx context.Context, articleID int64) (domain.Decision, error) {
	query, args, err := psql.Select("decision").
		From("approval_jobs").
		Where(sq.Eq{"article_id": articleID}).
		ToSql()
	if err != nil {
		return domain.DecisionPending, fmt.Errorf("build decision query: %w", err)
	}

	var decision domain.Decision
	err = s.pool.QueryRow(ctx, query, args...).Scan(&decision)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DecisionPending, nil
	}
	if err != nil {
		return domain.DecisionPending, fmt.Errorf("read decision: %w", err)
	}
	return decision, nil
}

// AppendPublishRecord adds one row to the append-only publish log.
func (s *Store) AppendPublishRecord(ctx context.Context, rec domain.PublishRecord) error {
	query, args, err := psql.Insert("publish_log").
		Columns("article_id", "destination", "remote_id", "status", "error_msg").
		Values(rec.ArticleID, rec.Destination, rec.RemoteID, rec.Status, rec.Error).
		ToSql()
	if err != nil {
		return fmt.Errorf("build publish log insert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("append publish record: %w", err)
	}
	return nil
}

// ProviderBlockedUntil returns the stored block date for a provider, or
// the zero time when no record exists.
func (s *Store) ProviderBlockedUntil(ctx context.Context, name string) (time.Time, error) {
	query, args, err := psql.Select("blocked_until").
		From("provider_blocks").
		Where(sq.Eq{"name": name}).
		ToSql()
	if err != nil {
		return time.Time{}, fmt.Errorf("build block query: %w", err)
	}

	var until time.Time
	err = s.pool.QueryRow(ctx, query, args...).Scan(&until)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read provider block: %w", err)
	}
	return until, nil
}

// BlockProviderUntil upserts a provider's blocked-until date.
func (s *Store) BlockProviderUntil(ctx context.Context, name string, until time.Time) error {
	query, args, err := psql.Insert("provider_blocks").
		Columns("name", "blocked_until", "updated_at").
		Values(name, until, sq.Expr("NOW()")).
		Suffix("ON CONFLICT (name) DO UPDATE SET blocked_until = EXCLUDED.blocked_until, updated_at = NOW()").
		ToSql()
	if err != nil {
		return fmt.Errorf("build block upsert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("block provider: %w", err)
	}
	return nil
}

// Stats summarizes store contents for the status command.
func (s *Store) Stats(ctx context.Context) (domain.StoreStats, error) {
	stats := domain.StoreStats{
		ByStatus:   map[string]int64{},
		ByCategory: map[string]int64{},
	}

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM articles`).Scan(&stats.Total); err != nil {
		return stats, fmt.Errorf("count articles: %w", err)
	}

	if err := s.groupCount(ctx, "status", stats.ByStatus); err != nil {
		return stats, err
	}
	if err := s.groupCount(ctx, "category", stats.ByCategory); err != nil {
		return stats, err
	}

	rotation, err := s.Rotation(ctx)
	if err != nil {
		return stats, err
	}
	stats.Rotation = rotation
	return stats, nil
}

func (s *Store) groupCount(ctx context.Context, column string, into map[string]int64) error {
	query, _, err := psql.Select(column, "COUNT(*)").
		From("articles").
		GroupBy(column).
		ToSql()
	if err != nil {
		return fmt.Errorf("build group count: %w", err)
	}

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("query group count: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan group count: %w", err)
		}
		into[key] = n
	}
	return rows.Err()
}
