// Package vector keeps same-day article embeddings in Redis for
// near-duplicate queries. Entries expire after the retention window so
// drift in the keyspace cleans itself up.
package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"newsdesk/internal/domain"
	"newsdesk/internal/ports"
)

const (
	keyPrefix = "newsdesk:vec"
	retention = 48 * time.Hour
)

type entry struct {
	Vector    []float32 `json:"vector"`
	Category  string    `json:"category"`
	ArticleID int64     `json:"article_id"`
}

// Index stores embeddings keyed by content hash, grouped per day so a
// nearest-neighbor query only scans that day's entries.
type Index struct {
	client *redis.Client
	logger *slog.Logger
}

var _ ports.SimilarityIndex = (*Index)(nil)

// New connects to Redis and verifies the connection.
func New(ctx context.Context, addr, password string, db int, logger *slog.Logger) (*Index, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Index{client: client, logger: logger}, nil
}

// NewWithClient wraps an existing client, used by tests.
func NewWithClient(client *redis.Client, logger *slog.Logger) *Index {
	return &Index{client: client, logger: logger}
}

// Close releases the Redis connection.
func (i *Index) Close() error {
	return i.client.Close()
}

func daySetKey(day string) string {
	return fmt.Sprintf("%s:%s", keyPrefix, day)
}

func entryKey(day, key string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, day, key)
}

// Upsert writes one embedding under the day's set and refreshes TTLs.
func (i *Index) Upsert(ctx context.Context, key string, vector []float32, tags ports.VectorTags) error {
	payload, err := json.Marshal(entry{
		Vector:    vector,
		Category:  tags.Category,
		ArticleID: tags.ArticleID,
	})
	if err != nil {
		return fmt.Errorf("marshal vector entry: %w", err)
	}

	pipe := i.client.TxPipeline()
	pipe.Set(ctx, entryKey(tags.Day, key), payload, retention)
	pipe.SAdd(ctx, daySetKey(tags.Day), key)
	pipe.Expire(ctx, daySetKey(tags.Day), retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store vector: %w", err)
	}
	return nil
}

// QueryNearest scans the day's entries and returns the cosine distance
// of the closest one. found is false for an empty day.
func (i *Index) QueryNearest(ctx context.Context, vector []float32, day string) (float64, bool, error) {
	keys, err := i.client.SMembers(ctx, daySetKey(day)).Result()
	if err != nil {
		return 0, false, fmt.Errorf("list day vectors: %w", err)
	}
	if len(keys) == 0 {
		return 0, false, nil
	}

	full := make([]string, len(keys))
	for n, k := range keys {
		full[n] = entryKey(day, k)
	}
	values, err := i.client.MGet(ctx, full...).Result()
	if err != nil {
		return 0, false, fmt.Errorf("load day vectors: %w", err)
	}

	best := -1.0
	found := false
	for n, raw := range values {
		str, ok := raw.(string)
		if !ok {
			// Entry expired ahead of its set membership.
			continue
		}
		var e entry
		if err := json.Unmarshal([]byte(str), &e); err != nil {
			i.logger.Warn("skipping unreadable vector entry", "key", keys[n], "error", err)
			continue
		}
		found = true
		if sim := domain.CosineSimilarity(vector, e.Vector); sim > best {
			best = sim
		}
	}
	if !found {
		return 0, false, nil
	}
	return 1 - best, true, nil
}
