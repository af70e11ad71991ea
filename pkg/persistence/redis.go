package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"roadmapbp/pkg/logx"
)

// Redis key layout. Records are JSON values; the sorted sets index ids by
// creation time in unix milliseconds.
const (
	RoadmapKeyPrefix  = "roadmapbp:roadmap:"
	FeedbackKeyPrefix = "roadmapbp:feedback:"
	RoadmapIndex      = "roadmapbp:index:roadmaps"
	FeedbackIndex     = "roadmapbp:index:feedback"
)

// RedisStore implements Store on Redis.
type RedisStore struct {
	client *redis.Client
	logger *logx.Logger
}

// OpenRedis connects to addr and verifies the connection with PING.
func OpenRedis(ctx context.Context, addr string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	logger := logx.NewLogger("persistence")
	logger.Info("redis store connected: %s (db %d)", addr, db)
	return NewRedisStore(client), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, logger: logx.NewLogger("persistence")}
}

// SaveRoadmap stores rec and indexes it by creation time.
func (s *RedisStore) SaveRoadmap(ctx context.Context, rec RoadmapRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to encode roadmap: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, RoadmapKeyPrefix+rec.ID, data, 0)
	pipe.ZAdd(ctx, RoadmapIndex, redis.Z{Score: float64(rec.CreatedAt.UnixMilli()), Member: rec.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to store roadmap: %w", err)
	}
	return rec.ID, nil
}

// SaveFeedback stores rec after validating its sentiment.
func (s *RedisStore) SaveFeedback(ctx context.Context, rec FeedbackRecord) (string, error) {
	if !ValidSentiment(rec.Sentiment) {
		return "", ErrInvalidSentiment
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.UserInput = ""

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to encode feedback: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, FeedbackKeyPrefix+rec.ID, data, 0)
	pipe.ZAdd(ctx, FeedbackIndex, redis.Z{Score: float64(rec.CreatedAt.UnixMilli()), Member: rec.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to store feedback: %w", err)
	}
	return rec.ID, nil
}

// GetRoadmap loads one roadmap by id.
func (s *RedisStore) GetRoadmap(ctx context.Context, id string) (*RoadmapRecord, error) {
	data, err := s.client.Get(ctx, RoadmapKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load roadmap %s: %w", id, err)
	}

	var rec RoadmapRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode roadmap %s: %w", id, err)
	}
	return &rec, nil
}

// ListRoadmaps returns up to limit roadmaps, newest first.
func (s *RedisStore) ListRoadmaps(ctx context.Context, limit int) ([]RoadmapRecord, error) {
	values, err := s.newest(ctx, RoadmapIndex, RoadmapKeyPrefix, limit)
	if err != nil {
		return nil, err
	}

	out := make([]RoadmapRecord, 0, len(values))
	for _, v := range values {
		var rec RoadmapRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			s.logger.Warn("skipping undecodable roadmap: %v", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// ListFeedback returns up to limit feedback records, newest first, each joined
// with the input of its roadmap.
func (s *RedisStore) ListFeedback(ctx context.Context, limit int) ([]FeedbackRecord, error) {
	values, err := s.newest(ctx, FeedbackIndex, FeedbackKeyPrefix, limit)
	if err != nil {
		return nil, err
	}

	out := make([]FeedbackRecord, 0, len(values))
	for _, v := range values {
		var rec FeedbackRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			s.logger.Warn("skipping undecodable feedback: %v", err)
			continue
		}
		if rec.RoadmapID != "" {
			if roadmap, err := s.GetRoadmap(ctx, rec.RoadmapID); err == nil {
				rec.UserInput = roadmap.UserInput
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// newest fetches the JSON values of the newest limit ids in index.
func (s *RedisStore) newest(ctx context.Context, index, prefix string, limit int) ([]string, error) {
	ids, err := s.client.ZRevRange(ctx, index, 0, int64(listLimit(limit)-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", index, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = prefix + id
	}
	raw, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	values := make([]string, 0, len(raw))
	for _, v := range raw {
		if str, ok := v.(string); ok {
			values = append(values, str)
		}
	}
	return values, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	return nil
}
