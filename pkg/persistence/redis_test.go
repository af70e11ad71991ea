package persistence

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRedisTestStore connects to REDIS_ADDR using database 15, which is flushed.
func newRedisTestStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	require.NoError(t, client.FlushDB(ctx).Err())
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return NewRedisStore(client)
}

func TestRedisRoadmapRoundTrip(t *testing.T) {
	store := newRedisTestStore(t)
	ctx := context.Background()

	id, err := store.SaveRoadmap(ctx, sampleRoadmap())
	require.NoError(t, err)

	got, err := store.GetRoadmap(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Build a mobile app for tracking workouts", got.UserInput)
	assert.Len(t, got.Markdowns, 2)

	_, err = store.GetRoadmap(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := store.ListRoadmaps(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRedisFeedback(t *testing.T) {
	store := newRedisTestStore(t)
	ctx := context.Background()

	roadmapID, err := store.SaveRoadmap(ctx, sampleRoadmap())
	require.NoError(t, err)
	_, err = store.SaveFeedback(ctx, FeedbackRecord{RoadmapID: roadmapID, Sentiment: SentimentUp})
	require.NoError(t, err)

	_, err = store.SaveFeedback(ctx, FeedbackRecord{Sentiment: "sideways"})
	assert.ErrorIs(t, err, ErrInvalidSentiment)

	list, err := store.ListFeedback(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Build a mobile app for tracking workouts", list[0].UserInput)
}
