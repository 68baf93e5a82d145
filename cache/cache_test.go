package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "trading-journal/database/models_pkg"
)

func newTestRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisClientFromClient(client), mr
}

func TestRedisClient_SetGetDelete(t *testing.T) {
	rc, _ := newTestRedis(t)
	ctx := context.Background()

	type payload struct {
		Name string `json:"name"`
	}
	require.NoError(t, rc.Set(ctx, "k", payload{Name: "breakout"}, time.Minute))

	var got payload
	require.NoError(t, rc.Get(ctx, "k", &got))
	assert.Equal(t, "breakout", got.Name)

	require.NoError(t, rc.Delete(ctx, "k"))
	assert.ErrorIs(t, rc.Get(ctx, "k", &got), redis.Nil)
}

func TestDailyCounter(t *testing.T) {
	rc, mr := newTestRedis(t)
	ctx := context.Background()
	counter := NewDailyCounter(rc)
	day := time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC)

	n, err := counter.Count(ctx, "u1", day)
	require.NoError(t, err)
	assert.Zero(t, n)

	for i := 1; i <= 3; i++ {
		n, err = counter.Increment(ctx, "u1", day)
		require.NoError(t, err)
		assert.Equal(t, int64(i), n)
	}

	n, err = counter.Count(ctx, "u1", day.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n, "same UTC day")

	n, err = counter.Count(ctx, "u1", day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n, "next day starts fresh")

	n, err = counter.Count(ctx, "u2", day)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, dailyCounterTTL, mr.TTL("alerts:daily:u1:20260601"))
}

func TestDigestQueue(t *testing.T) {
	rc, _ := newTestRedis(t)
	ctx := context.Background()
	q := NewDigestQueue(rc)
	now := time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC)

	require.NoError(t, q.Push(ctx, models.DigestEntry{AlertID: "a1", UserID: "u1", Bucket: models.BucketDaily, Channel: models.ChannelEmail, QueuedAt: now}))
	require.NoError(t, q.Push(ctx, models.DigestEntry{AlertID: "a2", UserID: "u1", Bucket: models.BucketDaily, Channel: models.ChannelInApp, QueuedAt: now}))
	require.NoError(t, q.Push(ctx, models.DigestEntry{AlertID: "a3", UserID: "u2", Bucket: models.BucketWeekly, Channel: models.ChannelEmail, QueuedAt: now}))

	users, err := q.Users(ctx, models.BucketDaily)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, users)

	entries, err := q.Drain(ctx, "u1", models.BucketDaily)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a1", entries[0].AlertID)
	assert.Equal(t, "a2", entries[1].AlertID)
	assert.True(t, entries[0].QueuedAt.Equal(now))

	entries, err = q.Drain(ctx, "u1", models.BucketDaily)
	require.NoError(t, err)
	assert.Empty(t, entries)

	users, err = q.Users(ctx, models.BucketDaily)
	require.NoError(t, err)
	assert.Empty(t, users)

	users, err = q.Users(ctx, models.BucketWeekly)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, users)
}

func TestNilRedisFailsSoft(t *testing.T) {
	ctx := context.Background()
	_, err := NewDailyCounter(nil).Increment(ctx, "u1", time.Now())
	assert.Error(t, err)
	assert.Error(t, NewDigestQueue(nil).Push(ctx, models.DigestEntry{UserID: "u1"}))
}

func TestPublishSubscribe(t *testing.T) {
	rc, _ := newTestRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := rc.Subscribe(ctx, PerformanceUpdatesChannel)
	require.NotNil(t, sub)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, rc.Publish(ctx, PerformanceUpdatesChannel, models.PerformanceUpdate{UserID: "u1", StrategyID: "s1"}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Contains(t, msg.Payload, `"strategy_id":"s1"`)
}
