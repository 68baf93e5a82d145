package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-journal/cache"
	models "trading-journal/database/models_pkg"
)

type fakeProcessor struct {
	mu      sync.Mutex
	updates []models.PerformanceUpdate
	err     error
}

func (f *fakeProcessor) ProcessPerformanceUpdate(_ context.Context, update models.PerformanceUpdate) ([]*models.StrategyAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update)
	return nil, f.err
}

func (f *fakeProcessor) received() []models.PerformanceUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PerformanceUpdate(nil), f.updates...)
}

func newFeedRedis(t *testing.T) *cache.RedisClient {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.NewRedisClientFromClient(client)
}

func TestPerformanceFeed_DeliversUpdates(t *testing.T) {
	rc := newFeedRedis(t)
	processor := &fakeProcessor{}
	feed := NewPerformanceFeed(rc, "", processor, nil)

	ctx := context.Background()
	require.NoError(t, feed.Start(ctx))
	defer feed.Stop()

	dd := 18.5
	require.NoError(t, rc.Publish(ctx, cache.PerformanceUpdatesChannel, models.PerformanceUpdate{
		UserID:     "u1",
		StrategyID: "s1",
		Current:    models.PerformanceSnapshot{StrategyID: "s1", TotalTrades: 42, MaxDrawdown: &dd},
	}))

	require.Eventually(t, func() bool { return len(processor.received()) == 1 }, time.Second, 10*time.Millisecond)
	got := processor.received()[0]
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, 42, got.Current.TotalTrades)
	require.NotNil(t, got.Current.MaxDrawdown)
	assert.Equal(t, 18.5, *got.Current.MaxDrawdown)
}

func TestPerformanceFeed_SurvivesBadMessages(t *testing.T) {
	rc := newFeedRedis(t)
	processor := &fakeProcessor{err: errors.New("invalid update")}
	feed := NewPerformanceFeed(rc, "custom:perf", processor, nil)

	ctx := context.Background()
	require.NoError(t, feed.Start(ctx))
	defer feed.Stop()

	// Publish marshals to JSON, so a bare string decodes as an invalid update
	require.NoError(t, rc.Publish(ctx, "custom:perf", "not an update"))
	require.NoError(t, rc.Publish(ctx, "custom:perf", models.PerformanceUpdate{UserID: "u1", StrategyID: "s1"}))
	require.NoError(t, rc.Publish(ctx, "custom:perf", models.PerformanceUpdate{UserID: "u1", StrategyID: "s2"}))

	require.Eventually(t, func() bool { return len(processor.received()) == 2 }, time.Second, 10*time.Millisecond)
}

func TestPerformanceFeed_StopWithoutStart(t *testing.T) {
	feed := NewPerformanceFeed(nil, "", &fakeProcessor{}, nil)
	assert.NotPanics(t, feed.Stop)
}
