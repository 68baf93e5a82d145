package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	models "trading-journal/database/models_pkg"
)

// PerformanceUpdatesChannel is the Pub/Sub channel carrying PerformanceUpdate events
const PerformanceUpdatesChannel = "performance:updates"

// dailyCounterTTL keeps yesterday's counter readable across time zones
const dailyCounterTTL = 48 * time.Hour

// DailyCounter counts alerts created per user and UTC day
type DailyCounter struct {
	redis *RedisClient
}

// NewDailyCounter creates a Redis-backed daily alert counter
func NewDailyCounter(redis *RedisClient) *DailyCounter {
	return &DailyCounter{redis: redis}
}

func dailyKey(userID string, day time.Time) string {
	return fmt.Sprintf("alerts:daily:%s:%s", userID, day.UTC().Format("20060102"))
}

// Count returns the number of alerts created for the user on day
func (c *DailyCounter) Count(ctx context.Context, userID string, day time.Time) (int64, error) {
	if c.redis == nil {
		return 0, fmt.Errorf("redis client not available")
	}
	return c.redis.GetInt(ctx, dailyKey(userID, day))
}

// Increment records one more alert for the user on day and returns the new count
func (c *DailyCounter) Increment(ctx context.Context, userID string, day time.Time) (int64, error) {
	if c.redis == nil {
		return 0, fmt.Errorf("redis client not available")
	}
	return c.redis.IncrWithExpiry(ctx, dailyKey(userID, day), dailyCounterTTL)
}

// DigestQueue is a durable per-user, per-bucket list of notifications waiting for a digest
type DigestQueue struct {
	redis *RedisClient
}

// NewDigestQueue creates a Redis-backed digest queue
func NewDigestQueue(redis *RedisClient) *DigestQueue {
	return &DigestQueue{redis: redis}
}

func digestKey(userID string, bucket models.FrequencyBucket) string {
	return fmt.Sprintf("alerts:digest:%s:%s", bucket, userID)
}

func digestIndexKey(bucket models.FrequencyBucket) string {
	return fmt.Sprintf("alerts:digest:users:%s", bucket)
}

// Push queues an entry for the user's next digest of its bucket
func (q *DigestQueue) Push(ctx context.Context, entry models.DigestEntry) error {
	if q.redis == nil {
		return fmt.Errorf("redis client not available")
	}
	return q.redis.PushJSON(ctx, digestIndexKey(entry.Bucket), entry.UserID, digestKey(entry.UserID, entry.Bucket), entry)
}

// Users lists users with pending entries in bucket
func (q *DigestQueue) Users(ctx context.Context, bucket models.FrequencyBucket) ([]string, error) {
	if q.redis == nil {
		return nil, fmt.Errorf("redis client not available")
	}
	users, err := q.redis.Members(ctx, digestIndexKey(bucket))
	if err != nil {
		return nil, err
	}
	sort.Strings(users)
	return users, nil
}

// Drain removes and returns the user's pending entries for bucket in queue order
func (q *DigestQueue) Drain(ctx context.Context, userID string, bucket models.FrequencyBucket) ([]models.DigestEntry, error) {
	if q.redis == nil {
		return nil, fmt.Errorf("redis client not available")
	}

	raw, err := q.redis.DrainList(ctx, digestIndexKey(bucket), userID, digestKey(userID, bucket))
	if err != nil {
		return nil, err
	}

	entries := make([]models.DigestEntry, 0, len(raw))
	for _, item := range raw {
		var e models.DigestEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
