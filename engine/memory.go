package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	models "trading-journal/database/models_pkg"
)

// MemoryCounter is a process-local DailyCounter. Only the newest day seen by
// Increment and later days are kept.
type MemoryCounter struct {
	mu   sync.Mutex
	days map[string]map[string]int64
}

// NewMemoryCounter creates an empty in-memory counter
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{days: make(map[string]map[string]int64)}
}

func dayKey(day time.Time) string {
	return day.UTC().Format("20060102")
}

// Count implements DailyCounter
func (c *MemoryCounter) Count(_ context.Context, userID string, day time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.days[dayKey(day)][userID], nil
}

// Increment implements DailyCounter. Counts of days before day are dropped.
func (c *MemoryCounter) Increment(_ context.Context, userID string, day time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := dayKey(day)
	for d := range c.days {
		if d < k {
			delete(c.days, d)
		}
	}
	users, ok := c.days[k]
	if !ok {
		users = make(map[string]int64)
		c.days[k] = users
	}
	users[userID]++
	return users[userID], nil
}

// MemoryDigestQueue is a process-local DigestQueue
type MemoryDigestQueue struct {
	mu      sync.Mutex
	entries map[models.FrequencyBucket]map[string][]models.DigestEntry
}

// NewMemoryDigestQueue creates an empty in-memory digest queue
func NewMemoryDigestQueue() *MemoryDigestQueue {
	return &MemoryDigestQueue{entries: make(map[models.FrequencyBucket]map[string][]models.DigestEntry)}
}

// Push implements DigestQueue
func (q *MemoryDigestQueue) Push(_ context.Context, entry models.DigestEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	byUser, ok := q.entries[entry.Bucket]
	if !ok {
		byUser = make(map[string][]models.DigestEntry)
		q.entries[entry.Bucket] = byUser
	}
	byUser[entry.UserID] = append(byUser[entry.UserID], entry)
	return nil
}

// Users implements DigestQueue
func (q *MemoryDigestQueue) Users(_ context.Context, bucket models.FrequencyBucket) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	users := make([]string, 0, len(q.entries[bucket]))
	for u := range q.entries[bucket] {
		users = append(users, u)
	}
	sort.Strings(users)
	return users, nil
}

// Drain implements DigestQueue
func (q *MemoryDigestQueue) Drain(_ context.Context, userID string, bucket models.FrequencyBucket) ([]models.DigestEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.entries[bucket][userID]
	delete(q.entries[bucket], userID)
	return out, nil
}
