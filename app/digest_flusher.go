package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	models "trading-journal/database/models_pkg"
	"trading-journal/engine"
	"trading-journal/notifications"
)

// DigestSender delivers one digest over one channel
type DigestSender interface {
	SendDigest(ctx context.Context, channel models.Channel, userID string, bucket models.FrequencyBucket, entries []models.DigestEntry) error
}

// DigestFlusher periodically drains one digest bucket and sends one digest per
// user and channel
type DigestFlusher struct {
	queue    engine.DigestQueue
	sender   DigestSender
	bucket   models.FrequencyBucket
	interval time.Duration
	logger   *zap.Logger
	done     chan bool
	stopOnce sync.Once
}

// NewDigestFlusher creates a flusher for bucket
func NewDigestFlusher(queue engine.DigestQueue, sender DigestSender, bucket models.FrequencyBucket, interval time.Duration, logger *zap.Logger) *DigestFlusher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = bucketInterval(bucket)
	}
	return &DigestFlusher{
		queue:    queue,
		sender:   sender,
		bucket:   bucket,
		interval: interval,
		logger:   logger.With(zap.String("bucket", string(bucket))),
		done:     make(chan bool),
	}
}

// Start begins the flush loop. Nothing is sent at startup; the first digest
// goes out one interval later.
func (df *DigestFlusher) Start() {
	df.logger.Info("📬 Digest flusher started", zap.Duration("interval", df.interval))

	ticker := time.NewTicker(df.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := df.Flush(context.Background()); err != nil {
				df.logger.Warn("⚠️ Digest flush incomplete", zap.Error(err))
			}
		case <-df.done:
			df.logger.Info("📬 Digest flusher stopped")
			return
		}
	}
}

// Stop stops the flush loop
func (df *DigestFlusher) Stop() {
	df.stopOnce.Do(func() { close(df.done) })
}

// Flush sends every queued digest of the bucket and returns the number of
// digests delivered. Entries of a failed delivery are queued again, except
// for channels that have no sender at all.
func (df *DigestFlusher) Flush(ctx context.Context) (int, error) {
	users, err := df.queue.Users(ctx, df.bucket)
	if err != nil {
		return 0, err
	}

	sent := 0
	var errs []error
	for _, userID := range users {
		entries, err := df.queue.Drain(ctx, userID, df.bucket)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		for _, channel := range models.AllChannels() {
			group := entriesFor(entries, channel)
			if len(group) == 0 {
				continue
			}
			err := df.sender.SendDigest(ctx, channel, userID, df.bucket, group)
			if err == nil {
				sent++
				continue
			}
			if errors.Is(err, notifications.ErrNoSender) {
				continue
			}
			errs = append(errs, err)
			df.requeue(ctx, group)
		}
	}
	return sent, errors.Join(errs...)
}

func (df *DigestFlusher) requeue(ctx context.Context, entries []models.DigestEntry) {
	for _, e := range entries {
		if err := df.queue.Push(ctx, e); err != nil {
			df.logger.Error("digest entry lost", zap.String("alert_id", e.AlertID), zap.String("user_id", e.UserID), zap.Error(err))
		}
	}
}

func bucketInterval(bucket models.FrequencyBucket) time.Duration {
	if bucket == models.BucketWeekly {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

func entriesFor(entries []models.DigestEntry, channel models.Channel) []models.DigestEntry {
	var out []models.DigestEntry
	for _, e := range entries {
		if e.Channel == channel {
			out = append(out, e)
		}
	}
	return out
}
