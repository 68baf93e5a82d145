package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"trading-journal/cache"
	models "trading-journal/database/models_pkg"
)

// PerformanceProcessor evaluates one recalculated strategy
type PerformanceProcessor interface {
	ProcessPerformanceUpdate(ctx context.Context, update models.PerformanceUpdate) ([]*models.StrategyAlert, error)
}

// PerformanceFeed consumes performance recalculations published on a Redis channel
type PerformanceFeed struct {
	redis     *cache.RedisClient
	channel   string
	processor PerformanceProcessor
	logger    *zap.Logger
	cancel    context.CancelFunc
	stopped   chan struct{}
	mu        sync.Mutex
}

// NewPerformanceFeed creates a feed; channel defaults to cache.PerformanceUpdatesChannel
func NewPerformanceFeed(redis *cache.RedisClient, channel string, processor PerformanceProcessor, logger *zap.Logger) *PerformanceFeed {
	if channel == "" {
		channel = cache.PerformanceUpdatesChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PerformanceFeed{
		redis:     redis,
		channel:   channel,
		processor: processor,
		logger:    logger,
	}
}

// Start subscribes and processes messages until Stop. It returns once the
// subscription is confirmed.
func (pf *PerformanceFeed) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	pubsub := pf.redis.Subscribe(ctx, pf.channel)
	if pubsub == nil {
		cancel()
		return fmt.Errorf("redis client not initialized")
	}
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", pf.channel, err)
	}

	stopped := make(chan struct{})
	pf.mu.Lock()
	pf.cancel = cancel
	pf.stopped = stopped
	pf.mu.Unlock()

	go func() {
		defer close(stopped)
		defer pubsub.Close()
		pf.logger.Info("📈 Performance feed subscribed", zap.String("channel", pf.channel))

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				pf.logger.Info("📈 Performance feed stopped")
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				if err := pf.handle(ctx, msg.Payload); err != nil {
					pf.logger.Warn("⚠️ Performance update rejected", zap.Error(err))
				}
			}
		}
	}()
	return nil
}

// Stop ends the subscription and waits for the consumer to exit
func (pf *PerformanceFeed) Stop() {
	pf.mu.Lock()
	cancel, stopped := pf.cancel, pf.stopped
	pf.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

func (pf *PerformanceFeed) handle(ctx context.Context, payload string) error {
	var update models.PerformanceUpdate
	if err := json.Unmarshal([]byte(payload), &update); err != nil {
		return fmt.Errorf("decode performance update: %w", err)
	}

	alerts, err := pf.processor.ProcessPerformanceUpdate(ctx, update)
	if err != nil {
		return err
	}
	if len(alerts) > 0 {
		pf.logger.Debug("performance update raised alerts",
			zap.String("user_id", update.UserID),
			zap.String("strategy_id", update.StrategyID),
			zap.Int("alerts", len(alerts)))
	}
	return nil
}
