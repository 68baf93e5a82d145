package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"trading-journal/database"
	models "trading-journal/database/models_pkg"
	"trading-journal/monitoring"
)

// ErrNoSender is returned for channels without a registered sender
var ErrNoSender = errors.New("no sender registered for channel")

// Sender delivers one alert over one channel
type Sender interface {
	Send(ctx context.Context, alert *models.StrategyAlert) error
}

// DigestSender is implemented by senders that can deliver a batched digest
type DigestSender interface {
	SendDigest(ctx context.Context, userID string, bucket models.FrequencyBucket, entries []models.DigestEntry) error
}

// SenderFunc adapts a function to Sender
type SenderFunc func(ctx context.Context, alert *models.StrategyAlert) error

// Send implements Sender
func (f SenderFunc) Send(ctx context.Context, alert *models.StrategyAlert) error {
	return f(ctx, alert)
}

// Dispatcher routes notifications to the sender registered for each channel.
// Failures are logged and returned as *database.DispatchError; they never
// touch the alert itself.
type Dispatcher struct {
	mu      sync.RWMutex
	senders map[models.Channel]Sender
	logger  *zap.Logger
}

// NewDispatcher creates a dispatcher with no senders
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		senders: make(map[models.Channel]Sender),
		logger:  logger,
	}
}

// Register sets the sender for a channel, replacing any previous one
func (d *Dispatcher) Register(channel models.Channel, sender Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.senders[channel] = sender
}

func (d *Dispatcher) sender(channel models.Channel) (Sender, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.senders[channel]
	return s, ok
}

// Send delivers alert over channel
func (d *Dispatcher) Send(ctx context.Context, channel models.Channel, alert *models.StrategyAlert) error {
	s, ok := d.sender(channel)
	if !ok {
		return d.fail(channel, alert.ID, alert.UserID, ErrNoSender)
	}
	if err := s.Send(ctx, alert); err != nil {
		return d.fail(channel, alert.ID, alert.UserID, err)
	}

	monitoring.NotificationsDispatched.WithLabelValues(string(channel), monitoring.OutcomeDelivered).Inc()
	d.logger.Debug("notification delivered",
		zap.String("channel", string(channel)),
		zap.String("alert_id", alert.ID),
		zap.String("user_id", alert.UserID))
	return nil
}

// SendDigest delivers a batch of queued notifications over channel
func (d *Dispatcher) SendDigest(ctx context.Context, channel models.Channel, userID string, bucket models.FrequencyBucket, entries []models.DigestEntry) error {
	if len(entries) == 0 {
		return nil
	}
	s, ok := d.sender(channel)
	if !ok {
		return d.fail(channel, "digest", userID, ErrNoSender)
	}
	ds, ok := s.(DigestSender)
	if !ok {
		return d.fail(channel, "digest", userID, fmt.Errorf("channel %s does not support digests", channel))
	}
	if err := ds.SendDigest(ctx, userID, bucket, entries); err != nil {
		return d.fail(channel, "digest", userID, err)
	}

	monitoring.NotificationsDispatched.WithLabelValues(string(channel), monitoring.OutcomeDelivered).Inc()
	d.logger.Info("digest delivered",
		zap.String("channel", string(channel)),
		zap.String("user_id", userID),
		zap.String("bucket", string(bucket)),
		zap.Int("entries", len(entries)))
	return nil
}

func (d *Dispatcher) fail(channel models.Channel, alertID, userID string, err error) error {
	monitoring.NotificationsDispatched.WithLabelValues(string(channel), monitoring.OutcomeFailed).Inc()
	d.logger.Warn("notification dispatch failed",
		zap.String("channel", string(channel)),
		zap.String("alert_id", alertID),
		zap.String("user_id", userID),
		zap.Error(err))
	return &database.DispatchError{Channel: string(channel), AlertID: alertID, Err: err}
}
