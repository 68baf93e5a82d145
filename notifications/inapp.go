package notifications

import (
	"context"
	"errors"

	models "trading-journal/database/models_pkg"
)

// In-app event names
const (
	EventAlertCreated = "alert_created"
	EventAlertDigest  = "alert_digest"
)

// UserPublisher pushes an event to one user's live connections
type UserPublisher interface {
	PublishToUser(userID, event string, payload interface{}) error
}

// InAppSender delivers alerts to connected SSE/WebSocket clients
type InAppSender struct {
	publisher UserPublisher
}

// NewInAppSender creates an in-app sender on top of a publisher
func NewInAppSender(publisher UserPublisher) *InAppSender {
	return &InAppSender{publisher: publisher}
}

// Send implements Sender
func (s *InAppSender) Send(ctx context.Context, alert *models.StrategyAlert) error {
	if s.publisher == nil {
		return errors.New("in-app publisher not configured")
	}
	return s.publisher.PublishToUser(alert.UserID, EventAlertCreated, alert)
}

// SendDigest implements DigestSender
func (s *InAppSender) SendDigest(ctx context.Context, userID string, bucket models.FrequencyBucket, entries []models.DigestEntry) error {
	if s.publisher == nil {
		return errors.New("in-app publisher not configured")
	}
	return s.publisher.PublishToUser(userID, EventAlertDigest, map[string]interface{}{
		"bucket":  bucket,
		"entries": entries,
	})
}
