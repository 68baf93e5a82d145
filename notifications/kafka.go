package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	models "trading-journal/database/models_pkg"
)

// MessageWriter is the part of *kafka.Writer the outbox uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter creates a writer without a fixed topic; every message names its own
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.CRC32Balancer{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
	}
}

// OutboxMessage is the record handed to the external email and SMS services
type OutboxMessage struct {
	Kind         string                 `json:"kind"` // alert or digest
	Channel      models.Channel         `json:"channel"`
	UserID       string                 `json:"user_id"`
	AlertID      string                 `json:"alert_id,omitempty"`
	StrategyName string                 `json:"strategy_name,omitempty"`
	Type         models.AlertType       `json:"type,omitempty"`
	Severity     models.Severity        `json:"severity,omitempty"`
	Title        string                 `json:"title,omitempty"`
	Message      string                 `json:"message,omitempty"`
	Actions      []string               `json:"suggested_actions,omitempty"`
	Bucket       models.FrequencyBucket `json:"bucket,omitempty"`
	Entries      []models.DigestEntry   `json:"entries,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// KafkaOutbox publishes email and SMS notifications to Kafka topics.
// Delivery itself belongs to the consumers of those topics.
type KafkaOutbox struct {
	writer MessageWriter
	topics map[models.Channel]string
	now    func() time.Time
}

// NewKafkaOutbox creates an outbox; topics maps each channel to its topic
func NewKafkaOutbox(writer MessageWriter, topics map[models.Channel]string) *KafkaOutbox {
	return &KafkaOutbox{writer: writer, topics: topics, now: time.Now}
}

// For returns the Sender of one channel
func (o *KafkaOutbox) For(channel models.Channel) *OutboxSender {
	return &OutboxSender{outbox: o, channel: channel}
}

// Close closes the underlying writer
func (o *KafkaOutbox) Close() error {
	return o.writer.Close()
}

func (o *KafkaOutbox) publish(ctx context.Context, channel models.Channel, msg OutboxMessage) error {
	topic, ok := o.topics[channel]
	if !ok || topic == "" {
		return fmt.Errorf("no topic configured for channel %s", channel)
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal outbox message: %w", err)
	}

	return o.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(msg.UserID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(msg.Kind)},
			{Key: "channel", Value: []byte(channel)},
			{Key: "severity", Value: []byte(msg.Severity)},
		},
		Time: msg.CreatedAt,
	})
}

// OutboxSender is a KafkaOutbox bound to one channel
type OutboxSender struct {
	outbox  *KafkaOutbox
	channel models.Channel
}

// Send implements Sender
func (s *OutboxSender) Send(ctx context.Context, alert *models.StrategyAlert) error {
	return s.outbox.publish(ctx, s.channel, OutboxMessage{
		Kind:         "alert",
		Channel:      s.channel,
		UserID:       alert.UserID,
		AlertID:      alert.ID,
		StrategyName: alert.StrategyName,
		Type:         alert.Type,
		Severity:     alert.Severity,
		Title:        alert.Title,
		Message:      alert.Message,
		Actions:      alert.SuggestedActions,
		CreatedAt:    s.outbox.now(),
	})
}

// SendDigest implements DigestSender
func (s *OutboxSender) SendDigest(ctx context.Context, userID string, bucket models.FrequencyBucket, entries []models.DigestEntry) error {
	return s.outbox.publish(ctx, s.channel, OutboxMessage{
		Kind:      "digest",
		Channel:   s.channel,
		UserID:    userID,
		Bucket:    bucket,
		Entries:   entries,
		Title:     fmt.Sprintf("%d alerts in your %s digest", len(entries), bucket),
		CreatedAt: s.outbox.now(),
	})
}
