package notifications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"trading-journal/cache"
	"trading-journal/database"
	models "trading-journal/database/models_pkg"
	"trading-journal/helpers"
)

// PushContentType is the media type of push payloads
const PushContentType = "application/x-protobuf"

const webhookCacheTTL = time.Hour

// WebhookStore is the persistence the push channel needs
type WebhookStore interface {
	GetActiveWebhooks(ctx context.Context, userID string) ([]database.AlertWebhook, error)
	SaveWebhookLog(ctx context.Context, entry *database.WebhookDeliveryLog) error
}

// WebhookManager delivers alerts to users' push gateways
type WebhookManager struct {
	repo   WebhookStore
	redis  *cache.RedisClient
	client *http.Client
	logger *zap.Logger
}

// NewWebhookManager creates a new webhook manager. redis may be nil.
func NewWebhookManager(repo WebhookStore, redis *cache.RedisClient, logger *zap.Logger) *WebhookManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookManager{
		repo:  repo,
		redis: redis,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Send implements Sender for the push channel
func (wm *WebhookManager) Send(ctx context.Context, alert *models.StrategyAlert) error {
	webhooks, err := wm.activeWebhooks(ctx, alert.UserID)
	if err != nil {
		return fmt.Errorf("load webhooks: %w", err)
	}

	var targets []database.AlertWebhook
	for _, hook := range webhooks {
		if wm.shouldSend(hook, alert) {
			targets = append(targets, hook)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	payload, err := wm.CreatePayload(alert)
	if err != nil {
		return fmt.Errorf("build push payload: %w", err)
	}
	return wm.deliverAll(ctx, targets, alert.ID, payload)
}

// SendDigest implements DigestSender for the push channel
func (wm *WebhookManager) SendDigest(ctx context.Context, userID string, bucket models.FrequencyBucket, entries []models.DigestEntry) error {
	webhooks, err := wm.activeWebhooks(ctx, userID)
	if err != nil {
		return fmt.Errorf("load webhooks: %w", err)
	}
	if len(webhooks) == 0 {
		return nil
	}

	payload, err := wm.CreateDigestPayload(userID, bucket, entries)
	if err != nil {
		return fmt.Errorf("build digest payload: %w", err)
	}
	return wm.deliverAll(ctx, webhooks, "", payload)
}

func (wm *WebhookManager) deliverAll(ctx context.Context, hooks []database.AlertWebhook, alertID string, payload []byte) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, hook := range hooks {
		wg.Add(1)
		go func(hook database.AlertWebhook) {
			defer wg.Done()
			if err := wm.deliverWebhook(ctx, hook, alertID, payload); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("webhook %d: %w", hook.ID, err))
				mu.Unlock()
			}
		}(hook)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func webhookCacheKey(userID string) string {
	return "alert_webhooks:" + userID
}

func (wm *WebhookManager) activeWebhooks(ctx context.Context, userID string) ([]database.AlertWebhook, error) {
	if wm.redis != nil {
		var cached []database.AlertWebhook
		if err := wm.redis.Get(ctx, webhookCacheKey(userID), &cached); err == nil {
			return cached, nil
		}
	}

	webhooks, err := wm.repo.GetActiveWebhooks(ctx, userID)
	if err != nil {
		return nil, err
	}

	if wm.redis != nil {
		_ = wm.redis.Set(ctx, webhookCacheKey(userID), webhooks, webhookCacheTTL)
	}
	return webhooks, nil
}

// CreatePayload encodes an alert as a protobuf Struct
func (wm *WebhookManager) CreatePayload(alert *models.StrategyAlert) ([]byte, error) {
	message := fmt.Sprintf("%s %s | %s | %s", severityIcon(alert.Severity), alert.Severity, alert.StrategyName, alert.Title)
	if alert.CurrentValue != nil && alert.Threshold != nil {
		message += fmt.Sprintf(" | %s: %s (limit %s)", alert.Threshold.Metric,
			helpers.FormatNumber(*alert.CurrentValue, 2), helpers.FormatNumber(alert.Threshold.Value, 2))
	}

	fields := map[string]interface{}{
		"alert_id":      alert.ID,
		"user_id":       alert.UserID,
		"strategy_id":   alert.StrategyID,
		"strategy_name": alert.StrategyName,
		"type":          string(alert.Type),
		"severity":      string(alert.Severity),
		"title":         alert.Title,
		"message":       message,
		"created_at":    alert.CreatedAt.UTC().Format(time.RFC3339),
	}
	if len(alert.SuggestedActions) > 0 {
		actions := make([]interface{}, len(alert.SuggestedActions))
		for i, a := range alert.SuggestedActions {
			actions[i] = a
		}
		fields["suggested_actions"] = actions
	}
	if alert.CurrentValue != nil {
		fields["current_value"] = *alert.CurrentValue
	}

	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(st)
}

// CreateDigestPayload encodes a digest batch as a protobuf Struct
func (wm *WebhookManager) CreateDigestPayload(userID string, bucket models.FrequencyBucket, entries []models.DigestEntry) ([]byte, error) {
	items := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		items = append(items, map[string]interface{}{
			"alert_id":      e.AlertID,
			"strategy_name": e.StrategyName,
			"type":          string(e.Type),
			"severity":      string(e.Severity),
			"title":         e.Title,
			"queued_at":     e.QueuedAt.UTC().Format(time.RFC3339),
		})
	}

	st, err := structpb.NewStruct(map[string]interface{}{
		"user_id": userID,
		"bucket":  string(bucket),
		"count":   len(entries),
		"entries": items,
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(st)
}

func (wm *WebhookManager) shouldSend(hook database.AlertWebhook, alert *models.StrategyAlert) bool {
	if len(hook.AlertTypes) > 0 {
		matched := false
		for _, t := range hook.AlertTypes {
			if strings.EqualFold(t, string(alert.Type)) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if hook.MinSeverity.Valid() && alert.Severity.Rank() < hook.MinSeverity.Rank() {
		return false
	}
	return true
}

func (wm *WebhookManager) deliverWebhook(ctx context.Context, hook database.AlertWebhook, alertID string, payload []byte) error {
	maxRetries := hook.RetryCount
	if maxRetries <= 0 {
		maxRetries = 1
	}
	method := hook.Method
	if method == "" {
		method = http.MethodPost
	}

	var lastErr error
	statusCode := 0

retry:
	for attempt := 1; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, hook.URL, bytes.NewReader(payload))
		if err != nil {
			lastErr = err
			break retry
		}
		req.Header.Set("Content-Type", PushContentType)
		req.Header.Set("User-Agent", "Trading-Journal-Alerts/1.0")

		if hook.AuthType == "BEARER" {
			req.Header.Set("Authorization", "Bearer "+hook.AuthValue)
		} else if hook.AuthHeader != "" {
			req.Header.Set(hook.AuthHeader, hook.AuthValue)
		}

		wm.logger.Debug("sending push webhook",
			zap.String("url", hook.URL), zap.Int("attempt", attempt), zap.Int("max_attempts", maxRetries))

		resp, err := wm.client.Do(req)
		if err == nil {
			statusCode = resp.StatusCode
			resp.Body.Close()
			if statusCode >= 200 && statusCode < 300 {
				wm.logDelivery(ctx, hook.ID, alertID, database.DeliveryStatusSuccess, statusCode, "", attempt)
				return nil
			}
			lastErr = fmt.Errorf("unexpected status %d", statusCode)
		} else {
			lastErr = err
			statusCode = 0
		}

		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				break retry
			case <-time.After(time.Duration(hook.RetryDelaySeconds) * time.Second):
			}
		}
	}

	wm.logDelivery(ctx, hook.ID, alertID, database.DeliveryStatusFailed, statusCode, lastErr.Error(), maxRetries)
	return lastErr
}

func (wm *WebhookManager) logDelivery(ctx context.Context, webhookID int, alertID, status string, code int, errMsg string, attempt int) {
	entry := &database.WebhookDeliveryLog{
		WebhookID:    webhookID,
		AlertID:      alertID,
		TriggeredAt:  time.Now(),
		Status:       status,
		RetryAttempt: attempt,
		ErrorMessage: errMsg,
	}
	if code != 0 {
		entry.HTTPStatusCode = &code
	}

	// The request context may already be cancelled; the log row is still wanted
	if err := wm.repo.SaveWebhookLog(context.WithoutCancel(ctx), entry); err != nil {
		wm.logger.Warn("failed to save webhook log", zap.Error(err))
	}
}

// RefreshCache drops the cached webhook list of a user
func (wm *WebhookManager) RefreshCache(ctx context.Context, userID string) {
	if wm.redis != nil {
		_ = wm.redis.Delete(ctx, webhookCacheKey(userID))
		wm.logger.Info("🔄 Webhook cache invalidated", zap.String("user_id", userID))
	}
}

func severityIcon(s models.Severity) string {
	switch s {
	case models.SeverityCritical:
		return "🚨"
	case models.SeverityHigh:
		return "⚠️"
	case models.SeverityMedium:
		return "🔔"
	}
	return "ℹ️"
}
