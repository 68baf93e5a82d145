package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	models "trading-journal/database/models_pkg"
)

// AlertRepository handles database operations for alerts and per-user settings
type AlertRepository struct {
	db *Database
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *Database) *AlertRepository {
	return &AlertRepository{db: db}
}

// InitSchema performs auto-migration and creates the open-alert uniqueness index
func (r *AlertRepository) InitSchema() error {
	err := r.db.db.AutoMigrate(
		&StrategyAlert{},
		&UserAlertConfiguration{},
		&UserNotificationPreferences{},
		&AlertWebhook{},
		&WebhookDeliveryLog{},
		&Strategy{},
	)
	if err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	// One open alert per (user, strategy, type, metric); closed alerts are history
	if err := r.db.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_strategy_alerts_open_condition
		ON strategy_alerts (user_id, strategy_id, type, metric)
		WHERE status IN ('ACTIVE', 'ACKNOWLEDGED')
	`).Error; err != nil {
		return fmt.Errorf("failed to create open condition index: %w", err)
	}

	return nil
}

// SaveAlert inserts or updates an alert by id. A write carrying an older
// version than the stored row is skipped, so out-of-order writes never move
// an alert back along its lifecycle.
func (r *AlertRepository) SaveAlert(ctx context.Context, alert *StrategyAlert) error {
	err := r.db.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stored StrategyAlert
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&stored, "id = ?", alert.ID).Error
		switch {
		case err == nil:
			if stored.Supersedes(alert) {
				return nil
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(alert).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("SaveAlert %s: %w", alert.ID, ErrDuplicateActive)
		}
		return WrapDBError("SaveAlert", err)
	}
	return nil
}

// GetAlert retrieves a single alert by id
func (r *AlertRepository) GetAlert(ctx context.Context, id string) (*StrategyAlert, error) {
	var alert StrategyAlert
	err := r.db.db.WithContext(ctx).First(&alert, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFoundErrorWithID("alert", id)
	}
	if err != nil {
		return nil, WrapDBError("GetAlert", err)
	}
	return &alert, nil
}

// LoadAlerts returns every alert of a user, oldest first
func (r *AlertRepository) LoadAlerts(ctx context.Context, userID string) ([]StrategyAlert, error) {
	var alerts []StrategyAlert
	if err := r.db.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&alerts).Error; err != nil {
		return nil, WrapDBError("LoadAlerts", err)
	}
	return alerts, nil
}

// GetAlerts retrieves alerts with optional filters, newest first
func (r *AlertRepository) GetAlerts(ctx context.Context, userID, strategyID string, status models.AlertStatus, since time.Time, limit int) ([]StrategyAlert, error) {
	var alerts []StrategyAlert
	query := r.db.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")

	if strategyID != "" {
		query = query.Where("strategy_id = ?", strategyID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}
	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}

	if err := query.Limit(limit).Find(&alerts).Error; err != nil {
		return nil, WrapDBError("GetAlerts", err)
	}
	return alerts, nil
}

// PurgeClosedAlerts deletes terminal alerts resolved before the cutoff
func (r *AlertRepository) PurgeClosedAlerts(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.db.WithContext(ctx).
		Where("status IN ? AND resolved_at < ?", []models.AlertStatus{models.AlertStatusResolved, models.AlertStatusDismissed}, before).
		Delete(&StrategyAlert{})
	if res.Error != nil {
		return 0, WrapDBError("PurgeClosedAlerts", res.Error)
	}
	return res.RowsAffected, nil
}

// SaveConfiguration upserts a user's alert configuration
func (r *AlertRepository) SaveConfiguration(ctx context.Context, userID string, cfg *AlertConfiguration) error {
	row := &UserAlertConfiguration{UserID: userID, Configuration: *cfg}
	err := r.db.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"configuration", "updated_at"}),
		}).
		Create(row).Error
	return WrapDBError("SaveConfiguration", err)
}

// LoadConfiguration returns a user's alert configuration or a NotFoundError
func (r *AlertRepository) LoadConfiguration(ctx context.Context, userID string) (*AlertConfiguration, error) {
	var row UserAlertConfiguration
	err := r.db.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFoundErrorWithID("alert configuration", userID)
	}
	if err != nil {
		return nil, WrapDBError("LoadConfiguration", err)
	}
	cfg := row.Configuration
	cfg.UserID = userID
	return &cfg, nil
}

// SaveNotificationPreferences upserts a user's notification preferences
func (r *AlertRepository) SaveNotificationPreferences(ctx context.Context, userID string, prefs *NotificationPreferences) error {
	row := &UserNotificationPreferences{UserID: userID, Preferences: *prefs}
	err := r.db.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"preferences", "updated_at"}),
		}).
		Create(row).Error
	return WrapDBError("SaveNotificationPreferences", err)
}

// LoadNotificationPreferences returns a user's preferences or a NotFoundError
func (r *AlertRepository) LoadNotificationPreferences(ctx context.Context, userID string) (*NotificationPreferences, error) {
	var row UserNotificationPreferences
	err := r.db.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFoundErrorWithID("notification preferences", userID)
	}
	if err != nil {
		return nil, WrapDBError("LoadNotificationPreferences", err)
	}
	prefs := row.Preferences
	prefs.UserID = userID
	return &prefs, nil
}

// GetStrategy looks up a strategy for alert labeling
func (r *AlertRepository) GetStrategy(ctx context.Context, strategyID string) (*Strategy, error) {
	var s Strategy
	err := r.db.db.WithContext(ctx).First(&s, "id = ?", strategyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFoundErrorWithID("strategy", strategyID)
	}
	if err != nil {
		return nil, WrapDBError("GetStrategy", err)
	}
	return &s, nil
}

// ListStrategies returns a user's strategies, optionally only the active ones
func (r *AlertRepository) ListStrategies(ctx context.Context, userID string, activeOnly bool) ([]Strategy, error) {
	var strategies []Strategy
	query := r.db.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&strategies).Error; err != nil {
		return nil, WrapDBError("ListStrategies", err)
	}
	return strategies, nil
}

// GetActiveWebhooks returns a user's active push webhooks
func (r *AlertRepository) GetActiveWebhooks(ctx context.Context, userID string) ([]AlertWebhook, error) {
	var webhooks []AlertWebhook
	err := r.db.db.WithContext(ctx).Where("user_id = ? AND is_active = ?", userID, true).Find(&webhooks).Error
	return webhooks, WrapDBError("GetActiveWebhooks", err)
}

// GetWebhooks returns all webhooks of a user
func (r *AlertRepository) GetWebhooks(ctx context.Context, userID string) ([]AlertWebhook, error) {
	var webhooks []AlertWebhook
	err := r.db.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&webhooks).Error
	return webhooks, WrapDBError("GetWebhooks", err)
}

// SaveWebhook creates or updates a webhook
func (r *AlertRepository) SaveWebhook(ctx context.Context, webhook *AlertWebhook) error {
	return WrapDBError("SaveWebhook", r.db.db.WithContext(ctx).Save(webhook).Error)
}

// DeleteWebhook removes a user's webhook by id
func (r *AlertRepository) DeleteWebhook(ctx context.Context, userID string, id int) error {
	res := r.db.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&AlertWebhook{}, id)
	if res.Error != nil {
		return WrapDBError("DeleteWebhook", res.Error)
	}
	if res.RowsAffected == 0 {
		return NewNotFoundErrorWithID("webhook", id)
	}
	return nil
}

// SaveWebhookLog records a delivery attempt
func (r *AlertRepository) SaveWebhookLog(ctx context.Context, entry *WebhookDeliveryLog) error {
	return WrapDBError("SaveWebhookLog", r.db.db.WithContext(ctx).Create(entry).Error)
}

// GetWebhookLogs returns recent delivery logs for an alert
func (r *AlertRepository) GetWebhookLogs(ctx context.Context, alertID string) ([]WebhookDeliveryLog, error) {
	var logs []WebhookDeliveryLog
	err := r.db.db.WithContext(ctx).Where("alert_id = ?", alertID).Order("triggered_at DESC").Find(&logs).Error
	return logs, WrapDBError("GetWebhookLogs", err)
}
