package models

import "time"

// AlertWebhook is a push-gateway registration for one user
type AlertWebhook struct {
	ID                int        `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID            string     `gorm:"size:64;index;not null" json:"user_id"`
	Name              string     `gorm:"size:100;not null" json:"name"`
	URL               string     `gorm:"not null" json:"url"`
	Method            string     `gorm:"size:10;default:POST" json:"method"`
	AuthType          string     `gorm:"size:20" json:"auth_type"`
	AuthHeader        string     `gorm:"size:100" json:"auth_header"`
	AuthValue         string     `json:"auth_value"`
	AlertTypes        []string   `gorm:"serializer:json" json:"alert_types"`
	MinSeverity       Severity   `gorm:"type:text" json:"min_severity,omitempty"`
	IsActive          bool       `gorm:"default:true" json:"is_active"`
	RetryCount        int        `gorm:"default:3" json:"retry_count"`
	RetryDelaySeconds int        `gorm:"default:5" json:"retry_delay_seconds"`
	LastTriggeredAt   *time.Time `json:"last_triggered_at,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for AlertWebhook
func (AlertWebhook) TableName() string {
	return "alert_webhooks"
}

// WebhookDeliveryLog records one delivery attempt outcome
type WebhookDeliveryLog struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	WebhookID      int       `gorm:"index;not null" json:"webhook_id"`
	AlertID        string    `gorm:"size:26;index" json:"alert_id"`
	TriggeredAt    time.Time `gorm:"index;not null" json:"triggered_at"`
	Status         string    `gorm:"type:text" json:"status"` // SUCCESS, FAILED
	HTTPStatusCode *int      `json:"http_status_code,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	RetryAttempt   int       `gorm:"default:0" json:"retry_attempt"`
}

// TableName specifies the table name for WebhookDeliveryLog
func (WebhookDeliveryLog) TableName() string {
	return "webhook_delivery_logs"
}
