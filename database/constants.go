package database

import "time"

// Query limits
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Retention for closed alerts kept for metrics and audit
const (
	ClosedAlertRetention = 365 * 24 * time.Hour
)

// Webhook delivery statuses
const (
	DeliveryStatusSuccess = "SUCCESS"
	DeliveryStatusFailed  = "FAILED"
)
