package models

import "time"

// MetricsWindow is the trailing window used for alert metrics
type MetricsWindow string

const (
	WindowDay   MetricsWindow = "day"
	WindowWeek  MetricsWindow = "week"
	WindowMonth MetricsWindow = "month"
)

// Duration returns the length of the window; unknown windows fall back to a week
func (w MetricsWindow) Duration() time.Duration {
	switch w {
	case WindowDay:
		return 24 * time.Hour
	case WindowMonth:
		return 30 * 24 * time.Hour
	}
	return 7 * 24 * time.Hour
}

// UserEngagement measures how users react to alerts (fractions 0..1)
type UserEngagement struct {
	AcknowledgedRate float64 `json:"acknowledged_rate"`
	ActionTakenRate  float64 `json:"action_taken_rate"`
}

// AlertMetrics is derived from a user's alerts over a window and never stored
type AlertMetrics struct {
	TotalAlerts           int               `json:"total_alerts"`
	AlertsByType          map[AlertType]int `json:"alerts_by_type"`
	AlertsBySeverity      map[Severity]int  `json:"alerts_by_severity"`
	AverageResolutionTime float64           `json:"average_resolution_time"` // hours
	FalsePositiveRate     float64           `json:"false_positive_rate"`
	UserEngagement        UserEngagement    `json:"user_engagement"`
	Window                MetricsWindow     `json:"window"`
	From                  time.Time         `json:"from"`
	To                    time.Time         `json:"to"`
}
