package models

import "time"

// Drawdown metric names understood by the drawdown evaluator
const (
	MetricMaxDrawdown     = "maxDrawdown"
	MetricCurrentDrawdown = "currentDrawdown"
)

// Performance metric names understood by the milestone evaluator
const (
	MetricTotalTrades  = "totalTrades"
	MetricProfitFactor = "profitFactor"
	MetricExpectancy   = "expectancy"
	MetricSharpeRatio  = "sharpeRatio"
	MetricWinRate      = "winRate"
)

// DrawdownThreshold is a drawdown rule. Severity pins the alert severity for a
// tiered setup (warning rule and critical rule); when empty the severity is
// derived from how far the threshold was exceeded.
type DrawdownThreshold struct {
	ID                   string    `json:"id" yaml:"id" validate:"required"`
	Metric               string    `json:"metric" yaml:"metric" validate:"oneof=maxDrawdown currentDrawdown"`
	Operator             Operator  `json:"operator" yaml:"operator" validate:"operator"`
	Value                float64   `json:"value" yaml:"value" validate:"gte=0,lte=100"`
	Enabled              bool      `json:"enabled" yaml:"enabled"`
	Description          string    `json:"description" yaml:"description"`
	Severity             Severity  `json:"severity,omitempty" yaml:"severity,omitempty" validate:"omitempty,severity"`
	SuspendStrategy      bool      `json:"suspend_strategy" yaml:"suspend_strategy"`
	NotificationChannels []Channel `json:"notification_channels,omitempty" yaml:"notification_channels,omitempty" validate:"dive,channel"`
}

// PerformanceMilestone fires once when a metric crosses Value in the operator's direction
type PerformanceMilestone struct {
	ID                      string   `json:"id" yaml:"id" validate:"required"`
	Metric                  string   `json:"metric" yaml:"metric" validate:"oneof=totalTrades profitFactor expectancy sharpeRatio winRate"`
	Operator                Operator `json:"operator" yaml:"operator" validate:"operator"`
	Value                   float64  `json:"value" yaml:"value"`
	Enabled                 bool     `json:"enabled" yaml:"enabled"`
	Description             string   `json:"description" yaml:"description"`
	Celebratory             bool     `json:"celebratory" yaml:"celebratory"`
	SuggestPositionIncrease bool     `json:"suggest_position_increase" yaml:"suggest_position_increase"`
}

// MarketConditionThresholds are percentage-change limits. A value of 0 disables that condition.
type MarketConditionThresholds struct {
	VolatilityChange  float64 `json:"volatility_change" yaml:"volatility_change" validate:"gte=0,lte=1000"`
	VolumeChange      float64 `json:"volume_change" yaml:"volume_change" validate:"gte=0,lte=1000"`
	CorrelationChange float64 `json:"correlation_change" yaml:"correlation_change" validate:"gte=0,lte=100"`
}

// StatisticalSignificanceSettings control the significance milestones.
// RequiredConfidence is a percentage (e.g. 95).
type StatisticalSignificanceSettings struct {
	MinimumTrades       int     `json:"minimum_trades" yaml:"minimum_trades" validate:"gte=0"`
	RequiredConfidence  float64 `json:"required_confidence" yaml:"required_confidence" validate:"gte=0,lte=100"`
	EnableNotifications bool    `json:"enable_notifications" yaml:"enable_notifications"`
}

// GlobalAlertSettings apply to every evaluator. Zero MaxAlertsPerDay or
// AutoResolveAfterDays means unlimited / never.
type GlobalAlertSettings struct {
	EnableAlerts         bool `json:"enable_alerts" yaml:"enable_alerts"`
	MaxAlertsPerDay      int  `json:"max_alerts_per_day" yaml:"max_alerts_per_day" validate:"gte=0,lte=10000"`
	AutoResolveAfterDays int  `json:"auto_resolve_after_days" yaml:"auto_resolve_after_days" validate:"gte=0,lte=3650"`
}

// AlertConfiguration is the per-user set of threshold rules
type AlertConfiguration struct {
	UserID                          string                          `json:"user_id" yaml:"-"`
	DrawdownLimits                  []DrawdownThreshold             `json:"drawdown_limits" yaml:"drawdown_limits" validate:"dive"`
	PerformanceMilestones           []PerformanceMilestone          `json:"performance_milestones" yaml:"performance_milestones" validate:"dive"`
	MarketConditionThresholds       MarketConditionThresholds       `json:"market_condition_thresholds" yaml:"market_condition_thresholds"`
	StatisticalSignificanceSettings StatisticalSignificanceSettings `json:"statistical_significance_settings" yaml:"statistical_significance_settings"`
	GlobalSettings                  GlobalAlertSettings             `json:"global_settings" yaml:"global_settings"`
	UpdatedAt                       time.Time                       `json:"updated_at" yaml:"-"`
}

// Clone returns a deep copy of the configuration
func (c *AlertConfiguration) Clone() *AlertConfiguration {
	if c == nil {
		return nil
	}
	out := *c
	out.DrawdownLimits = make([]DrawdownThreshold, len(c.DrawdownLimits))
	for i, d := range c.DrawdownLimits {
		d.NotificationChannels = append([]Channel(nil), d.NotificationChannels...)
		out.DrawdownLimits[i] = d
	}
	out.PerformanceMilestones = append([]PerformanceMilestone(nil), c.PerformanceMilestones...)
	return &out
}

// UserAlertConfiguration is the persisted row holding one user's configuration
type UserAlertConfiguration struct {
	UserID        string             `gorm:"primaryKey;size:64" json:"user_id"`
	Configuration AlertConfiguration `gorm:"serializer:json;not null" json:"configuration"`
	UpdatedAt     time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for UserAlertConfiguration
func (UserAlertConfiguration) TableName() string {
	return "alert_configurations"
}
