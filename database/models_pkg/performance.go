package models

import "time"

// Strategy is the read-only view of a journal strategy used to label alerts
type Strategy struct {
	ID       string `gorm:"primaryKey;size:64" json:"id"`
	UserID   string `gorm:"size:64;index" json:"user_id"`
	Title    string `gorm:"type:text;not null" json:"title"`
	Category string `gorm:"type:text" json:"category"`
	IsActive bool   `gorm:"default:true" json:"is_active"`
}

// TableName specifies the table name for Strategy
func (Strategy) TableName() string {
	return "strategies"
}

// PerformanceSnapshot holds already-computed metrics for a strategy.
// Optional metrics are pointers; nil means "not yet evaluable".
// Drawdowns, win rate and confidence level are percentages.
type PerformanceSnapshot struct {
	StrategyID               string    `json:"strategy_id"`
	TotalTrades              int       `json:"total_trades"`
	MaxDrawdown              *float64  `json:"max_drawdown,omitempty"`
	CurrentDrawdown          *float64  `json:"current_drawdown,omitempty"`
	ProfitFactor             *float64  `json:"profit_factor,omitempty"`
	Expectancy               *float64  `json:"expectancy,omitempty"`
	SharpeRatio              *float64  `json:"sharpe_ratio,omitempty"`
	WinRate                  *float64  `json:"win_rate,omitempty"`
	ConfidenceLevel          *float64  `json:"confidence_level,omitempty"`
	StatisticallySignificant bool      `json:"statistically_significant"`
	CalculatedAt             time.Time `json:"calculated_at"`
}

// Metric looks up a metric by name
func (s *PerformanceSnapshot) Metric(name string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	var v *float64
	switch name {
	case MetricTotalTrades:
		return float64(s.TotalTrades), true
	case MetricMaxDrawdown:
		v = s.MaxDrawdown
	case MetricCurrentDrawdown:
		v = s.CurrentDrawdown
	case MetricProfitFactor:
		v = s.ProfitFactor
	case MetricExpectancy:
		v = s.Expectancy
	case MetricSharpeRatio:
		v = s.SharpeRatio
	case MetricWinRate:
		v = s.WinRate
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// StrategyPerformance pairs a strategy with its previous and current snapshots
type StrategyPerformance struct {
	Strategy Strategy             `json:"strategy"`
	Previous *PerformanceSnapshot `json:"previous,omitempty"`
	Current  PerformanceSnapshot  `json:"current"`
}

// PerformanceUpdate is one recalculation event coming from the performance source
type PerformanceUpdate struct {
	UserID     string               `json:"user_id"`
	StrategyID string               `json:"strategy_id"`
	Previous   *PerformanceSnapshot `json:"previous,omitempty"`
	Current    PerformanceSnapshot  `json:"current"`
}

// MarketConditionChange is a market-data delta in percent
type MarketConditionChange struct {
	VolatilityChange  float64   `json:"volatility_change"`
	VolumeChange      float64   `json:"volume_change"`
	CorrelationChange float64   `json:"correlation_change"`
	ObservedAt        time.Time `json:"observed_at"`
}

// RecommendationAction is what a market-condition alert suggests for a strategy
type RecommendationAction string

const (
	RecommendIncrease RecommendationAction = "INCREASE"
	RecommendDecrease RecommendationAction = "DECREASE"
	RecommendSuspend  RecommendationAction = "SUSPEND"
	RecommendActivate RecommendationAction = "ACTIVATE"
	RecommendMonitor  RecommendationAction = "MONITOR"
)

// StrategyRecommendation is attached to market-condition alerts, one per affected strategy
type StrategyRecommendation struct {
	StrategyID   string               `json:"strategy_id"`
	StrategyName string               `json:"strategy_name"`
	Action       RecommendationAction `json:"action"`
	Reason       string               `json:"reason"`
	Confidence   float64              `json:"confidence"`
}
