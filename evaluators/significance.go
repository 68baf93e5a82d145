package evaluators

import (
	"fmt"

	models "trading-journal/database/models_pkg"
)

// Significance milestones recorded on the alert
const (
	MilestoneMinimumTrades   = "minimum_trades"
	MilestoneConfidenceLevel = "confidence_level"
)

// MetricConfidenceLevel is the condition metric of confidence milestones
const MetricConfidenceLevel = "confidenceLevel"

// ConfidenceForTrades is the system-wide trade-count to confidence banding (percent)
func ConfidenceForTrades(trades int) float64 {
	switch {
	case trades >= 100:
		return 95
	case trades >= 50:
		return 90
	case trades >= 30:
		return 80
	case trades >= 20:
		return 70
	}
	return 60
}

// confidenceOf returns the snapshot's confidence level, falling back to the banding
func confidenceOf(s *models.PerformanceSnapshot) float64 {
	if s.ConfidenceLevel != nil {
		return *s.ConfidenceLevel
	}
	return ConfidenceForTrades(s.TotalTrades)
}

// EvaluateSignificance fires once when a not-yet-significant strategy newly meets
// the minimum trade count or the required confidence. The trade milestone is
// checked first and at most one alert is produced per call. When previous is
// given, a milestone already met there is not new.
func EvaluateSignificance(strategy models.Strategy, previous, current *models.PerformanceSnapshot, cfg *models.AlertConfiguration) []*models.StrategyAlert {
	if !alertsEnabled(cfg) || current == nil {
		return nil
	}
	settings := cfg.StatisticalSignificanceSettings
	if !settings.EnableNotifications || current.StatisticallySignificant {
		return nil
	}

	tradesMet := func(s *models.PerformanceSnapshot) bool { return s.TotalTrades >= settings.MinimumTrades }
	confidenceMet := func(s *models.PerformanceSnapshot) bool {
		return AtLeastMultiple(confidenceOf(s), settings.RequiredConfidence, 1)
	}

	switch {
	case tradesMet(current) && (previous == nil || !tradesMet(previous)):
		alert := newCandidate(strategy, models.AlertTypeStatisticalSignificance, models.MetricTotalTrades, models.SeverityMedium)
		alert.Milestone = MilestoneMinimumTrades
		alert.Title = fmt.Sprintf("%s reached %d trades", strategyName(strategy), current.TotalTrades)
		alert.Message = fmt.Sprintf("With %d trades (minimum %d) the strategy's statistics are now at about %.0f%% confidence",
			current.TotalTrades, settings.MinimumTrades, confidenceOf(current))
		alert.Threshold = &models.ThresholdSnapshot{Metric: models.MetricTotalTrades, Operator: models.OperatorGreaterThan, Value: float64(settings.MinimumTrades)}
		alert.CurrentValue = models.Float(float64(current.TotalTrades))
		alert.SuggestedActions = []string{"Review the strategy's metrics with the larger sample"}
		return []*models.StrategyAlert{alert}

	case confidenceMet(current) && (previous == nil || !confidenceMet(previous)):
		conf := confidenceOf(current)
		alert := newCandidate(strategy, models.AlertTypeStatisticalSignificance, MetricConfidenceLevel, models.SeverityMedium)
		alert.Milestone = MilestoneConfidenceLevel
		alert.Title = fmt.Sprintf("%s reached %.0f%% confidence", strategyName(strategy), conf)
		alert.Message = fmt.Sprintf("Confidence level %.0f%% meets the required %.0f%% after %d trades",
			conf, settings.RequiredConfidence, current.TotalTrades)
		alert.Threshold = &models.ThresholdSnapshot{Metric: MetricConfidenceLevel, Operator: models.OperatorGreaterThan, Value: settings.RequiredConfidence}
		alert.CurrentValue = models.Float(conf)
		alert.SuggestedActions = []string{"Performance metrics can now be relied on for sizing decisions"}
		return []*models.StrategyAlert{alert}
	}
	return nil
}
