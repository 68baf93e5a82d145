package evaluators

import (
	"fmt"

	models "trading-journal/database/models_pkg"
	"trading-journal/helpers"
)

// PositionSizeAction is suggested when a milestone is beaten by a wide margin
const PositionSizeAction = "Consider increasing position size"

// exceptionalFactor marks performance far enough past a milestone to suggest scaling up
const exceptionalFactor = 1.5

// EvaluateMilestones emits a Low alert for each enabled milestone crossed between
// the previous and the current snapshot. Without a previous snapshot, or with
// the metric missing from either, the milestone is not evaluable yet.
func EvaluateMilestones(strategy models.Strategy, previous, current *models.PerformanceSnapshot, cfg *models.AlertConfiguration) []*models.StrategyAlert {
	if !alertsEnabled(cfg) || previous == nil || current == nil {
		return nil
	}

	var alerts []*models.StrategyAlert
	for _, m := range cfg.PerformanceMilestones {
		if !m.Enabled {
			continue
		}
		prev, ok := previous.Metric(m.Metric)
		if !ok {
			continue
		}
		cur, ok := current.Metric(m.Metric)
		if !ok {
			continue
		}
		if !Crossed(m.Operator, prev, cur, m.Value) {
			continue
		}

		alert := newCandidate(strategy, models.AlertTypePerformanceMilestone, m.Metric, models.SeverityLow)
		alert.Title = fmt.Sprintf("%s reached a %s milestone", strategyName(strategy), m.Metric)
		if m.Celebratory {
			alert.Title = "🎉 " + alert.Title
		}
		alert.Message = fmt.Sprintf("%s moved from %s to %s (milestone %s %s)",
			m.Metric, formatMetric(m.Metric, prev), formatMetric(m.Metric, cur), m.Operator, formatMetric(m.Metric, m.Value))
		if m.Description != "" {
			alert.Message += ": " + m.Description
		}
		alert.Threshold = &models.ThresholdSnapshot{Metric: m.Metric, Operator: m.Operator, Value: m.Value}
		alert.CurrentValue = models.Float(cur)
		alert.SuggestedActions = []string{"Review which setups drove this result"}
		if m.SuggestPositionIncrease || AtLeastMultiple(cur, m.Value, exceptionalFactor) {
			alert.SuggestedActions = append(alert.SuggestedActions, PositionSizeAction)
		}
		alert.Metadata["milestone_id"] = m.ID
		alert.Metadata["previous_value"] = prev
		alerts = append(alerts, alert)
	}
	return alerts
}

func formatMetric(metric string, v float64) string {
	switch metric {
	case models.MetricWinRate, models.MetricMaxDrawdown, models.MetricCurrentDrawdown:
		return helpers.FormatPercent(v)
	case models.MetricTotalTrades:
		return helpers.FormatNumber(v, 0)
	}
	return helpers.FormatRatio(v)
}
