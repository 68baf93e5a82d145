package evaluators

import (
	"fmt"

	models "trading-journal/database/models_pkg"
	"trading-journal/helpers"
)

// SuspendAction is the suggested action added to critical drawdown alerts of
// rules configured with SuspendStrategy.
const SuspendAction = "IMMEDIATE ACTION: consider suspending this strategy"

// MetadataChannels holds the rule-level channel restriction of a drawdown alert
const MetadataChannels = "notification_channels"

// EvaluateDrawdown emits one alert per enabled drawdown rule breached by the snapshot.
//
// A rule with an explicit Severity produces that severity. Otherwise the alert
// is Critical when the value reaches twice the threshold and High below that.
func EvaluateDrawdown(strategy models.Strategy, snapshot *models.PerformanceSnapshot, cfg *models.AlertConfiguration) []*models.StrategyAlert {
	if !alertsEnabled(cfg) || snapshot == nil {
		return nil
	}

	var alerts []*models.StrategyAlert
	for _, rule := range cfg.DrawdownLimits {
		if !rule.Enabled {
			continue
		}
		value, ok := snapshot.Metric(rule.Metric)
		if !ok {
			continue
		}
		if !Compare(rule.Operator, value, rule.Value) {
			continue
		}

		severity := rule.Severity
		if !severity.Valid() {
			severity = models.SeverityHigh
			if AtLeastMultiple(value, rule.Value, 2) {
				severity = models.SeverityCritical
			}
		}

		alert := newCandidate(strategy, models.AlertTypeDrawdownLimit, rule.Metric, severity)
		alert.Title = fmt.Sprintf("%s drawdown limit breached", strategyName(strategy))
		alert.Message = fmt.Sprintf("%s is %s, beyond the %s limit of %s",
			drawdownLabel(rule.Metric), helpers.FormatPercent(value), rule.Operator, helpers.FormatPercent(rule.Value))
		if rule.Description != "" {
			alert.Message += " (" + rule.Description + ")"
		}
		alert.Threshold = &models.ThresholdSnapshot{Metric: rule.Metric, Operator: rule.Operator, Value: rule.Value}
		alert.CurrentValue = models.Float(value)
		alert.SuggestedActions = drawdownActions(rule, severity)
		alert.Metadata["rule_id"] = rule.ID
		if len(rule.NotificationChannels) > 0 {
			channels := make([]string, 0, len(rule.NotificationChannels))
			for _, c := range rule.NotificationChannels {
				channels = append(channels, string(c))
			}
			alert.Metadata[MetadataChannels] = channels
		}
		alerts = append(alerts, alert)
	}
	return alerts
}

func drawdownActions(rule models.DrawdownThreshold, severity models.Severity) []string {
	var actions []string
	if rule.SuspendStrategy && severity == models.SeverityCritical {
		actions = append(actions, SuspendAction)
	}
	return append(actions,
		"Review open positions and current risk exposure",
		"Reduce position size until the drawdown recovers",
	)
}

func drawdownLabel(metric string) string {
	if metric == models.MetricCurrentDrawdown {
		return "Current drawdown"
	}
	return "Maximum drawdown"
}
