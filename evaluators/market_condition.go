package evaluators

import (
	"fmt"
	"math"

	models "trading-journal/database/models_pkg"
	"trading-journal/helpers"
)

// Market condition metrics used as alert condition keys
const (
	MetricVolatilityChange  = "volatilityChange"
	MetricVolumeChange      = "volumeChange"
	MetricCorrelationChange = "correlationChange"
)

// suspendDrawdown is the max drawdown (percent) above which rising volatility suggests suspension
const suspendDrawdown = 20

// EvaluateMarketConditions emits at most one market-wide alert per breached
// condition, each carrying a recommendation per affected strategy. A threshold
// of 0 disables its condition; a change breaches when its magnitude reaches the
// threshold.
func EvaluateMarketConditions(strategies []models.StrategyPerformance, change models.MarketConditionChange, cfg *models.AlertConfiguration) []*models.StrategyAlert {
	if !alertsEnabled(cfg) {
		return nil
	}
	limits := cfg.MarketConditionThresholds

	conditions := []struct {
		metric    string
		label     string
		value     float64
		threshold float64
		recommend func(models.StrategyPerformance, bool) (models.RecommendationAction, string, bool)
	}{
		{MetricVolatilityChange, "Volatility", change.VolatilityChange, limits.VolatilityChange, recommendForVolatility},
		{MetricVolumeChange, "Volume", change.VolumeChange, limits.VolumeChange, recommendForVolume},
		{MetricCorrelationChange, "Correlation", change.CorrelationChange, limits.CorrelationChange, recommendForCorrelation},
	}

	var alerts []*models.StrategyAlert
	for _, c := range conditions {
		if c.threshold <= 0 || !AtLeastMultiple(math.Abs(c.value), c.threshold, 1) {
			continue
		}

		strong := AtLeastMultiple(math.Abs(c.value), c.threshold, 2)
		severity := models.SeverityMedium
		if strong {
			severity = models.SeverityHigh
		}

		direction := "increased"
		if c.value < 0 {
			direction = "decreased"
		}

		alert := newCandidate(models.Strategy{ID: models.MarketWideStrategyID, Title: "All strategies"},
			models.AlertTypeMarketConditionChange, c.metric, severity)
		alert.Title = fmt.Sprintf("%s %s by %s", c.label, direction, helpers.FormatPercent(math.Abs(c.value)))
		alert.Message = fmt.Sprintf("Market %s %s %s, past the %s threshold",
			c.label, direction, helpers.FormatPercent(math.Abs(c.value)), helpers.FormatPercent(c.threshold))
		alert.Threshold = &models.ThresholdSnapshot{Metric: c.metric, Operator: models.OperatorGreaterThan, Value: c.threshold}
		alert.CurrentValue = models.Float(c.value)
		if !change.ObservedAt.IsZero() {
			alert.Metadata["observed_at"] = change.ObservedAt
		}

		for _, sp := range strategies {
			action, reason, ok := c.recommend(sp, c.value > 0)
			if !ok {
				continue
			}
			alert.Recommendations = append(alert.Recommendations, models.StrategyRecommendation{
				StrategyID:   sp.Strategy.ID,
				StrategyName: strategyName(sp.Strategy),
				Action:       action,
				Reason:       reason,
				Confidence:   recommendationConfidence(action, strong),
			})
		}
		alert.SuggestedActions = []string{"Review the recommendations for each affected strategy"}
		alerts = append(alerts, alert)
	}
	return alerts
}

func recommendForVolatility(sp models.StrategyPerformance, rising bool) (models.RecommendationAction, string, bool) {
	if rising {
		if !sp.Strategy.IsActive {
			return "", "", false
		}
		if dd, ok := sp.Current.Metric(models.MetricMaxDrawdown); ok && dd > suspendDrawdown {
			return models.RecommendSuspend, fmt.Sprintf("rising volatility with a %s max drawdown", helpers.FormatPercent(dd)), true
		}
		return models.RecommendDecrease, "rising volatility increases risk per trade", true
	}

	if !sp.Strategy.IsActive {
		return models.RecommendActivate, "calmer market may suit this inactive strategy", true
	}
	if pf, ok := sp.Current.Metric(models.MetricProfitFactor); ok && pf >= 1.5 && sp.Current.StatisticallySignificant {
		return models.RecommendIncrease, "proven edge in a calmer market", true
	}
	return models.RecommendMonitor, "volatility dropped; watch for changed behaviour", true
}

func recommendForVolume(sp models.StrategyPerformance, rising bool) (models.RecommendationAction, string, bool) {
	if !sp.Strategy.IsActive {
		return "", "", false
	}
	if rising {
		return models.RecommendMonitor, "higher volume may change fill quality", true
	}
	return models.RecommendDecrease, "thin volume raises slippage risk", true
}

func recommendForCorrelation(sp models.StrategyPerformance, _ bool) (models.RecommendationAction, string, bool) {
	if !sp.Strategy.IsActive {
		return "", "", false
	}
	return models.RecommendMonitor, "correlation regime changed; diversification may be weaker", true
}

// recommendationConfidence is a fixed score per action, raised for strong moves
func recommendationConfidence(action models.RecommendationAction, strong bool) float64 {
	base := 0.5
	switch action {
	case models.RecommendSuspend:
		base = 0.8
	case models.RecommendDecrease:
		base = 0.7
	case models.RecommendIncrease, models.RecommendActivate:
		base = 0.6
	}
	if strong {
		base += 0.1
	}
	return math.Min(base, 0.95)
}
