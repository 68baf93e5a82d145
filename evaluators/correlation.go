package evaluators

import (
	"fmt"
	"sort"

	models "trading-journal/database/models_pkg"
)

// MaxCorrelatedStrategies bounds the input of a single correlation pass
const MaxCorrelatedStrategies = 100

// CorrelationDetector finds degradation shared across strategies.
// Implementations must be bounded in runtime and must not panic; the engine
// still recovers if they do.
type CorrelationDetector interface {
	Detect(strategies []models.StrategyPerformance, cfg *models.AlertConfiguration) []*models.StrategyAlert
}

// CategoryCorrelationDetector raises one alert per strategy category in which
// at least two active strategies degraded in the same update. A strategy is
// degraded when its Sharpe ratio or win rate fell by at least the configured
// correlationChange percent relative to the previous snapshot.
type CategoryCorrelationDetector struct{}

// Detect implements CorrelationDetector
func (CategoryCorrelationDetector) Detect(strategies []models.StrategyPerformance, cfg *models.AlertConfiguration) []*models.StrategyAlert {
	if !alertsEnabled(cfg) {
		return nil
	}
	limit := cfg.MarketConditionThresholds.CorrelationChange
	if limit <= 0 {
		return nil
	}
	if len(strategies) > MaxCorrelatedStrategies {
		strategies = strategies[:MaxCorrelatedStrategies]
	}

	groups := make(map[string][]models.StrategyPerformance)
	for _, sp := range strategies {
		if !sp.Strategy.IsActive || !degraded(sp, limit) {
			continue
		}
		category := sp.Strategy.Category
		if category == "" {
			category = "uncategorized"
		}
		groups[category] = append(groups[category], sp)
	}

	categories := make([]string, 0, len(groups))
	for c := range groups {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var alerts []*models.StrategyAlert
	for _, category := range categories {
		members := groups[category]
		if len(members) < 2 {
			continue
		}

		severity := models.SeverityMedium
		if len(members) >= 3 {
			severity = models.SeverityHigh
		}

		ids := make([]string, 0, len(members))
		names := make([]string, 0, len(members))
		for _, m := range members {
			ids = append(ids, m.Strategy.ID)
			names = append(names, strategyName(m.Strategy))
		}

		alert := newCandidate(models.Strategy{ID: models.MarketWideStrategyID, Title: "All strategies"},
			models.AlertTypeStrategyCorrelation, "category:"+category, severity)
		alert.Title = fmt.Sprintf("%d %s strategies degraded together", len(members), category)
		alert.Message = fmt.Sprintf("Strategies %v lost at least %.0f%% of their Sharpe ratio or win rate in the same update", names, limit)
		alert.Threshold = &models.ThresholdSnapshot{Metric: MetricCorrelationChange, Operator: models.OperatorGreaterThan, Value: limit}
		alert.CurrentValue = models.Float(float64(len(members)))
		alert.SuggestedActions = []string{
			"Check for a shared market driver behind these strategies",
			"Reduce combined exposure to this category",
		}
		alert.Metadata["category"] = category
		alert.Metadata["strategy_ids"] = ids
		alerts = append(alerts, alert)
	}
	return alerts
}

func degraded(sp models.StrategyPerformance, limitPercent float64) bool {
	if sp.Previous == nil {
		return false
	}
	for _, metric := range []string{models.MetricSharpeRatio, models.MetricWinRate} {
		prev, ok := sp.Previous.Metric(metric)
		if !ok || prev <= 0 {
			continue
		}
		cur, ok := sp.Current.Metric(metric)
		if !ok {
			continue
		}
		if AtLeastMultiple((prev-cur)/prev*100, limitPercent, 1) {
			return true
		}
	}
	return false
}

// DetectSafely runs d and converts a panic into an error
func DetectSafely(d CorrelationDetector, strategies []models.StrategyPerformance, cfg *models.AlertConfiguration) (alerts []*models.StrategyAlert, err error) {
	defer func() {
		if r := recover(); r != nil {
			alerts = nil
			err = fmt.Errorf("correlation detector panicked: %v", r)
		}
	}()
	return d.Detect(strategies, cfg), nil
}
