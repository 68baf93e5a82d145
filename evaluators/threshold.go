// Package evaluators holds the pure alert rules. Every evaluator maps a
// strategy's performance state and the user's AlertConfiguration to zero or
// more candidate alerts; none of them perform I/O or keep state between calls.
//
// Candidates carry Active status but no id, user or creation time. The engine
// stamps those when it accepts a candidate into the alert store.
package evaluators

import (
	"github.com/shopspring/decimal"

	models "trading-journal/database/models_pkg"
)

// Compare applies op to current and threshold. Values are compared as decimals
// so that "equals" and boundary checks do not depend on float rounding.
func Compare(op models.Operator, current, threshold float64) bool {
	c := decimal.NewFromFloat(current)
	t := decimal.NewFromFloat(threshold)

	switch op {
	case models.OperatorGreaterThan:
		return c.GreaterThan(t)
	case models.OperatorLessThan:
		return c.LessThan(t)
	case models.OperatorEquals:
		return c.Equal(t)
	}
	return false
}

// AtLeastMultiple reports whether value >= factor * threshold
func AtLeastMultiple(value, threshold, factor float64) bool {
	limit := decimal.NewFromFloat(threshold).Mul(decimal.NewFromFloat(factor))
	return decimal.NewFromFloat(value).GreaterThanOrEqual(limit)
}

// Crossed reports whether the metric moved from not satisfying the milestone
// to satisfying it between previous and current.
//
//   - greater_than: previous < value <= current
//   - less_than:    previous > value >= current
//   - equals:       previous != value == current
func Crossed(op models.Operator, previous, current, value float64) bool {
	p := decimal.NewFromFloat(previous)
	c := decimal.NewFromFloat(current)
	v := decimal.NewFromFloat(value)

	switch op {
	case models.OperatorGreaterThan:
		return p.LessThan(v) && v.LessThanOrEqual(c)
	case models.OperatorLessThan:
		return p.GreaterThan(v) && v.GreaterThanOrEqual(c)
	case models.OperatorEquals:
		return !p.Equal(v) && c.Equal(v)
	}
	return false
}

// alertsEnabled is the global switch shared by all evaluators
func alertsEnabled(cfg *models.AlertConfiguration) bool {
	return cfg != nil && cfg.GlobalSettings.EnableAlerts
}

func newCandidate(strategy models.Strategy, alertType models.AlertType, metric string, severity models.Severity) *models.StrategyAlert {
	return &models.StrategyAlert{
		StrategyID:   strategy.ID,
		StrategyName: strategyName(strategy),
		Type:         alertType,
		Metric:       metric,
		Severity:     severity,
		Status:       models.AlertStatusActive,
		Metadata:     map[string]interface{}{},
	}
}

func strategyName(s models.Strategy) string {
	if s.Title != "" {
		return s.Title
	}
	return s.ID
}
