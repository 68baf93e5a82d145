package models

import (
	"strings"
	"time"
)

// AlertType identifies the rule family that produced an alert
type AlertType string

const (
	AlertTypeDrawdownLimit           AlertType = "DRAWDOWN_LIMIT"
	AlertTypePerformanceMilestone    AlertType = "PERFORMANCE_MILESTONE"
	AlertTypeMarketConditionChange   AlertType = "MARKET_CONDITION_CHANGE"
	AlertTypeStatisticalSignificance AlertType = "STATISTICAL_SIGNIFICANCE"
	AlertTypeStrategyCorrelation     AlertType = "STRATEGY_CORRELATION"
	AlertTypeDisciplineViolation     AlertType = "DISCIPLINE_VIOLATION"
)

// AllAlertTypes returns every alert type in declaration order
func AllAlertTypes() []AlertType {
	return []AlertType{
		AlertTypeDrawdownLimit,
		AlertTypePerformanceMilestone,
		AlertTypeMarketConditionChange,
		AlertTypeStatisticalSignificance,
		AlertTypeStrategyCorrelation,
		AlertTypeDisciplineViolation,
	}
}

// Valid reports whether t is a known alert type
func (t AlertType) Valid() bool {
	switch t {
	case AlertTypeDrawdownLimit, AlertTypePerformanceMilestone, AlertTypeMarketConditionChange,
		AlertTypeStatisticalSignificance, AlertTypeStrategyCorrelation, AlertTypeDisciplineViolation:
		return true
	}
	return false
}

// Severity of an alert. Ordering matters: see Rank.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank returns 1..4 for known severities and 0 otherwise
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// Valid reports whether s is a known severity
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// AlertStatus is the lifecycle state of a StrategyAlert
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "ACTIVE"
	AlertStatusAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertStatusResolved     AlertStatus = "RESOLVED"
	AlertStatusDismissed    AlertStatus = "DISMISSED"
)

// IsTerminal reports whether no further transition is allowed from s
func (s AlertStatus) IsTerminal() bool {
	return s == AlertStatusResolved || s == AlertStatusDismissed
}

// Operator is the comparison applied between a metric and a threshold value
type Operator string

const (
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
	OperatorEquals      Operator = "equals"
)

// Valid reports whether o is a known operator
func (o Operator) Valid() bool {
	return o == OperatorGreaterThan || o == OperatorLessThan || o == OperatorEquals
}

// Resolution reasons with special meaning
const (
	ResolutionSuperseded   = "superseded"
	ResolutionAutoResolved = "auto_resolved"
)

// IsDismissalReason reports whether a resolve reason means the user dismissed the alert
func IsDismissalReason(reason string) bool {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case "dismiss", "dismissed", "false_positive":
		return true
	}
	return false
}

// MarketWideStrategyID is the strategy id carried by alerts that are not tied to one strategy
const MarketWideStrategyID = "market"

// ThresholdSnapshot is the rule that was breached, copied onto the alert at creation
type ThresholdSnapshot struct {
	Metric   string   `json:"metric"`
	Operator Operator `json:"operator"`
	Value    float64  `json:"value"`
}

// StrategyAlert is one detected condition for one strategy of one user.
//
// Key Fields:
//   - StrategyID/Type/Metric: the condition key; at most one non-terminal alert per key and user
//   - Severity: LOW, MEDIUM, HIGH, CRITICAL
//   - Status: ACTIVE -> ACKNOWLEDGED -> RESOLVED|DISMISSED (RESOLVED/DISMISSED are terminal)
//   - Threshold/CurrentValue: the rule and the observed value at detection time
//   - Milestone: which significance milestone fired (minimum_trades or confidence_level)
//   - ActionTaken: follow-up recorded by the user, used for engagement metrics
//
// Alerts are created by evaluators and mutated afterwards only through lifecycle
// operations of the alert store.
type StrategyAlert struct {
	ID               string                   `gorm:"primaryKey;size:26" json:"id"`
	UserID           string                   `gorm:"size:64;index;not null" json:"user_id"`
	StrategyID       string                   `gorm:"size:64;index;not null" json:"strategy_id"`
	StrategyName     string                   `gorm:"type:text" json:"strategy_name"`
	Type             AlertType                `gorm:"type:text;index;not null" json:"type"`
	Metric           string                   `gorm:"type:text;not null;default:''" json:"metric"`
	Severity         Severity                 `gorm:"type:text;not null" json:"severity"`
	Status           AlertStatus              `gorm:"type:text;index;not null" json:"status"`
	Title            string                   `gorm:"type:text" json:"title"`
	Message          string                   `gorm:"type:text" json:"message"`
	Threshold        *ThresholdSnapshot       `gorm:"serializer:json" json:"threshold,omitempty"`
	CurrentValue     *float64                 `json:"current_value,omitempty"`
	SuggestedActions []string                 `gorm:"serializer:json" json:"suggested_actions,omitempty"`
	Recommendations  []StrategyRecommendation `gorm:"serializer:json" json:"recommendations,omitempty"`
	Milestone        string                   `gorm:"type:text" json:"milestone,omitempty"`
	Metadata         map[string]interface{}   `gorm:"serializer:json" json:"metadata,omitempty"`
	ResolutionReason string                   `gorm:"type:text" json:"resolution_reason,omitempty"`
	ActionTaken      string                   `gorm:"type:text" json:"action_taken,omitempty"`
	ActionTakenAt    *time.Time               `json:"action_taken_at,omitempty"`
	CreatedAt        time.Time                `gorm:"index;not null" json:"created_at"`
	AcknowledgedAt   *time.Time               `json:"acknowledged_at,omitempty"`
	ResolvedAt       *time.Time               `json:"resolved_at,omitempty"`
}

// TableName specifies the table name for StrategyAlert
func (StrategyAlert) TableName() string {
	return "strategy_alerts"
}

// AlertKey is the condition identity used for de-duplication
type AlertKey struct {
	UserID     string
	StrategyID string
	Type       AlertType
	Metric     string
}

// Key returns the de-duplication key of the alert
func (a *StrategyAlert) Key() AlertKey {
	return AlertKey{UserID: a.UserID, StrategyID: a.StrategyID, Type: a.Type, Metric: a.Metric}
}

// IsOpen reports whether the alert is Active or Acknowledged
func (a *StrategyAlert) IsOpen() bool {
	return !a.Status.IsTerminal()
}

// Supersedes reports whether a is a later version of prev: further along the
// Active, Acknowledged, closed progression or, at the same stage, touched later.
func (a *StrategyAlert) Supersedes(prev *StrategyAlert) bool {
	if sa, sp := a.stage(), prev.stage(); sa != sp {
		return sa > sp
	}
	return a.LastTouched().After(prev.LastTouched())
}

func (a *StrategyAlert) stage() int {
	switch {
	case !a.IsOpen():
		return 2
	case a.Status == AlertStatusAcknowledged:
		return 1
	default:
		return 0
	}
}

// LastTouched returns the latest lifecycle timestamp of the alert
func (a *StrategyAlert) LastTouched() time.Time {
	last := a.CreatedAt
	for _, t := range []*time.Time{a.AcknowledgedAt, a.ActionTakenAt, a.ResolvedAt} {
		if t != nil && t.After(last) {
			last = *t
		}
	}
	return last
}

// ClosedBySystem reports whether the engine closed the alert itself, through
// escalation or auto-resolution, rather than the user
func (a *StrategyAlert) ClosedBySystem() bool {
	if a.IsOpen() {
		return false
	}
	return a.ResolutionReason == ResolutionSuperseded || a.ResolutionReason == ResolutionAutoResolved
}

// ResolutionTime returns resolvedAt - createdAt when the alert has been closed
func (a *StrategyAlert) ResolutionTime() (time.Duration, bool) {
	if a.ResolvedAt == nil {
		return 0, false
	}
	return a.ResolvedAt.Sub(a.CreatedAt), true
}

// Clone returns a deep copy so callers cannot mutate stored alerts
func (a *StrategyAlert) Clone() *StrategyAlert {
	if a == nil {
		return nil
	}
	c := *a
	if a.Threshold != nil {
		t := *a.Threshold
		c.Threshold = &t
	}
	c.CurrentValue = cloneFloat(a.CurrentValue)
	c.ActionTakenAt = cloneTime(a.ActionTakenAt)
	c.AcknowledgedAt = cloneTime(a.AcknowledgedAt)
	c.ResolvedAt = cloneTime(a.ResolvedAt)
	if a.SuggestedActions != nil {
		c.SuggestedActions = append([]string(nil), a.SuggestedActions...)
	}
	if a.Recommendations != nil {
		c.Recommendations = append([]StrategyRecommendation(nil), a.Recommendations...)
	}
	if a.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(a.Metadata))
		for k, v := range a.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}
