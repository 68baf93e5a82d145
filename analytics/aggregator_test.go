package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	models "trading-journal/database/models_pkg"
)

func at(t time.Time) *time.Time { return &t }

func TestComputeMetrics_Empty(t *testing.T) {
	now := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)
	m := ComputeMetrics(nil, models.WindowWeek, now)

	assert.Zero(t, m.TotalAlerts)
	assert.Empty(t, m.AlertsByType)
	assert.Empty(t, m.AlertsBySeverity)
	assert.Zero(t, m.AverageResolutionTime)
	assert.Zero(t, m.FalsePositiveRate)
	assert.Zero(t, m.UserEngagement.AcknowledgedRate)
	assert.Zero(t, m.UserEngagement.ActionTakenRate)
}

func TestComputeMetrics(t *testing.T) {
	now := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	alerts := []*models.StrategyAlert{
		{ID: "a1", Type: models.AlertTypeDrawdownLimit, Severity: models.SeverityHigh, Status: models.AlertStatusResolved,
			CreatedAt: now.Add(-2 * day), ResolvedAt: at(now.Add(-2*day + 2*time.Hour)), ActionTaken: "cut size"},
		{ID: "a2", Type: models.AlertTypeDrawdownLimit, Severity: models.SeverityCritical, Status: models.AlertStatusResolved,
			CreatedAt: now.Add(-3 * day), ResolvedAt: at(now.Add(-3*day + 4*time.Hour))},
		{ID: "a3", Type: models.AlertTypePerformanceMilestone, Severity: models.SeverityLow, Status: models.AlertStatusDismissed,
			CreatedAt: now.Add(-1 * day), ResolvedAt: at(now.Add(-1*day + 100*time.Hour))},
		{ID: "a4", Type: models.AlertTypePerformanceMilestone, Severity: models.SeverityLow, Status: models.AlertStatusAcknowledged,
			CreatedAt: now.Add(-1 * day)},
		{ID: "a5", Type: models.AlertTypeMarketConditionChange, Severity: models.SeverityMedium, Status: models.AlertStatusActive,
			CreatedAt: now.Add(-time.Hour)},
		// Outside the weekly window
		{ID: "old", Type: models.AlertTypeDrawdownLimit, Severity: models.SeverityHigh, Status: models.AlertStatusDismissed,
			CreatedAt: now.Add(-10 * day)},
	}

	m := ComputeMetrics(alerts, models.WindowWeek, now)

	assert.Equal(t, 5, m.TotalAlerts)
	assert.Equal(t, 2, m.AlertsByType[models.AlertTypeDrawdownLimit])
	assert.Equal(t, 2, m.AlertsByType[models.AlertTypePerformanceMilestone])
	assert.Equal(t, 1, m.AlertsByType[models.AlertTypeMarketConditionChange])
	assert.Equal(t, 2, m.AlertsBySeverity[models.SeverityLow])
	assert.InDelta(t, 3.0, m.AverageResolutionTime, 1e-9, "dismissed alerts are excluded")
	assert.InDelta(t, 1.0/3.0, m.FalsePositiveRate, 1e-9)
	assert.InDelta(t, 4.0/5.0, m.UserEngagement.AcknowledgedRate, 1e-9)
	assert.InDelta(t, 1.0/5.0, m.UserEngagement.ActionTakenRate, 1e-9)
	assert.Equal(t, now.Add(-7*day), m.From)
}

func TestComputeMetrics_SystemClosures(t *testing.T) {
	now := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	alerts := []*models.StrategyAlert{
		{ID: "user", Type: models.AlertTypeDrawdownLimit, Status: models.AlertStatusResolved,
			CreatedAt: now.Add(-2 * day), ResolvedAt: at(now.Add(-2*day + 2*time.Hour))},
		{ID: "escalated", Type: models.AlertTypeDrawdownLimit, Status: models.AlertStatusResolved,
			ResolutionReason: models.ResolutionSuperseded,
			CreatedAt:        now.Add(-3 * day), ResolvedAt: at(now.Add(-3*day + 50*time.Hour))},
		{ID: "stale", Type: models.AlertTypeDrawdownLimit, Status: models.AlertStatusResolved,
			ResolutionReason: models.ResolutionAutoResolved,
			CreatedAt:        now.Add(-4 * day), ResolvedAt: at(now.Add(-1 * day))},
		{ID: "seen-then-stale", Type: models.AlertTypeDrawdownLimit, Status: models.AlertStatusResolved,
			ResolutionReason: models.ResolutionAutoResolved, AcknowledgedAt: at(now.Add(-5 * day)),
			CreatedAt: now.Add(-6 * day), ResolvedAt: at(now.Add(-1 * day))},
		{ID: "noise", Type: models.AlertTypeDrawdownLimit, Status: models.AlertStatusDismissed,
			CreatedAt: now.Add(-1 * day), ResolvedAt: at(now.Add(-1*day + time.Hour))},
	}

	m := ComputeMetrics(alerts, models.WindowWeek, now)

	assert.Equal(t, 5, m.TotalAlerts)
	assert.InDelta(t, 2.0, m.AverageResolutionTime, 1e-9)
	assert.InDelta(t, 0.5, m.FalsePositiveRate, 1e-9)
	assert.InDelta(t, 3.0/5.0, m.UserEngagement.AcknowledgedRate, 1e-9)
}

func TestComputeMetrics_Windows(t *testing.T) {
	now := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)
	alerts := []*models.StrategyAlert{
		{Status: models.AlertStatusActive, CreatedAt: now.Add(-2 * time.Hour)},
		{Status: models.AlertStatusActive, CreatedAt: now.Add(-3 * 24 * time.Hour)},
		{Status: models.AlertStatusActive, CreatedAt: now.Add(-20 * 24 * time.Hour)},
	}

	tests := []struct {
		window models.MetricsWindow
		want   int
	}{
		{models.WindowDay, 1},
		{models.WindowWeek, 2},
		{models.WindowMonth, 3},
		{models.MetricsWindow("fortnight"), 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.window), func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeMetrics(alerts, tt.window, now).TotalAlerts)
		})
	}
}
