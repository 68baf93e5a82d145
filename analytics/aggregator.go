// Package analytics derives alert-effectiveness metrics from a user's alerts
package analytics

import (
	"time"

	models "trading-journal/database/models_pkg"
)

// ComputeMetrics aggregates the alerts created within [now-window, now].
//
// Average resolution time covers Resolved alerts only. The false-positive rate
// is Dismissed / (Resolved + Dismissed). An alert counts as acknowledged once
// it has left the Active state, and as actioned once a follow-up was recorded.
// Alerts closed by the engine (superseded, auto-resolved) count toward the
// totals but not toward resolution or false-positive figures, and only count
// as acknowledged when the user acknowledged them first. Every rate is zero
// when its denominator is zero.
func ComputeMetrics(alerts []*models.StrategyAlert, window models.MetricsWindow, now time.Time) models.AlertMetrics {
	from := now.Add(-window.Duration())
	m := models.AlertMetrics{
		AlertsByType:     make(map[models.AlertType]int),
		AlertsBySeverity: make(map[models.Severity]int),
		Window:           window,
		From:             from,
		To:               now,
	}

	var (
		resolved, dismissed int
		resolutionHours     float64
		acknowledged        int
		actioned            int
	)

	for _, a := range alerts {
		if a == nil || a.CreatedAt.Before(from) || a.CreatedAt.After(now) {
			continue
		}
		m.TotalAlerts++
		m.AlertsByType[a.Type]++
		m.AlertsBySeverity[a.Severity]++

		system := a.ClosedBySystem()
		switch {
		case system:
		case a.Status == models.AlertStatusResolved:
			resolved++
			if d, ok := a.ResolutionTime(); ok {
				resolutionHours += d.Hours()
			}
		case a.Status == models.AlertStatusDismissed:
			dismissed++
		}
		if a.Status != models.AlertStatusActive && (!system || a.AcknowledgedAt != nil) {
			acknowledged++
		}
		if a.ActionTaken != "" {
			actioned++
		}
	}

	if resolved > 0 {
		m.AverageResolutionTime = resolutionHours / float64(resolved)
	}
	if closed := resolved + dismissed; closed > 0 {
		m.FalsePositiveRate = float64(dismissed) / float64(closed)
	}
	if m.TotalAlerts > 0 {
		m.UserEngagement.AcknowledgedRate = float64(acknowledged) / float64(m.TotalAlerts)
		m.UserEngagement.ActionTakenRate = float64(actioned) / float64(m.TotalAlerts)
	}
	return m
}
