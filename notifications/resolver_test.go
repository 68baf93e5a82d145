package notifications

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "trading-journal/database/models_pkg"
	"trading-journal/evaluators"
)

func basePreferences() *models.NotificationPreferences {
	return &models.NotificationPreferences{
		UserID: "u1",
		Channels: map[models.AlertType][]models.Channel{
			models.AlertTypeDrawdownLimit:        {models.ChannelInApp, models.ChannelEmail, models.ChannelSMS},
			models.AlertTypePerformanceMilestone: {models.ChannelInApp, models.ChannelEmail},
		},
		SeverityFilters: map[models.Channel][]models.Severity{
			models.ChannelSMS: {models.SeverityCritical},
		},
		Frequency: models.FrequencySettings{
			Immediate: []models.AlertType{models.AlertTypeDrawdownLimit},
			Daily:     []models.AlertType{models.AlertTypePerformanceMilestone},
		},
	}
}

func channelsOf(decisions []models.NotificationDecision) []models.Channel {
	out := make([]models.Channel, 0, len(decisions))
	for _, d := range decisions {
		out = append(out, d.Channel)
	}
	return out
}

func TestResolve_SeverityFilter(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	prefs := basePreferences()

	high := &models.StrategyAlert{Type: models.AlertTypeDrawdownLimit, Severity: models.SeverityHigh}
	decisions := Resolve(high, prefs, true, now)
	assert.Equal(t, []models.Channel{models.ChannelInApp, models.ChannelEmail}, channelsOf(decisions))

	critical := &models.StrategyAlert{Type: models.AlertTypeDrawdownLimit, Severity: models.SeverityCritical}
	decisions = Resolve(critical, prefs, true, now)
	assert.Equal(t, []models.Channel{models.ChannelInApp, models.ChannelEmail, models.ChannelSMS}, channelsOf(decisions))
	for _, d := range decisions {
		assert.True(t, d.DeliverNow)
		assert.Equal(t, models.BucketImmediate, d.Bucket)
	}
}

func TestResolve_QuietHours(t *testing.T) {
	prefs := basePreferences()
	prefs.QuietHours = models.QuietHours{Enabled: true, Start: "22:00", End: "08:00", Timezone: "UTC"}
	prefs.Channels[models.AlertTypeMarketConditionChange] = []models.Channel{models.ChannelInApp}
	night := time.Date(2026, 6, 1, 23, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		alert *models.StrategyAlert
		want  []models.Channel
	}{
		{
			name:  "low severity type not immediate is silenced",
			alert: &models.StrategyAlert{Type: models.AlertTypeMarketConditionChange, Severity: models.SeverityLow},
			want:  []models.Channel{},
		},
		{
			name:  "critical type not immediate is still silenced",
			alert: &models.StrategyAlert{Type: models.AlertTypePerformanceMilestone, Severity: models.SeverityCritical},
			want:  []models.Channel{},
		},
		{
			name:  "high immediate type is silenced",
			alert: &models.StrategyAlert{Type: models.AlertTypeDrawdownLimit, Severity: models.SeverityHigh},
			want:  []models.Channel{},
		},
		{
			name:  "critical immediate type overrides",
			alert: &models.StrategyAlert{Type: models.AlertTypeDrawdownLimit, Severity: models.SeverityCritical},
			want:  []models.Channel{models.ChannelInApp, models.ChannelEmail, models.ChannelSMS},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, channelsOf(Resolve(tt.alert, prefs, true, night)))
		})
	}

	// Outside the window everything flows again
	noon := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	low := &models.StrategyAlert{Type: models.AlertTypeMarketConditionChange, Severity: models.SeverityLow}
	assert.Equal(t, []models.Channel{models.ChannelInApp}, channelsOf(Resolve(low, prefs, true, noon)))
}

func TestResolve_FrequencyBuckets(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	prefs := basePreferences()

	milestone := &models.StrategyAlert{Type: models.AlertTypePerformanceMilestone, Severity: models.SeverityLow}
	decisions := Resolve(milestone, prefs, true, now)
	require.Len(t, decisions, 2)
	for _, d := range decisions {
		assert.False(t, d.DeliverNow)
		assert.Equal(t, models.BucketDaily, d.Bucket)
	}

	// Types in no bucket go out immediately
	prefs.Channels[models.AlertTypeStrategyCorrelation] = []models.Channel{models.ChannelPush}
	corr := &models.StrategyAlert{Type: models.AlertTypeStrategyCorrelation, Severity: models.SeverityMedium}
	decisions = Resolve(corr, prefs, true, now)
	require.Len(t, decisions, 1)
	assert.True(t, decisions[0].DeliverNow)
}

func TestResolve_Suppressed(t *testing.T) {
	now := time.Now()
	prefs := basePreferences()
	alert := &models.StrategyAlert{Type: models.AlertTypeDrawdownLimit, Severity: models.SeverityCritical}

	assert.Empty(t, Resolve(alert, prefs, false, now), "global switch off")
	assert.Empty(t, Resolve(alert, nil, true, now))

	unrouted := &models.StrategyAlert{Type: models.AlertTypeDisciplineViolation, Severity: models.SeverityCritical}
	assert.Empty(t, Resolve(unrouted, prefs, true, now))
}

func TestResolve_RuleChannelRestriction(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	prefs := basePreferences()

	tests := []struct {
		name     string
		metadata interface{}
	}{
		{"fresh alert", []string{"SMS", "EMAIL"}},
		{"persisted alert", []interface{}{"SMS", "EMAIL"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert := &models.StrategyAlert{
				Type:     models.AlertTypeDrawdownLimit,
				Severity: models.SeverityCritical,
				Metadata: map[string]interface{}{evaluators.MetadataChannels: tt.metadata},
			}
			assert.Equal(t, []models.Channel{models.ChannelEmail, models.ChannelSMS}, channelsOf(Resolve(alert, prefs, true, now)))
		})
	}
}

func TestInQuietHours(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2026, 6, 1, h, m, 0, 0, time.UTC) }

	tests := []struct {
		name  string
		quiet models.QuietHours
		now   time.Time
		want  bool
	}{
		{"disabled", models.QuietHours{Start: "22:00", End: "08:00"}, at(23, 0), false},
		{"wrapping inside late", models.QuietHours{Enabled: true, Start: "22:00", End: "08:00"}, at(23, 0), true},
		{"wrapping inside early", models.QuietHours{Enabled: true, Start: "22:00", End: "08:00"}, at(7, 59), true},
		{"wrapping end excluded", models.QuietHours{Enabled: true, Start: "22:00", End: "08:00"}, at(8, 0), false},
		{"wrapping start included", models.QuietHours{Enabled: true, Start: "22:00", End: "08:00"}, at(22, 0), true},
		{"same day window", models.QuietHours{Enabled: true, Start: "12:00", End: "14:00"}, at(13, 0), true},
		{"same day outside", models.QuietHours{Enabled: true, Start: "12:00", End: "14:00"}, at(15, 0), false},
		{"empty window", models.QuietHours{Enabled: true, Start: "09:00", End: "09:00"}, at(9, 0), false},
		{"bad clock", models.QuietHours{Enabled: true, Start: "25:00", End: "08:00"}, at(23, 0), false},
		{"time zone shifts window", models.QuietHours{Enabled: true, Start: "22:00", End: "08:00", Timezone: "Asia/Jakarta"}, at(16, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InQuietHours(tt.quiet, tt.now))
		})
	}
}
