package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	models "trading-journal/database/models_pkg"
)

func newTestRepository(t *testing.T) *AlertRepository {
	t.Helper()
	db, err := Open(sqlite.Open(":memory:"))
	require.NoError(t, err)

	// :memory: databases are per connection
	sqlDB, err := db.DB().DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	repo := NewAlertRepository(db)
	require.NoError(t, repo.InitSchema())
	t.Cleanup(func() { db.Close() })
	return repo
}

func testAlert(id, strategyID string, createdAt time.Time) *StrategyAlert {
	return &StrategyAlert{
		ID:               id,
		UserID:           "u1",
		StrategyID:       strategyID,
		StrategyName:     "Breakout",
		Type:             models.AlertTypeDrawdownLimit,
		Metric:           models.MetricMaxDrawdown,
		Severity:         models.SeverityHigh,
		Status:           models.AlertStatusActive,
		Title:            "Drawdown limit breached",
		Threshold:        &models.ThresholdSnapshot{Metric: models.MetricMaxDrawdown, Operator: models.OperatorGreaterThan, Value: 10},
		CurrentValue:     models.Float(12),
		SuggestedActions: []string{"Review position sizing"},
		Metadata:         map[string]interface{}{"rule_id": "dd-1"},
		CreatedAt:        createdAt,
	}
}

func TestAlertRepository_SaveAndGetAlert(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	alert := testAlert("01HZX0000000000000000000A1", "s1", now)
	require.NoError(t, repo.SaveAlert(ctx, alert))

	got, err := repo.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, alert.StrategyID, got.StrategyID)
	assert.Equal(t, models.SeverityHigh, got.Severity)
	require.NotNil(t, got.Threshold)
	assert.Equal(t, 10.0, got.Threshold.Value)
	require.NotNil(t, got.CurrentValue)
	assert.Equal(t, 12.0, *got.CurrentValue)
	assert.Equal(t, []string{"Review position sizing"}, got.SuggestedActions)
	assert.Equal(t, "dd-1", got.Metadata["rule_id"])

	// Upsert on id keeps a single row
	resolvedAt := now.Add(time.Hour)
	alert.Status = models.AlertStatusResolved
	alert.ResolvedAt = &resolvedAt
	require.NoError(t, repo.SaveAlert(ctx, alert))

	all, err := repo.LoadAlerts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.AlertStatusResolved, all[0].Status)
}

func TestAlertRepository_SaveAlertKeepsNewerVersion(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	resolvedAt := now.Add(time.Hour)
	resolved := testAlert("01HZX0000000000000000000B1", "s1", now)
	resolved.Status = models.AlertStatusResolved
	resolved.ResolvedAt = &resolvedAt
	require.NoError(t, repo.SaveAlert(ctx, resolved))

	// An Active write of the same alert arriving late is ignored
	stale := testAlert("01HZX0000000000000000000B1", "s1", now)
	require.NoError(t, repo.SaveAlert(ctx, stale))

	got, err := repo.GetAlert(ctx, resolved.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusResolved, got.Status)
	require.NotNil(t, got.ResolvedAt)

	// A later change at the same stage still lands
	actedAt := now.Add(2 * time.Hour)
	resolved.ActionTaken = "reduced size"
	resolved.ActionTakenAt = &actedAt
	require.NoError(t, repo.SaveAlert(ctx, resolved))

	got, err = repo.GetAlert(ctx, resolved.ID)
	require.NoError(t, err)
	assert.Equal(t, "reduced size", got.ActionTaken)
}

func TestAlertRepository_GetAlertNotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.GetAlert(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestAlertRepository_GetAlertsFilters(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	a1 := testAlert("01HZX0000000000000000000B1", "s1", base)
	a2 := testAlert("01HZX0000000000000000000B2", "s2", base.Add(2*time.Hour))
	a3 := testAlert("01HZX0000000000000000000B3", "s3", base.Add(4*time.Hour))
	a3.Status = models.AlertStatusAcknowledged
	for _, a := range []*StrategyAlert{a1, a2, a3} {
		require.NoError(t, repo.SaveAlert(ctx, a))
	}

	tests := []struct {
		name       string
		strategyID string
		status     models.AlertStatus
		since      time.Time
		wantIDs    []string
	}{
		{name: "all newest first", wantIDs: []string{a3.ID, a2.ID, a1.ID}},
		{name: "by strategy", strategyID: "s2", wantIDs: []string{a2.ID}},
		{name: "by status", status: models.AlertStatusAcknowledged, wantIDs: []string{a3.ID}},
		{name: "since", since: base.Add(time.Hour), wantIDs: []string{a3.ID, a2.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts, err := repo.GetAlerts(ctx, "u1", tt.strategyID, tt.status, tt.since, 0)
			require.NoError(t, err)
			ids := make([]string, 0, len(alerts))
			for _, a := range alerts {
				ids = append(ids, a.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestAlertRepository_PurgeClosedAlerts(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	closed := testAlert("01HZX0000000000000000000C1", "s1", base)
	resolvedAt := base.Add(24 * time.Hour)
	closed.Status = models.AlertStatusDismissed
	closed.ResolvedAt = &resolvedAt
	open := testAlert("01HZX0000000000000000000C2", "s2", base)
	require.NoError(t, repo.SaveAlert(ctx, closed))
	require.NoError(t, repo.SaveAlert(ctx, open))

	n, err := repo.PurgeClosedAlerts(ctx, base.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	remaining, err := repo.LoadAlerts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, open.ID, remaining[0].ID)
}

func TestAlertRepository_Configuration(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.LoadConfiguration(ctx, "u1")
	assert.True(t, IsNotFound(err))

	cfg := &AlertConfiguration{
		DrawdownLimits: []models.DrawdownThreshold{
			{ID: "dd-1", Metric: models.MetricMaxDrawdown, Operator: models.OperatorGreaterThan, Value: 10, Enabled: true},
		},
		GlobalSettings: models.GlobalAlertSettings{EnableAlerts: true, MaxAlertsPerDay: 20},
	}
	require.NoError(t, repo.SaveConfiguration(ctx, "u1", cfg))

	cfg.GlobalSettings.MaxAlertsPerDay = 5
	require.NoError(t, repo.SaveConfiguration(ctx, "u1", cfg))

	got, err := repo.LoadConfiguration(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, 5, got.GlobalSettings.MaxAlertsPerDay)
	require.Len(t, got.DrawdownLimits, 1)
	assert.Equal(t, "dd-1", got.DrawdownLimits[0].ID)
}

func TestAlertRepository_NotificationPreferences(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.LoadNotificationPreferences(ctx, "u1")
	assert.True(t, IsNotFound(err))

	prefs := &NotificationPreferences{
		Channels: map[models.AlertType][]models.Channel{
			models.AlertTypeDrawdownLimit: {models.ChannelInApp, models.ChannelSMS},
		},
		SeverityFilters: map[models.Channel][]models.Severity{
			models.ChannelSMS: {models.SeverityCritical},
		},
		QuietHours: models.QuietHours{Enabled: true, Start: "22:00", End: "08:00", Timezone: "UTC"},
	}
	require.NoError(t, repo.SaveNotificationPreferences(ctx, "u1", prefs))

	got, err := repo.LoadNotificationPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, prefs.Channels, got.Channels)
	assert.Equal(t, prefs.SeverityFilters, got.SeverityFilters)
	assert.Equal(t, "22:00", got.QuietHours.Start)
}

func TestAlertRepository_Strategies(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.db.DB().Create(&[]Strategy{
		{ID: "s1", UserID: "u1", Title: "Breakout", Category: "momentum", IsActive: true},
		{ID: "s2", UserID: "u1", Title: "Fade", Category: "mean_reversion", IsActive: false},
	}).Error)
	// gorm skips zero-value fields with a default tag on create
	require.NoError(t, repo.db.DB().Model(&Strategy{}).Where("id = ?", "s2").Update("is_active", false).Error)

	s, err := repo.GetStrategy(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Breakout", s.Title)

	_, err = repo.GetStrategy(ctx, "nope")
	assert.True(t, IsNotFound(err))

	active, err := repo.ListStrategies(ctx, "u1", true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "s1", active[0].ID)

	all, err := repo.ListStrategies(ctx, "u1", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAlertRepository_Webhooks(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	hook := &AlertWebhook{UserID: "u1", Name: "phone", URL: "http://push.local/hook", IsActive: true}
	require.NoError(t, repo.SaveWebhook(ctx, hook))
	require.NotZero(t, hook.ID)

	active, err := repo.GetActiveWebhooks(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, active, 1)

	code := 200
	require.NoError(t, repo.SaveWebhookLog(ctx, &WebhookDeliveryLog{
		WebhookID:      hook.ID,
		AlertID:        "a1",
		TriggeredAt:    time.Now(),
		Status:         DeliveryStatusSuccess,
		HTTPStatusCode: &code,
	}))
	logs, err := repo.GetWebhookLogs(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, DeliveryStatusSuccess, logs[0].Status)

	require.NoError(t, repo.DeleteWebhook(ctx, "u1", hook.ID))
	assert.True(t, IsNotFound(repo.DeleteWebhook(ctx, "u1", hook.ID)))
}
