package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-journal/database"
	models "trading-journal/database/models_pkg"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newAlert(id, strategyID string, createdAt time.Time) *models.StrategyAlert {
	return &models.StrategyAlert{
		ID:         id,
		UserID:     "u1",
		StrategyID: strategyID,
		Type:       models.AlertTypeDrawdownLimit,
		Metric:     models.MetricMaxDrawdown,
		Severity:   models.SeverityHigh,
		Status:     models.AlertStatusActive,
		CreatedAt:  createdAt,
	}
}

func TestAlertStore_CreateRejectsDuplicateOpen(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s := New(fixedClock(now))

	require.NoError(t, s.Create(newAlert("a1", "s1", now)))

	err := s.Create(newAlert("a2", "s1", now))
	require.Error(t, err)
	assert.True(t, errors.Is(err, database.ErrDuplicateActive))

	// Different metric is a different condition
	other := newAlert("a3", "s1", now)
	other.Metric = models.MetricCurrentDrawdown
	require.NoError(t, s.Create(other))

	// Acknowledged still blocks a duplicate
	_, err = s.Acknowledge("a1", "u1")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Create(newAlert("a4", "s1", now)), database.ErrDuplicateActive)

	// Once closed the condition may alert again
	_, err = s.Resolve("a1", "u1", "fixed")
	require.NoError(t, err)
	require.NoError(t, s.Create(newAlert("a5", "s1", now)))

	open, ok := s.OpenFor(models.AlertKey{UserID: "u1", StrategyID: "s1", Type: models.AlertTypeDrawdownLimit, Metric: models.MetricMaxDrawdown})
	require.True(t, ok)
	assert.Equal(t, "a5", open.ID)
}

func TestAlertStore_CreateValidation(t *testing.T) {
	s := New(nil)
	assert.True(t, database.IsValidation(s.Create(nil)))
	assert.True(t, database.IsValidation(s.Create(&models.StrategyAlert{ID: "x"})))

	require.NoError(t, s.Create(newAlert("a1", "s1", time.Now())))
	reused := newAlert("a1", "s2", time.Now())
	assert.True(t, database.IsValidation(s.Create(reused)), "reused id")
}

func TestAlertStore_Lifecycle(t *testing.T) {
	created := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := created
	s := New(func() time.Time { return clock })

	require.NoError(t, s.Create(newAlert("a1", "s1", created)))

	a, err := s.Get("a1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusActive, a.Status)

	clock = created.Add(30 * time.Minute)
	a, err = s.Acknowledge("a1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusAcknowledged, a.Status)
	require.NotNil(t, a.AcknowledgedAt)
	assert.Equal(t, clock, *a.AcknowledgedAt)

	assert.Len(t, s.GetActive("u1", ""), 1)

	clock = created.Add(2 * time.Hour)
	a, err = s.Resolve("a1", "u1", "reduced size")
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusResolved, a.Status)
	assert.Equal(t, "reduced size", a.ResolutionReason)
	d, ok := a.ResolutionTime()
	require.True(t, ok)
	assert.Equal(t, 2*time.Hour, d)

	assert.Empty(t, s.GetActive("u1", ""))
	assert.Len(t, s.GetAll("u1"), 1)

	_, err = s.Resolve("a1", "u1", "again")
	assert.True(t, database.IsValidation(err))
	_, err = s.Acknowledge("a1", "u1")
	assert.True(t, database.IsValidation(err))
}

func TestAlertStore_ResolveDismissal(t *testing.T) {
	tests := []struct {
		reason string
		want   models.AlertStatus
	}{
		{"dismiss", models.AlertStatusDismissed},
		{"Dismissed", models.AlertStatusDismissed},
		{"FALSE_POSITIVE", models.AlertStatusDismissed},
		{"", models.AlertStatusResolved},
		{"hit stop", models.AlertStatusResolved},
	}

	for i, tt := range tests {
		t.Run(fmt.Sprintf("reason %q", tt.reason), func(t *testing.T) {
			s := New(nil)
			id := fmt.Sprintf("a%d", i)
			require.NoError(t, s.Create(newAlert(id, "s1", time.Now())))

			a, err := s.Resolve(id, "u1", tt.reason)
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Status)
			assert.NotNil(t, a.ResolvedAt)
		})
	}
}

func TestAlertStore_NotFound(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Create(newAlert("a1", "s1", time.Now())))

	_, err := s.Acknowledge("missing", "u1")
	assert.True(t, database.IsNotFound(err))
	_, err = s.Resolve("missing", "u1", "")
	assert.True(t, database.IsNotFound(err))
	_, err = s.RecordAction("missing", "u1", "cut size")
	assert.True(t, database.IsNotFound(err))

	// Other users cannot see the alert
	_, err = s.Acknowledge("a1", "u2")
	assert.True(t, database.IsNotFound(err))
}

func TestAlertStore_RecordAction(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s := New(fixedClock(now))
	require.NoError(t, s.Create(newAlert("a1", "s1", now)))

	_, err := s.RecordAction("a1", "u1", "  ")
	assert.True(t, database.IsValidation(err))

	a, err := s.RecordAction("a1", "u1", "reduced position size")
	require.NoError(t, err)
	assert.Equal(t, "reduced position size", a.ActionTaken)
	assert.Equal(t, now, *a.ActionTakenAt)
	assert.Equal(t, models.AlertStatusActive, a.Status)
}

func TestAlertStore_GetActiveFilterAndCopies(t *testing.T) {
	now := time.Now()
	s := New(nil)
	require.NoError(t, s.Create(newAlert("a1", "s1", now)))
	require.NoError(t, s.Create(newAlert("a2", "s2", now.Add(time.Second))))

	assert.Len(t, s.GetActive("u1", ""), 2)
	only := s.GetActive("u1", "s2")
	require.Len(t, only, 1)
	assert.Equal(t, "a2", only[0].ID)

	only[0].Status = models.AlertStatusDismissed
	again, err := s.Get("a2", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusActive, again.Status, "returned alerts are copies")
}

func TestAlertStore_LoadAndOpenOlderThan(t *testing.T) {
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	resolved := base.Add(time.Hour)
	s := New(nil)

	s.Load("u1", []models.StrategyAlert{
		*newAlert("a2", "s2", base.Add(48*time.Hour)),
		*newAlert("a1", "s1", base),
		{ID: "a0", UserID: "u1", StrategyID: "s1", Type: models.AlertTypeDrawdownLimit, Metric: models.MetricMaxDrawdown,
			Status: models.AlertStatusResolved, CreatedAt: base.Add(-time.Hour), ResolvedAt: &resolved},
	})

	all := s.GetAll("u1")
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a0", "a1", "a2"}, []string{all[0].ID, all[1].ID, all[2].ID})

	stale := s.OpenOlderThan("u1", base.Add(24*time.Hour))
	require.Len(t, stale, 1)
	assert.Equal(t, "a1", stale[0].ID)

	assert.ErrorIs(t, s.Create(newAlert("a3", "s1", base)), database.ErrDuplicateActive)
	assert.Equal(t, []string{"u1"}, s.Users())

	s.Load("u1", nil)
	assert.Len(t, s.GetAll("u1"), 3, "an empty load keeps alerts storage has not seen")
}

func TestAlertStore_LoadMerges(t *testing.T) {
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	acked := base.Add(time.Hour)
	s := New(fixedClock(acked))

	// Created and acknowledged while storage was unreachable
	require.NoError(t, s.Create(newAlert("a1", "s1", base)))
	_, err := s.Acknowledge("a1", "u1")
	require.NoError(t, err)
	require.NoError(t, s.Create(newAlert("a2", "s2", base.Add(time.Minute))))

	resolvedAt := base.Add(2 * time.Hour)
	stored := *newAlert("a2", "s2", base.Add(time.Minute))
	stored.Status = models.AlertStatusResolved
	stored.ResolvedAt = &resolvedAt

	tests := []struct {
		name   string
		id     string
		status models.AlertStatus
	}{
		{name: "missing from storage is kept", id: "a1", status: models.AlertStatusAcknowledged},
		{name: "further along in storage wins", id: "a2", status: models.AlertStatusResolved},
		{name: "unknown stored alert is added", id: "a0", status: models.AlertStatusActive},
	}

	s.Load("u1", []models.StrategyAlert{
		stored,
		*newAlert("a1", "s1", base), // stale Active copy of a1
		*newAlert("a0", "s3", base.Add(-time.Hour)),
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Get(tt.id, "u1")
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
		})
	}

	all := s.GetAll("u1")
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a0", "a1", "a2"}, []string{all[0].ID, all[1].ID, all[2].ID})

	open, ok := s.OpenFor(models.AlertKey{UserID: "u1", StrategyID: "s1", Type: models.AlertTypeDrawdownLimit, Metric: models.MetricMaxDrawdown})
	require.True(t, ok)
	assert.Equal(t, "a1", open.ID)
	_, ok = s.OpenFor(models.AlertKey{UserID: "u1", StrategyID: "s2", Type: models.AlertTypeDrawdownLimit, Metric: models.MetricMaxDrawdown})
	assert.False(t, ok, "closed by the stored version")
}

func TestAlertStore_ConcurrentCreate(t *testing.T) {
	s := New(nil)
	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Create(newAlert(fmt.Sprintf("a%d", i), "s1", time.Now())); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, s.GetActive("u1", "s1"), 1)
}
