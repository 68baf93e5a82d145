// Package store keeps StrategyAlert records in memory and owns their lifecycle.
//
// Alerts are indexed by id, by user (creation order) and by condition key.
// The condition index only holds open alerts, so "is there an open alert for
// (user, strategy, type, metric)" is a map lookup. Stored alerts are never
// handed out directly: every read returns a copy.
package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"trading-journal/database"
	models "trading-journal/database/models_pkg"
)

// AlertStore is the in-memory alert collection
type AlertStore struct {
	mu     sync.RWMutex
	alerts map[string]*models.StrategyAlert
	byUser map[string][]string
	open   map[models.AlertKey]string
	now    func() time.Time
}

// New creates an empty store. A nil clock uses time.Now.
func New(now func() time.Time) *AlertStore {
	if now == nil {
		now = time.Now
	}
	return &AlertStore{
		alerts: make(map[string]*models.StrategyAlert),
		byUser: make(map[string][]string),
		open:   make(map[models.AlertKey]string),
		now:    now,
	}
}

// Create adds a new alert. It fails with database.ErrDuplicateActive when an
// open alert with the same condition key exists.
func (s *AlertStore) Create(alert *models.StrategyAlert) error {
	if alert == nil || alert.ID == "" || alert.UserID == "" {
		return database.NewValidationError("alert", "id and user id are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.alerts[alert.ID]; exists {
		return database.NewValidationErrorWithValue("id", "alert id already used", alert.ID)
	}
	if alert.IsOpen() {
		if existing, ok := s.open[alert.Key()]; ok {
			return fmt.Errorf("create alert for %s/%s/%s (open alert %s): %w",
				alert.StrategyID, alert.Type, alert.Metric, existing, database.ErrDuplicateActive)
		}
	}

	s.insertLocked(alert.Clone())
	return nil
}

// Load merges persisted records into a user's alerts. A record replaces the
// in-memory copy only when it is further along its lifecycle; alerts storage
// does not hold yet are kept.
func (s *AlertStore) Load(userID string, alerts []models.StrategyAlert) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := make([]models.StrategyAlert, len(alerts))
	copy(sorted, alerts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	added := false
	for i := range sorted {
		a := sorted[i].Clone()
		if a.UserID != userID {
			continue
		}
		cur, ok := s.alerts[a.ID]
		switch {
		case !ok:
			s.byUser[userID] = append(s.byUser[userID], a.ID)
			added = true
		case a.Supersedes(cur):
			if s.open[cur.Key()] == cur.ID {
				delete(s.open, cur.Key())
			}
		default:
			continue
		}
		s.alerts[a.ID] = a
		if a.IsOpen() {
			s.claimOpenLocked(a)
		}
	}

	if added {
		ids := s.byUser[userID]
		sort.SliceStable(ids, func(i, j int) bool {
			return s.alerts[ids[i]].CreatedAt.Before(s.alerts[ids[j]].CreatedAt)
		})
	}
}

func (s *AlertStore) insertLocked(a *models.StrategyAlert) {
	s.alerts[a.ID] = a
	s.byUser[a.UserID] = append(s.byUser[a.UserID], a.ID)
	if a.IsOpen() {
		s.open[a.Key()] = a.ID
	}
}

// claimOpenLocked indexes an open alert unless a newer open alert already
// holds its condition key
func (s *AlertStore) claimOpenLocked(a *models.StrategyAlert) {
	if held, ok := s.open[a.Key()]; ok && held != a.ID {
		if h := s.alerts[held]; h != nil && h.IsOpen() && h.CreatedAt.After(a.CreatedAt) {
			return
		}
	}
	s.open[a.Key()] = a.ID
}

// Get returns a copy of the alert with the given id owned by userID
func (s *AlertStore) Get(id, userID string) (*models.StrategyAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, err := s.ownedLocked(id, userID)
	if err != nil {
		return nil, err
	}
	return a.Clone(), nil
}

// OpenFor returns the open alert for a condition key, if any
func (s *AlertStore) OpenFor(key models.AlertKey) (*models.StrategyAlert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.open[key]
	if !ok {
		return nil, false
	}
	return s.alerts[id].Clone(), true
}

// Acknowledge moves an Active alert to Acknowledged. Acknowledging an already
// acknowledged alert is a no-op; closed alerts cannot be acknowledged.
func (s *AlertStore) Acknowledge(id, userID string) (*models.StrategyAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.ownedLocked(id, userID)
	if err != nil {
		return nil, err
	}

	switch a.Status {
	case models.AlertStatusActive:
		now := s.now()
		a.Status = models.AlertStatusAcknowledged
		a.AcknowledgedAt = &now
	case models.AlertStatusAcknowledged:
	default:
		return nil, database.NewValidationErrorWithValue("status", "closed alerts cannot be acknowledged", a.Status)
	}
	return a.Clone(), nil
}

// Resolve closes an open alert. Dismissal reasons produce Dismissed, anything
// else Resolved.
func (s *AlertStore) Resolve(id, userID, reason string) (*models.StrategyAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.ownedLocked(id, userID)
	if err != nil {
		return nil, err
	}
	if !a.IsOpen() {
		return nil, database.NewValidationErrorWithValue("status", "alert is already closed", a.Status)
	}

	now := s.now()
	delete(s.open, a.Key())
	a.Status = models.AlertStatusResolved
	if models.IsDismissalReason(reason) {
		a.Status = models.AlertStatusDismissed
	}
	a.ResolvedAt = &now
	a.ResolutionReason = strings.TrimSpace(reason)
	return a.Clone(), nil
}

// RecordAction stores the follow-up action a user took on an alert
func (s *AlertStore) RecordAction(id, userID, action string) (*models.StrategyAlert, error) {
	action = strings.TrimSpace(action)
	if action == "" {
		return nil, database.NewValidationError("action", "must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.ownedLocked(id, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	a.ActionTaken = action
	a.ActionTakenAt = &now
	return a.Clone(), nil
}

// GetActive returns the user's open alerts, oldest first, optionally for one strategy
func (s *AlertStore) GetActive(userID, strategyID string) []*models.StrategyAlert {
	return s.filter(userID, func(a *models.StrategyAlert) bool {
		return a.IsOpen() && (strategyID == "" || a.StrategyID == strategyID)
	})
}

// GetAll returns every alert of the user including closed ones, oldest first
func (s *AlertStore) GetAll(userID string) []*models.StrategyAlert {
	return s.filter(userID, func(*models.StrategyAlert) bool { return true })
}

// OpenOlderThan returns the user's open alerts created before cutoff
func (s *AlertStore) OpenOlderThan(userID string, cutoff time.Time) []*models.StrategyAlert {
	return s.filter(userID, func(a *models.StrategyAlert) bool {
		return a.IsOpen() && a.CreatedAt.Before(cutoff)
	})
}

// Users returns the ids of all users with alerts in the store
func (s *AlertStore) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]string, 0, len(s.byUser))
	for u := range s.byUser {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

func (s *AlertStore) filter(userID string, keep func(*models.StrategyAlert) bool) []*models.StrategyAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byUser[userID]
	out := make([]*models.StrategyAlert, 0, len(ids))
	for _, id := range ids {
		if a := s.alerts[id]; a != nil && keep(a) {
			out = append(out, a.Clone())
		}
	}
	return out
}

// ownedLocked hides alerts of other users behind NotFound
func (s *AlertStore) ownedLocked(id, userID string) (*models.StrategyAlert, error) {
	a, ok := s.alerts[id]
	if !ok || a.UserID != userID {
		return nil, database.NewNotFoundErrorWithID("alert", id)
	}
	return a, nil
}
