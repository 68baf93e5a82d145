// Package engine orchestrates the strategy alert pipeline.
//
// Every operation for a user runs under that user's lock: evaluate, de-duplicate
// against the alert store, enforce the daily cap, create. Persistence writes and
// notification delivery leave the lock as fire-and-forget work, so one slow
// channel or database never holds up evaluation. Users are independent and are
// processed in parallel.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"trading-journal/analytics"
	"trading-journal/database"
	models "trading-journal/database/models_pkg"
	"trading-journal/evaluators"
	"trading-journal/helpers"
	"trading-journal/monitoring"
	"trading-journal/notifications"
	"trading-journal/store"
)

// Evaluator names used in logs and failure metrics
const (
	EvaluatorDrawdown     = "drawdown"
	EvaluatorMilestone    = "milestone"
	EvaluatorMarket       = "market_condition"
	EvaluatorSignificance = "statistical_significance"
	EvaluatorCorrelation  = "correlation"
)

const defaultDispatchTimeout = 30 * time.Second

// Options configure an Engine. Only the zero-value-safe fields may be left empty.
type Options struct {
	Persistence      Persistence
	Strategies       StrategyLookup
	Notifier         Notifier
	Counter          DailyCounter
	Digest           DigestQueue
	Correlation      evaluators.CorrelationDetector
	DefaultConfig    *models.AlertConfiguration
	DefaultPrefs     *models.NotificationPreferences
	Logger           *zap.Logger
	Clock            func() time.Time
	DispatchTimeout  time.Duration
	PersistQueueSize int
}

// Engine is the alert orchestrator and the public API of the alert subsystem
type Engine struct {
	store           *store.AlertStore
	persistence     Persistence
	strategies      StrategyLookup
	notifier        Notifier
	counter         DailyCounter
	digest          DigestQueue
	correlation     evaluators.CorrelationDetector
	validator       *Validator
	defaultConfig   *models.AlertConfiguration
	defaultPrefs    *models.NotificationPreferences
	logger          *zap.Logger
	now             func() time.Time
	dispatchTimeout time.Duration

	persister  *persister
	dispatches sync.WaitGroup

	mu    sync.Mutex
	users map[string]*userState
}

type snapshotPair struct {
	previous *models.PerformanceSnapshot
	current  *models.PerformanceSnapshot
}

// hydration records which parts of a user's state were read from persistence
type hydration uint8

const (
	hydratedConfig hydration = 1 << iota
	hydratedPrefs
	hydratedAlerts
	hydratedStrategies

	hydratedAll = hydratedConfig | hydratedPrefs | hydratedAlerts | hydratedStrategies
)

// userState is guarded by its own mutex; the engine mutex only guards the map
type userState struct {
	mu         sync.Mutex
	hydrated   hydration
	config     *models.AlertConfiguration
	prefs      *models.NotificationPreferences
	strategies map[string]models.Strategy
	snapshots  map[string]snapshotPair
}

// New creates an engine
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Counter == nil {
		opts.Counter = NewMemoryCounter()
	}
	if opts.Digest == nil {
		opts.Digest = NewMemoryDigestQueue()
	}
	if opts.Correlation == nil {
		opts.Correlation = evaluators.CategoryCorrelationDetector{}
	}
	if opts.DefaultConfig == nil {
		opts.DefaultConfig = DefaultConfiguration()
	}
	if opts.DefaultPrefs == nil {
		opts.DefaultPrefs = DefaultPreferences()
	}
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = defaultDispatchTimeout
	}

	return &Engine{
		store:           store.New(opts.Clock),
		persistence:     opts.Persistence,
		strategies:      opts.Strategies,
		notifier:        opts.Notifier,
		counter:         opts.Counter,
		digest:          opts.Digest,
		correlation:     opts.Correlation,
		validator:       NewValidator(),
		defaultConfig:   opts.DefaultConfig,
		defaultPrefs:    opts.DefaultPrefs,
		logger:          opts.Logger,
		now:             opts.Clock,
		dispatchTimeout: opts.DispatchTimeout,
		persister:       newPersister(opts.PersistQueueSize, opts.Logger),
		users:           make(map[string]*userState),
	}
}

// DigestQueue returns the queue digest-bound notifications are pushed to
func (e *Engine) DigestQueue() DigestQueue {
	return e.digest
}

// Flush waits for in-flight notifications and queued persistence writes
func (e *Engine) Flush() {
	e.dispatches.Wait()
	e.persister.flush()
}

// Close waits for in-flight work and stops the persistence writer
func (e *Engine) Close() {
	e.dispatches.Wait()
	e.persister.close()
}

func (e *Engine) user(userID string) *userState {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.users[userID]
	if !ok {
		st = &userState{
			strategies: make(map[string]models.Strategy),
			snapshots:  make(map[string]snapshotPair),
		}
		e.users[userID] = st
	}
	return st
}

func (e *Engine) knownUsers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	users := make([]string, 0, len(e.users))
	for u := range e.users {
		users = append(users, u)
	}
	return users
}

// lock returns the user's state with its mutex held, hydrating it on first use.
// The caller must unlock st.mu.
func (e *Engine) lock(ctx context.Context, userID string) (*userState, error) {
	if userID == "" {
		return nil, database.NewValidationError("user_id", "is required")
	}

	st := e.user(userID)
	st.mu.Lock()
	if st.hydrated != hydratedAll {
		if err := e.hydrate(ctx, userID, st); err != nil {
			e.logger.Warn("user hydration incomplete, will retry", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return st, nil
}

// LoadUser (re)reads a user's configuration, preferences, strategies and alerts
// from persistence. Users without stored settings get the defaults. Stored
// alerts are merged with the ones in memory.
func (e *Engine) LoadUser(ctx context.Context, userID string) error {
	if userID == "" {
		return database.NewValidationError("user_id", "is required")
	}
	st := e.user(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.hydrated = 0
	return e.hydrate(ctx, userID, st)
}

// hydrate reads every part of the user's state not loaded yet. Parts are
// independent: a failing one is retried on the next call without holding back
// the others.
func (e *Engine) hydrate(ctx context.Context, userID string, st *userState) error {
	if st.config == nil {
		st.config = e.defaultConfigFor(userID)
	}
	if st.prefs == nil {
		st.prefs = e.defaultPrefsFor(userID)
	}
	if e.persistence == nil {
		st.hydrated = hydratedAll
		return nil
	}

	var errs []error
	if st.hydrated&hydratedConfig == 0 {
		cfg, err := e.persistence.LoadConfiguration(ctx, userID)
		switch {
		case err == nil:
			cfg.UserID = userID
			st.config = cfg
			st.hydrated |= hydratedConfig
		case database.IsNotFound(err):
			st.config = e.defaultConfigFor(userID)
			st.hydrated |= hydratedConfig
		default:
			errs = append(errs, fmt.Errorf("load configuration: %w", err))
		}
	}

	if st.hydrated&hydratedPrefs == 0 {
		prefs, err := e.persistence.LoadNotificationPreferences(ctx, userID)
		switch {
		case err == nil:
			prefs.UserID = userID
			st.prefs = prefs
			st.hydrated |= hydratedPrefs
		case database.IsNotFound(err):
			st.prefs = e.defaultPrefsFor(userID)
			st.hydrated |= hydratedPrefs
		default:
			errs = append(errs, fmt.Errorf("load preferences: %w", err))
		}
	}

	if st.hydrated&hydratedAlerts == 0 {
		alerts, err := e.persistence.LoadAlerts(ctx, userID)
		if err != nil {
			errs = append(errs, fmt.Errorf("load alerts: %w", err))
		} else {
			e.store.Load(userID, alerts)
			st.hydrated |= hydratedAlerts
		}
	}

	if st.hydrated&hydratedStrategies == 0 {
		if e.strategies == nil {
			st.hydrated |= hydratedStrategies
		} else if list, err := e.strategies.ListStrategies(ctx, userID, false); err != nil {
			errs = append(errs, fmt.Errorf("list strategies: %w", err))
		} else {
			for _, s := range list {
				st.strategies[s.ID] = s
			}
			st.hydrated |= hydratedStrategies
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	e.logger.Info("user loaded",
		zap.String("user_id", userID),
		zap.Int("alerts", len(e.store.GetAll(userID))),
		zap.Int("strategies", len(st.strategies)))
	return nil
}

func (e *Engine) defaultConfigFor(userID string) *models.AlertConfiguration {
	c := e.defaultConfig.Clone()
	c.UserID = userID
	return c
}

func (e *Engine) defaultPrefsFor(userID string) *models.NotificationPreferences {
	p := e.defaultPrefs.Clone()
	p.UserID = userID
	return p
}

// strategyFor labels alerts; unknown strategies fall back to their id
func (e *Engine) strategyFor(ctx context.Context, st *userState, userID, strategyID string) models.Strategy {
	if s, ok := st.strategies[strategyID]; ok {
		return s
	}
	if e.strategies != nil {
		s, err := e.strategies.GetStrategy(ctx, strategyID)
		if err == nil && (s.UserID == "" || s.UserID == userID) {
			st.strategies[strategyID] = *s
			return *s
		}
		if err != nil && !database.IsNotFound(err) {
			e.logger.Warn("strategy lookup failed", zap.String("strategy_id", strategyID), zap.Error(err))
		}
	}
	s := models.Strategy{ID: strategyID, UserID: userID, Title: strategyID, IsActive: true}
	st.strategies[strategyID] = s
	return s
}

// previousFor returns the explicit previous snapshot or the last one tracked
func previousFor(st *userState, strategyID string, explicit *models.PerformanceSnapshot) *models.PerformanceSnapshot {
	if explicit != nil {
		return explicit
	}
	return st.snapshots[strategyID].current
}

func (e *Engine) track(st *userState, strategyID string, previous *models.PerformanceSnapshot, current models.PerformanceSnapshot) {
	cur := current
	st.snapshots[strategyID] = snapshotPair{previous: previous, current: &cur}
}

// evaluate runs one evaluator and contains its failures
func (e *Engine) evaluate(name, userID, strategyID string, fn func() []*models.StrategyAlert) (out []*models.StrategyAlert) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.EvaluatorFailures.WithLabelValues(name).Inc()
			e.logger.Error("evaluator panicked",
				zap.String("evaluator", name),
				zap.String("user_id", userID),
				zap.String("strategy_id", strategyID),
				zap.Any("panic", r))
			out = nil
		}
	}()
	return fn()
}

// MonitorDrawdownLimits evaluates the user's drawdown rules against a snapshot
func (e *Engine) MonitorDrawdownLimits(ctx context.Context, userID, strategyID string, snapshot models.PerformanceSnapshot) ([]*models.StrategyAlert, error) {
	st, err := e.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer st.mu.Unlock()

	strategy := e.strategyFor(ctx, st, userID, strategyID)
	candidates := e.evaluate(EvaluatorDrawdown, userID, strategyID, func() []*models.StrategyAlert {
		return evaluators.EvaluateDrawdown(strategy, &snapshot, st.config)
	})
	return e.accept(ctx, st, userID, candidates), nil
}

// CheckPerformanceMilestones fires milestones crossed between previous and
// current. A nil previous uses the snapshot last recorded by
// ProcessPerformanceUpdate.
func (e *Engine) CheckPerformanceMilestones(ctx context.Context, userID, strategyID string, previous *models.PerformanceSnapshot, current models.PerformanceSnapshot) ([]*models.StrategyAlert, error) {
	st, err := e.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer st.mu.Unlock()

	strategy := e.strategyFor(ctx, st, userID, strategyID)
	prev := previousFor(st, strategyID, previous)
	candidates := e.evaluate(EvaluatorMilestone, userID, strategyID, func() []*models.StrategyAlert {
		return evaluators.EvaluateMilestones(strategy, prev, &current, st.config)
	})
	return e.accept(ctx, st, userID, candidates), nil
}

// CheckStatisticalSignificance fires when a strategy newly reaches the
// configured trade count or confidence. A nil previous uses the snapshot last
// recorded by ProcessPerformanceUpdate.
func (e *Engine) CheckStatisticalSignificance(ctx context.Context, userID, strategyID string, previous *models.PerformanceSnapshot, current models.PerformanceSnapshot) ([]*models.StrategyAlert, error) {
	st, err := e.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer st.mu.Unlock()

	strategy := e.strategyFor(ctx, st, userID, strategyID)
	prev := previousFor(st, strategyID, previous)
	candidates := e.evaluate(EvaluatorSignificance, userID, strategyID, func() []*models.StrategyAlert {
		return evaluators.EvaluateSignificance(strategy, prev, &current, st.config)
	})
	return e.accept(ctx, st, userID, candidates), nil
}

// DetectMarketConditionChanges evaluates a market delta against the user's
// thresholds, recommending actions for every known strategy
func (e *Engine) DetectMarketConditionChanges(ctx context.Context, userID string, change models.MarketConditionChange) ([]*models.StrategyAlert, error) {
	st, err := e.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer st.mu.Unlock()

	perfs := e.trackedPerformance(st)
	candidates := e.evaluate(EvaluatorMarket, userID, models.MarketWideStrategyID, func() []*models.StrategyAlert {
		return evaluators.EvaluateMarketConditions(perfs, change, st.config)
	})
	return e.accept(ctx, st, userID, candidates), nil
}

// DetectCorrelatedPerformanceIssues runs the correlation detector. With no
// explicit input it uses the snapshots tracked from performance updates.
func (e *Engine) DetectCorrelatedPerformanceIssues(ctx context.Context, userID string, perfs []models.StrategyPerformance) ([]*models.StrategyAlert, error) {
	st, err := e.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer st.mu.Unlock()

	if len(perfs) == 0 {
		perfs = e.trackedPerformance(st)
	}
	candidates, err := evaluators.DetectSafely(e.correlation, perfs, st.config)
	if err != nil {
		monitoring.EvaluatorFailures.WithLabelValues(EvaluatorCorrelation).Inc()
		e.logger.Error("correlation detector failed", zap.String("user_id", userID), zap.Error(err))
		return nil, nil
	}
	return e.accept(ctx, st, userID, candidates), nil
}

// trackedPerformance lists known strategies with their latest snapshots, by id
func (e *Engine) trackedPerformance(st *userState) []models.StrategyPerformance {
	ids := make([]string, 0, len(st.strategies))
	for id := range st.strategies {
		ids = append(ids, id)
	}
	for id := range st.snapshots {
		if _, ok := st.strategies[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]models.StrategyPerformance, 0, len(ids))
	for _, id := range ids {
		strategy, ok := st.strategies[id]
		if !ok {
			strategy = models.Strategy{ID: id, Title: id, IsActive: true}
		}
		sp := models.StrategyPerformance{Strategy: strategy}
		if pair, ok := st.snapshots[id]; ok && pair.current != nil {
			sp.Previous = pair.previous
			sp.Current = *pair.current
		} else {
			sp.Current = models.PerformanceSnapshot{StrategyID: id}
		}
		out = append(out, sp)
	}
	return out
}

// ProcessPerformanceUpdate runs the drawdown, milestone and significance
// evaluators for one recalculated strategy. A failing evaluator does not stop
// the others.
func (e *Engine) ProcessPerformanceUpdate(ctx context.Context, update models.PerformanceUpdate) ([]*models.StrategyAlert, error) {
	if update.StrategyID == "" {
		update.StrategyID = update.Current.StrategyID
	}
	if update.StrategyID == "" {
		return nil, database.NewValidationError("strategy_id", "is required")
	}

	st, err := e.lock(ctx, update.UserID)
	if err != nil {
		return nil, err
	}
	defer st.mu.Unlock()

	strategy := e.strategyFor(ctx, st, update.UserID, update.StrategyID)
	prev := previousFor(st, update.StrategyID, update.Previous)
	current := update.Current

	var candidates []*models.StrategyAlert
	candidates = append(candidates, e.evaluate(EvaluatorDrawdown, update.UserID, update.StrategyID, func() []*models.StrategyAlert {
		return evaluators.EvaluateDrawdown(strategy, &current, st.config)
	})...)
	candidates = append(candidates, e.evaluate(EvaluatorMilestone, update.UserID, update.StrategyID, func() []*models.StrategyAlert {
		return evaluators.EvaluateMilestones(strategy, prev, &current, st.config)
	})...)
	candidates = append(candidates, e.evaluate(EvaluatorSignificance, update.UserID, update.StrategyID, func() []*models.StrategyAlert {
		return evaluators.EvaluateSignificance(strategy, prev, &current, st.config)
	})...)

	e.track(st, update.StrategyID, prev, current)
	return e.accept(ctx, st, update.UserID, candidates), nil
}

// accept de-duplicates candidates against open alerts, applies the daily cap
// and creates the survivors. A candidate with a strictly higher severity than
// the open alert for its condition supersedes it. Must hold st.mu.
func (e *Engine) accept(ctx context.Context, st *userState, userID string, candidates []*models.StrategyAlert) []*models.StrategyAlert {
	if len(candidates) == 0 {
		return nil
	}
	// Highest severity first so tiered rules on one metric yield one alert
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Severity.Rank() > candidates[j].Severity.Rank()
	})

	now := e.now()
	var created []*models.StrategyAlert
	for _, c := range candidates {
		if c == nil {
			continue
		}
		c.UserID = userID
		log := e.logger.With(
			zap.String("user_id", userID),
			zap.String("strategy_id", c.StrategyID),
			zap.String("alert_type", string(c.Type)),
			zap.String("metric", c.Metric))

		existing, open := e.store.OpenFor(c.Key())
		if open && c.Severity.Rank() <= existing.Severity.Rank() {
			monitoring.AlertsDeduplicated.WithLabelValues(string(c.Type)).Inc()
			log.Debug("candidate alert already covered", zap.String("open_alert_id", existing.ID))
			continue
		}

		if limit := st.config.GlobalSettings.MaxAlertsPerDay; limit > 0 {
			count, err := e.counter.Count(ctx, userID, now)
			if err != nil {
				log.Warn("daily alert counter unavailable", zap.Error(err))
			} else if count >= int64(limit) {
				monitoring.AlertsRateLimited.Inc()
				log.Warn("alert dropped", zap.Error(&database.RateLimitedError{UserID: userID, Limit: limit}))
				continue
			}
		}

		if c.Metadata == nil {
			c.Metadata = make(map[string]interface{})
		}
		if open {
			superseded, err := e.store.Resolve(existing.ID, userID, models.ResolutionSuperseded)
			if err != nil {
				log.Error("failed to supersede open alert", zap.String("open_alert_id", existing.ID), zap.Error(err))
				continue
			}
			e.persistAlert(superseded)
			c.Metadata["supersedes"] = existing.ID
			monitoring.AlertsEscalated.WithLabelValues(string(c.Type)).Inc()
		}

		c.ID = helpers.NewIDAt(now)
		c.Status = models.AlertStatusActive
		c.CreatedAt = now
		if err := e.store.Create(c); err != nil {
			monitoring.AlertsDeduplicated.WithLabelValues(string(c.Type)).Inc()
			log.Warn("alert rejected by store", zap.Error(err))
			continue
		}
		if _, err := e.counter.Increment(ctx, userID, now); err != nil {
			log.Warn("failed to count alert", zap.Error(err))
		}

		monitoring.AlertsCreated.WithLabelValues(string(c.Type), string(c.Severity)).Inc()
		log.Info("alert created", zap.String("alert_id", c.ID), zap.String("severity", string(c.Severity)))

		e.persistAlert(c)
		e.deliver(c.Clone(), notifications.Resolve(c, st.prefs, st.config.GlobalSettings.EnableAlerts, now), now)
		created = append(created, c.Clone())
	}
	return created
}

func (e *Engine) persistAlert(a *models.StrategyAlert) {
	if e.persistence == nil {
		return
	}
	snapshot := a.Clone()
	e.persister.submit("save alert "+snapshot.ID, func(ctx context.Context) error {
		return e.persistence.SaveAlert(ctx, snapshot)
	})
}

// deliver hands decisions to the notifier or the digest queue off the caller's goroutine
func (e *Engine) deliver(alert *models.StrategyAlert, decisions []models.NotificationDecision, now time.Time) {
	if len(decisions) == 0 {
		return
	}

	e.dispatches.Add(1)
	go func() {
		defer e.dispatches.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.dispatchTimeout)
		defer cancel()

		for _, d := range decisions {
			if d.DeliverNow {
				if e.notifier == nil {
					continue
				}
				// Failures are logged by the notifier; the alert stays as it is
				_ = e.notifier.Send(ctx, d.Channel, alert)
				continue
			}

			entry := models.DigestEntry{
				AlertID:      alert.ID,
				UserID:       alert.UserID,
				StrategyName: alert.StrategyName,
				Type:         alert.Type,
				Severity:     alert.Severity,
				Title:        alert.Title,
				Channel:      d.Channel,
				Bucket:       d.Bucket,
				QueuedAt:     now,
			}
			if err := e.digest.Push(ctx, entry); err != nil {
				monitoring.NotificationsDispatched.WithLabelValues(string(d.Channel), monitoring.OutcomeFailed).Inc()
				e.logger.Warn("failed to queue digest entry",
					zap.String("alert_id", alert.ID), zap.String("channel", string(d.Channel)), zap.Error(err))
				continue
			}
			monitoring.NotificationsDispatched.WithLabelValues(string(d.Channel), monitoring.OutcomeQueued).Inc()
		}
	}()
}

// SendNotification resolves routing for an open alert and dispatches it
// again. It returns the routing decisions; delivery happens asynchronously.
// Closed alerts are rejected.
func (e *Engine) SendNotification(ctx context.Context, alertID, userID string) ([]models.NotificationDecision, error) {
	st, err := e.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer st.mu.Unlock()

	alert, err := e.store.Get(alertID, userID)
	if err != nil {
		return nil, err
	}
	if !alert.IsOpen() {
		return nil, database.NewValidationErrorWithValue("status", "closed alerts cannot be notified", alert.Status)
	}
	now := e.now()
	decisions := notifications.Resolve(alert, st.prefs, st.config.GlobalSettings.EnableAlerts, now)
	e.deliver(alert, decisions, now)
	return decisions, nil
}

// AcknowledgeAlert marks an alert as seen by the user
func (e *Engine) AcknowledgeAlert(ctx context.Context, alertID, userID string) (*models.StrategyAlert, error) {
	st, err := e.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer st.mu.Unlock()

	a, err := e.store.Acknowledge(alertID, userID)
	if err != nil {
		return nil, err
	}
	e.persistAlert(a)
	return a, nil
}

// ResolveAlert closes an alert; dismissal reasons close it as Dismissed
func (e *Engine) ResolveAlert(ctx context.Context, alertID, userID, reason string) (*models.StrategyAlert, error) {
	st, err := e.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer st.mu.Unlock()

	a, err := e.store.Resolve(alertID, userID, reason)
	if err != nil {
		return nil, err
	}
	e.persistAlert(a)
	return a, nil
}

// RecordAlertAction stores the follow-up action the user took on an alert
func (e *Engine) RecordAlertAction(ctx context.Context, alertID, userID, action string) (*models.StrategyAlert, error) {
	st, err := e.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer st.mu.Unlock()

	a, err := e.store.RecordAction(alertID, userID, action)
	if err != nil {
		return nil, err
	}
	e.persistAlert(a)
	return a, nil
}

// GetAlert returns one alert of the user
func (e *Engine) GetAlert(ctx context.Context, alertID, userID string) (*models.StrategyAlert, error) {
	st, err := e.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer st.mu.Unlock()
	return e.store.Get(alertID, userID)
}

// GetActiveAlerts returns the user's open alerts, optionally for one strategy
func (e *Engine) GetActiveAlerts(ctx context.Context, userID, strategyID string) ([]*models.StrategyAlert, error) {
	st, err := e.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer st.mu.Unlock()
	return e.store.GetActive(userID, strategyID), nil
}

// GetAllAlerts returns every alert of the user including closed ones
func (e *Engine) GetAllAlerts(ctx context.Context, userID string) ([]*models.StrategyAlert, error) {
	st, err := e.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer st.mu.Unlock()
	return e.store.GetAll(userID), nil
}

// GetAlertMetrics computes alert-effectiveness metrics over a trailing window
func (e *Engine) GetAlertMetrics(ctx context.Context, userID string, window models.MetricsWindow) (models.AlertMetrics, error) {
	st, err := e.lock(ctx, userID)
	if err != nil {
		return models.AlertMetrics{}, err
	}
	defer st.mu.Unlock()
	return analytics.ComputeMetrics(e.store.GetAll(userID), window, e.now()), nil
}

// UpdateAlertThresholds validates and replaces the user's alert configuration
func (e *Engine) UpdateAlertThresholds(ctx context.Context, userID string, cfg *models.AlertConfiguration) (*models.AlertConfiguration, error) {
	if err := e.validator.ValidateConfiguration(cfg); err != nil {
		return nil, err
	}

	st, err := e.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer st.mu.Unlock()

	next := cfg.Clone()
	next.UserID = userID
	next.UpdatedAt = e.now()
	st.config = next
	st.hydrated |= hydratedConfig

	if e.persistence != nil {
		saved := next.Clone()
		e.persister.submit("save configuration "+userID, func(ctx context.Context) error {
			return e.persistence.SaveConfiguration(ctx, userID, saved)
		})
	}
	return next.Clone(), nil
}

// UpdateNotificationPreferences validates and replaces the user's preferences
func (e *Engine) UpdateNotificationPreferences(ctx context.Context, userID string, prefs *models.NotificationPreferences) (*models.NotificationPreferences, error) {
	if err := e.validator.ValidatePreferences(prefs); err != nil {
		return nil, err
	}

	st, err := e.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer st.mu.Unlock()

	next := prefs.Clone()
	next.UserID = userID
	next.UpdatedAt = e.now()
	st.prefs = next
	st.hydrated |= hydratedPrefs

	if e.persistence != nil {
		saved := next.Clone()
		e.persister.submit("save preferences "+userID, func(ctx context.Context) error {
			return e.persistence.SaveNotificationPreferences(ctx, userID, saved)
		})
	}
	return next.Clone(), nil
}

// GetAlertConfiguration returns a copy of the user's alert configuration
func (e *Engine) GetAlertConfiguration(ctx context.Context, userID string) (*models.AlertConfiguration, error) {
	st, err := e.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer st.mu.Unlock()
	return st.config.Clone(), nil
}

// GetNotificationPreferences returns a copy of the user's notification preferences
func (e *Engine) GetNotificationPreferences(ctx context.Context, userID string) (*models.NotificationPreferences, error) {
	st, err := e.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer st.mu.Unlock()
	return st.prefs.Clone(), nil
}

// AutoResolveStale resolves open alerts that saw no activity for the owning
// user's autoResolveAfterDays. It returns the number of alerts resolved.
func (e *Engine) AutoResolveStale(ctx context.Context, now time.Time) (int, error) {
	users := make(map[string]bool)
	for _, u := range e.store.Users() {
		users[u] = true
	}
	for _, u := range e.knownUsers() {
		users[u] = true
	}

	resolved := 0
	for userID := range users {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}
		resolved += e.autoResolveUser(ctx, userID, now)
	}
	return resolved, nil
}

func (e *Engine) autoResolveUser(ctx context.Context, userID string, now time.Time) int {
	st, err := e.lock(ctx, userID)
	if err != nil {
		return 0
	}
	defer st.mu.Unlock()

	days := st.config.GlobalSettings.AutoResolveAfterDays
	if days <= 0 {
		return 0
	}
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	count := 0
	for _, a := range e.store.OpenOlderThan(userID, cutoff) {
		if lastActivity(a).After(cutoff) {
			continue
		}
		r, err := e.store.Resolve(a.ID, userID, models.ResolutionAutoResolved)
		if err != nil {
			e.logger.Warn("auto-resolve failed", zap.String("alert_id", a.ID), zap.Error(err))
			continue
		}
		e.persistAlert(r)
		monitoring.AlertsAutoResolved.Inc()
		count++
	}
	if count > 0 {
		e.logger.Info("stale alerts auto-resolved", zap.String("user_id", userID), zap.Int("count", count))
	}
	return count
}

func lastActivity(a *models.StrategyAlert) time.Time {
	last := a.CreatedAt
	for _, t := range []*time.Time{a.AcknowledgedAt, a.ActionTakenAt} {
		if t != nil && t.After(last) {
			last = *t
		}
	}
	return last
}
