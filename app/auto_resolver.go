package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StaleResolver resolves alerts nobody touched for too long
type StaleResolver interface {
	AutoResolveStale(ctx context.Context, now time.Time) (int, error)
}

// ClosedAlertPurger deletes closed alerts past retention
type ClosedAlertPurger interface {
	PurgeClosedAlerts(ctx context.Context, before time.Time) (int64, error)
}

// AutoResolver periodically auto-resolves stale alerts and purges old closed ones
type AutoResolver struct {
	resolver  StaleResolver
	purger    ClosedAlertPurger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger
	done      chan bool
	stopOnce  sync.Once
}

// NewAutoResolver creates a new auto-resolver. A nil purger or zero retention disables purging.
func NewAutoResolver(resolver StaleResolver, purger ClosedAlertPurger, interval, retention time.Duration, logger *zap.Logger) *AutoResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &AutoResolver{
		resolver:  resolver,
		purger:    purger,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		logger:    logger,
		done:      make(chan bool),
	}
}

// Start begins the resolve loop
func (ar *AutoResolver) Start() {
	ar.logger.Info("🧹 Auto-resolver started", zap.Duration("interval", ar.interval))

	ticker := time.NewTicker(ar.interval)
	defer ticker.Stop()

	// Initial run
	ar.runOnce(context.Background())

	for {
		select {
		case <-ticker.C:
			ar.runOnce(context.Background())
		case <-ar.done:
			ar.logger.Info("🧹 Auto-resolver stopped")
			return
		}
	}
}

// Stop stops the resolve loop
func (ar *AutoResolver) Stop() {
	ar.stopOnce.Do(func() { close(ar.done) })
}

func (ar *AutoResolver) runOnce(ctx context.Context) (int, int64) {
	ctx, cancel := context.WithTimeout(ctx, ar.interval)
	defer cancel()
	now := ar.now()

	resolved, err := ar.resolver.AutoResolveStale(ctx, now)
	if err != nil {
		ar.logger.Warn("⚠️ Auto-resolve pass incomplete", zap.Error(err))
	}

	var purged int64
	if ar.purger != nil && ar.retention > 0 {
		purged, err = ar.purger.PurgeClosedAlerts(ctx, now.Add(-ar.retention))
		if err != nil {
			ar.logger.Warn("⚠️ Failed to purge closed alerts", zap.Error(err))
		}
	}

	if resolved > 0 || purged > 0 {
		ar.logger.Info("✅ Alert housekeeping done", zap.Int("auto_resolved", resolved), zap.Int64("purged", purged))
	}
	return resolved, purged
}
