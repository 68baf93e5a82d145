package engine

import (
	"context"
	"time"

	models "trading-journal/database/models_pkg"
)

// Persistence stores alerts and per-user settings. Writes happen off the
// evaluation path and may be retried; reads are only used to hydrate a user.
type Persistence interface {
	SaveAlert(ctx context.Context, alert *models.StrategyAlert) error
	LoadAlerts(ctx context.Context, userID string) ([]models.StrategyAlert, error)
	SaveConfiguration(ctx context.Context, userID string, cfg *models.AlertConfiguration) error
	LoadConfiguration(ctx context.Context, userID string) (*models.AlertConfiguration, error)
	SaveNotificationPreferences(ctx context.Context, userID string, prefs *models.NotificationPreferences) error
	LoadNotificationPreferences(ctx context.Context, userID string) (*models.NotificationPreferences, error)
}

// StrategyLookup resolves strategy ids to titles and activity for labeling
type StrategyLookup interface {
	GetStrategy(ctx context.Context, strategyID string) (*models.Strategy, error)
	ListStrategies(ctx context.Context, userID string, activeOnly bool) ([]models.Strategy, error)
}

// Notifier delivers one alert over one channel
type Notifier interface {
	Send(ctx context.Context, channel models.Channel, alert *models.StrategyAlert) error
}

// DailyCounter counts created alerts per user and day
type DailyCounter interface {
	Count(ctx context.Context, userID string, day time.Time) (int64, error)
	Increment(ctx context.Context, userID string, day time.Time) (int64, error)
}

// DigestQueue holds notifications waiting for a daily or weekly digest
type DigestQueue interface {
	Push(ctx context.Context, entry models.DigestEntry) error
	Users(ctx context.Context, bucket models.FrequencyBucket) ([]string, error)
	Drain(ctx context.Context, userID string, bucket models.FrequencyBucket) ([]models.DigestEntry, error)
}
