package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"trading-journal/api"
	"trading-journal/cache"
	"trading-journal/config"
	"trading-journal/database"
	models "trading-journal/database/models_pkg"
	"trading-journal/engine"
	"trading-journal/notifications"
	"trading-journal/realtime"
)

// App represents the main application
type App struct {
	config         *config.Config
	logger         *zap.Logger
	db             *database.Database
	redis          *cache.RedisClient
	repo           *database.AlertRepository
	broker         *realtime.Broker
	dispatcher     *notifications.Dispatcher
	webhookManager *notifications.WebhookManager
	outbox         *notifications.KafkaOutbox
	engine         *engine.Engine
	apiServer      *api.Server
	autoResolver   *AutoResolver
	dailyDigest    *DigestFlusher
	weeklyDigest   *DigestFlusher
	perfFeed       *PerformanceFeed
}

// New creates a new application instance
func New(cfg *config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		config: cfg,
		logger: logger,
	}
}

func (a *App) databaseConfig() database.Config {
	return database.Config{
		Host:     a.config.Database.Host,
		Port:     a.config.Database.Port,
		User:     a.config.Database.User,
		Password: a.config.Database.Password,
		DBName:   a.config.Database.Name,
		SSLMode:  a.config.Database.SSLMode,
	}
}

// Migrate creates or updates the database schema and exits
func (a *App) Migrate() error {
	db, err := database.Connect(a.databaseConfig())
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := database.NewAlertRepository(db).InitSchema(); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}
	a.logger.Info("✅ Schema is up to date")
	return nil
}

// Start starts the application and blocks until shutdown
func (a *App) Start() error {
	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Database Connection
	a.logger.Info("🗄️  Connecting to database...")
	db, err := database.Connect(a.databaseConfig())
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	// 2. Redis Connection
	var redisClient *cache.RedisClient
	if a.config.Redis.Host != "" {
		a.logger.Info("🧠 Connecting to Redis...")
		redisClient = cache.NewRedisClient(a.config.Redis.Host, a.config.Redis.Port, a.config.Redis.Password)
	}
	if redisClient == nil {
		a.logger.Warn("⚠️  Redis connection failed. Using in-process counters and digest queues.")
	}

	// 3. Per-user defaults
	defaults, err := config.LoadDefaults(a.config.Alerts.DefaultsFile)
	if err != nil {
		return err
	}

	if err := a.wire(db, redisClient, defaults); err != nil {
		return err
	}

	// 4. Background workers
	var wg sync.WaitGroup
	for _, run := range []func(){a.broker.Run, a.autoResolver.Start, a.dailyDigest.Start, a.weeklyDigest.Start} {
		wg.Add(1)
		go func(run func()) {
			defer wg.Done()
			run()
		}(run)
	}
	if a.redis != nil {
		a.perfFeed = NewPerformanceFeed(a.redis, a.config.Alerts.PerformanceChannel, a.engine, a.logger)
		if err := a.perfFeed.Start(ctx); err != nil {
			a.logger.Warn("⚠️  Performance feed disabled", zap.Error(err))
			a.perfFeed = nil
		}
	}

	// 5. API Server
	go func() {
		if err := a.apiServer.Start(a.config.Server.Port); err != nil {
			a.logger.Error("⚠️  API Server failed", zap.Error(err))
		}
	}()

	// 6. Wait for interrupt and perform graceful shutdown
	err = a.gracefulShutdown(cancel)
	wg.Wait()
	return err
}

// wire builds every component on top of an open database and an optional Redis
func (a *App) wire(db *database.Database, redisClient *cache.RedisClient, defaults *config.Defaults) error {
	a.db = db
	a.redis = redisClient

	a.repo = database.NewAlertRepository(db)
	if err := a.repo.InitSchema(); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}

	// In-app channel
	a.broker = realtime.NewBroker(a.logger.Named("realtime"))

	// Channel senders
	a.dispatcher = notifications.NewDispatcher(a.logger.Named("dispatch"))
	a.dispatcher.Register(models.ChannelInApp, notifications.NewInAppSender(a.broker))
	a.webhookManager = notifications.NewWebhookManager(a.repo, a.redis, a.logger.Named("push"))
	a.dispatcher.Register(models.ChannelPush, a.webhookManager)
	if len(a.config.Kafka.Brokers) > 0 {
		a.outbox = notifications.NewKafkaOutbox(notifications.NewKafkaWriter(a.config.Kafka.Brokers), map[models.Channel]string{
			models.ChannelEmail: a.config.Kafka.EmailTopic,
			models.ChannelSMS:   a.config.Kafka.SMSTopic,
		})
		a.dispatcher.Register(models.ChannelEmail, a.outbox.For(models.ChannelEmail))
		a.dispatcher.Register(models.ChannelSMS, a.outbox.For(models.ChannelSMS))
		a.logger.Info("✅ Email and SMS outbox enabled", zap.Strings("brokers", a.config.Kafka.Brokers))
	} else {
		a.logger.Info("ℹ️  No Kafka brokers configured, email and SMS disabled")
	}

	// Alert engine
	var (
		counter engine.DailyCounter
		digest  engine.DigestQueue
	)
	if a.redis != nil {
		counter = cache.NewDailyCounter(a.redis)
		digest = cache.NewDigestQueue(a.redis)
	}
	a.engine = engine.New(engine.Options{
		Persistence:      a.repo,
		Strategies:       a.repo,
		Notifier:         a.dispatcher,
		Counter:          counter,
		Digest:           digest,
		DefaultConfig:    &defaults.Configuration,
		DefaultPrefs:     &defaults.Preferences,
		Logger:           a.logger.Named("engine"),
		DispatchTimeout:  a.config.Alerts.DispatchTimeout,
		PersistQueueSize: a.config.Alerts.PersistQueueSize,
	})

	// Workers
	a.autoResolver = NewAutoResolver(a.engine, a.repo, a.config.Alerts.AutoResolveInterval, a.config.Alerts.ClosedAlertRetention, a.logger)
	a.dailyDigest = NewDigestFlusher(a.engine.DigestQueue(), a.dispatcher, models.BucketDaily, a.config.Alerts.DailyDigestInterval, a.logger)
	a.weeklyDigest = NewDigestFlusher(a.engine.DigestQueue(), a.dispatcher, models.BucketWeekly, a.config.Alerts.WeeklyDigestInterval, a.logger)

	a.apiServer = api.NewServer(a.engine, a.repo, a.webhookManager, a.broker, a.logger.Named("api"))
	return nil
}

// gracefulShutdown handles graceful shutdown with timeout
func (a *App) gracefulShutdown(cancel context.CancelFunc) error {
	// Setup signal handling
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	// Wait for interrupt signal
	<-interrupt
	a.logger.Info("🛑 Shutdown signal received, initiating graceful shutdown...")

	// Cancel context to stop all goroutines
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer shutdownCancel()

	shutdownComplete := make(chan struct{})
	go func() {
		a.stop(shutdownCtx)
		close(shutdownComplete)
	}()

	// Wait for shutdown to complete or timeout
	select {
	case <-shutdownComplete:
		a.logger.Info("✅ Graceful shutdown completed")
		return nil
	case <-shutdownCtx.Done():
		a.logger.Warn("⚠️  Shutdown timeout exceeded, forcing exit")
		return fmt.Errorf("shutdown timeout")
	}
}

// stop shuts components down in dependency order: inputs first, then the
// engine (draining queued writes and deliveries), then outputs and stores
func (a *App) stop(ctx context.Context) {
	if a.apiServer != nil {
		if err := a.apiServer.Shutdown(ctx); err != nil {
			a.logger.Warn("Error stopping API server", zap.Error(err))
		}
	}
	if a.perfFeed != nil {
		a.perfFeed.Stop()
	}
	for _, w := range []interface{ Stop() }{a.autoResolver, a.dailyDigest, a.weeklyDigest} {
		w.Stop()
	}

	if a.engine != nil {
		a.logger.Info("📊 Draining alert engine...")
		a.engine.Close()
	}
	if a.broker != nil {
		a.broker.Stop()
	}
	if a.outbox != nil {
		if err := a.outbox.Close(); err != nil {
			a.logger.Warn("Error closing Kafka outbox", zap.Error(err))
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("Error closing database", zap.Error(err))
		} else {
			a.logger.Info("✅ Database connection closed")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Error closing redis", zap.Error(err))
		} else {
			a.logger.Info("✅ Redis connection closed")
		}
	}
}
