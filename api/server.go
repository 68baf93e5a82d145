package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"trading-journal/database"
	models "trading-journal/database/models_pkg"
	"trading-journal/engine"
	"trading-journal/monitoring"
	"trading-journal/notifications"
	"trading-journal/realtime"
)

// Repository is the read/write surface the API needs beyond the engine
type Repository interface {
	GetAlerts(ctx context.Context, userID, strategyID string, status models.AlertStatus, since time.Time, limit int) ([]database.StrategyAlert, error)
	GetWebhooks(ctx context.Context, userID string) ([]database.AlertWebhook, error)
	SaveWebhook(ctx context.Context, webhook *database.AlertWebhook) error
	DeleteWebhook(ctx context.Context, userID string, id int) error
	GetWebhookLogs(ctx context.Context, alertID string) ([]database.WebhookDeliveryLog, error)
}

// Server handles HTTP API requests
type Server struct {
	engine     *engine.Engine
	repo       Repository
	webhookMq  *notifications.WebhookManager
	broker     *realtime.Broker
	logger     *zap.Logger
	httpServer *http.Server
}

// NewServer creates a new API server instance. repo and webhookMq may be nil,
// in which case history and webhook routes answer 503.
func NewServer(eng *engine.Engine, repo Repository, webhookMq *notifications.WebhookManager, broker *realtime.Broker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:    eng,
		repo:      repo,
		webhookMq: webhookMq,
		broker:    broker,
		logger:    logger,
	}
}

// Handler builds the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, monitoring.Middleware(pattern, h))
	}

	// Alerts
	handle("GET /api/alerts", s.handleGetAlerts)
	handle("GET /api/alerts/history", s.handleGetAlertHistory)
	handle("GET /api/alerts/metrics", s.handleGetAlertMetrics)
	handle("GET /api/alerts/{id}", s.handleGetAlert)
	handle("GET /api/alerts/{id}/deliveries", s.handleGetDeliveries)
	handle("POST /api/alerts/{id}/acknowledge", s.handleAcknowledgeAlert)
	handle("POST /api/alerts/{id}/resolve", s.handleResolveAlert)
	handle("POST /api/alerts/{id}/actions", s.handleRecordAction)
	handle("POST /api/alerts/{id}/notify", s.handleSendNotification)

	// Per-user settings
	handle("GET /api/users/{userId}/thresholds", s.handleGetThresholds)
	handle("PUT /api/users/{userId}/thresholds", s.handleUpdateThresholds)
	handle("GET /api/users/{userId}/preferences", s.handleGetPreferences)
	handle("PUT /api/users/{userId}/preferences", s.handleUpdatePreferences)
	handle("GET /api/users/{userId}/webhooks", s.handleGetWebhooks)
	handle("POST /api/users/{userId}/webhooks", s.handleCreateWebhook)
	handle("PUT /api/users/{userId}/webhooks/{id}", s.handleUpdateWebhook)
	handle("DELETE /api/users/{userId}/webhooks/{id}", s.handleDeleteWebhook)

	// Ingestion
	handle("POST /api/performance", s.handlePerformanceUpdate)
	handle("POST /api/market-conditions", s.handleMarketConditions)
	handle("POST /api/correlations", s.handleCorrelations)

	// Streams are not wrapped: websocket upgrades need the raw writer
	if s.broker != nil {
		mux.Handle("GET /api/events", s.broker)
		mux.HandleFunc("GET /api/ws", s.broker.ServeWS)
	}

	mux.Handle("GET /metrics", monitoring.Handler())
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.corsMiddleware(s.loggingMiddleware(mux))
}

// Start starts the HTTP server on the specified port and blocks until it stops
func (s *Server) Start(port int) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("🚀 API server starting", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+realtime.UserHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)))
	})
}

// Handlers are distributed across multiple files:
// - handlers_alerts.go: alert queries and lifecycle
// - handlers_config.go: thresholds, preferences, webhooks, health check
// - handlers_ingest.go: performance and market data feeding the evaluators
