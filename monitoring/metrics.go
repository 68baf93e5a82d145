// Package monitoring exposes the Prometheus collectors of the alert engine
package monitoring

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Notification outcomes
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeQueued    = "queued"
)

var (
	AlertsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategy_alerts_created_total",
			Help: "Alerts accepted into the alert store",
		},
		[]string{"type", "severity"},
	)
	AlertsDeduplicated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategy_alerts_deduplicated_total",
			Help: "Candidate alerts dropped because an open alert already covers the condition",
		},
		[]string{"type"},
	)
	AlertsEscalated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategy_alerts_escalated_total",
			Help: "Open alerts superseded by a higher severity alert",
		},
		[]string{"type"},
	)
	AlertsRateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "strategy_alerts_rate_limited_total",
			Help: "Candidate alerts dropped by the daily alert cap",
		},
	)
	AlertsAutoResolved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "strategy_alerts_auto_resolved_total",
			Help: "Alerts resolved by the auto-resolve scheduler",
		},
	)
	NotificationsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategy_alert_notifications_total",
			Help: "Notification attempts per channel and outcome",
		},
		[]string{"channel", "outcome"},
	)
	EvaluatorFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategy_alert_evaluator_failures_total",
			Help: "Evaluator runs that panicked or failed",
		},
		[]string{"evaluator"},
	)
	PersistenceFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "strategy_alert_persistence_failures_total",
			Help: "Asynchronous writes to persistence that failed",
		},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_api_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"handler", "method", "code"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alert_api_request_duration_seconds",
			Help:    "Histogram of response latency (seconds) for HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "method"},
	)
)

func init() {
	prometheus.MustRegister(
		AlertsCreated,
		AlertsDeduplicated,
		AlertsEscalated,
		AlertsRateLimited,
		AlertsAutoResolved,
		NotificationsDispatched,
		EvaluatorFailures,
		PersistenceFailures,
		httpRequestsTotal,
		httpRequestDuration,
	)
}

// Handler serves the default registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency under handlerName
func Middleware(handlerName string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		httpRequestsTotal.WithLabelValues(handlerName, r.Method, fmt.Sprintf("%d", ww.status)).Inc()
		httpRequestDuration.WithLabelValues(handlerName, r.Method).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming handlers working behind the middleware
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
