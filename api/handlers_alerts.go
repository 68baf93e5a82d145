package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"trading-journal/database"
	models "trading-journal/database/models_pkg"
)

// handleGetAlerts lists the caller's open alerts, or all of them with status=all
func (s *Server) handleGetAlerts(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var (
		alerts []*models.StrategyAlert
		err    error
	)
	if strings.EqualFold(r.URL.Query().Get("status"), "all") {
		alerts, err = s.engine.GetAllAlerts(r.Context(), user)
	} else {
		alerts, err = s.engine.GetActiveAlerts(r.Context(), user, r.URL.Query().Get("strategy_id"))
	}
	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}
	if alerts == nil {
		alerts = []*models.StrategyAlert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// handleGetAlertHistory queries persisted alerts, including ones closed long ago
func (s *Server) handleGetAlertHistory(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "alert history unavailable", nil)
		return
	}
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	minLimit, maxLimit := 1, database.MaxLimit
	q := r.URL.Query()
	alerts, err := s.repo.GetAlerts(r.Context(), user,
		q.Get("strategy_id"),
		models.AlertStatus(strings.ToUpper(q.Get("status"))),
		getTimeParam(r, "since"),
		getIntParam(r, "limit", database.DefaultLimit, &minLimit, &maxLimit))
	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}
	if alerts == nil {
		alerts = []database.StrategyAlert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleGetAlertMetrics(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	window := models.MetricsWindow(r.URL.Query().Get("window"))
	switch window {
	case models.WindowDay, models.WindowWeek, models.WindowMonth:
	case "":
		window = models.WindowWeek
	default:
		s.respondWithError(w, http.StatusBadRequest, "window must be day, week or month", nil)
		return
	}

	metrics, err := s.engine.GetAlertMetrics(r.Context(), user, window)
	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	alert, err := s.engine.GetAlert(r.Context(), r.PathValue("id"), user)
	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// handleGetDeliveries returns the push webhook delivery log of one of the caller's alerts
func (s *Server) handleGetDeliveries(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "delivery log unavailable", nil)
		return
	}
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	alert, err := s.engine.GetAlert(r.Context(), r.PathValue("id"), user)
	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	logs, err := s.repo.GetWebhookLogs(r.Context(), alert.ID)
	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}
	if logs == nil {
		logs = []database.WebhookDeliveryLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	alert, err := s.engine.AcknowledgeAlert(r.Context(), r.PathValue("id"), user)
	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

type resolveRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	// The reason is optional, so an empty body is accepted
	var req resolveRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	alert, err := s.engine.ResolveAlert(r.Context(), r.PathValue("id"), user, req.Reason)
	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

type actionRequest struct {
	Action string `json:"action"`
}

func (s *Server) handleRecordAction(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req actionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	alert, err := s.engine.RecordAlertAction(r.Context(), r.PathValue("id"), user, req.Action)
	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// handleSendNotification re-runs routing and delivery for an alert
func (s *Server) handleSendNotification(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	decisions, err := s.engine.SendNotification(r.Context(), r.PathValue("id"), user)
	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}
	if decisions == nil {
		decisions = []models.NotificationDecision{}
	}
	writeJSON(w, http.StatusAccepted, decisions)
}
