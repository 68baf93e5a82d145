package api

import (
	"net/http"
	"time"

	models "trading-journal/database/models_pkg"
)

// alertsResponse wraps the alerts created by an ingestion call
type alertsResponse struct {
	Created []*models.StrategyAlert `json:"created"`
}

func created(alerts []*models.StrategyAlert) alertsResponse {
	if alerts == nil {
		alerts = []*models.StrategyAlert{}
	}
	return alertsResponse{Created: alerts}
}

// handlePerformanceUpdate runs the per-strategy evaluators on a recalculated snapshot
func (s *Server) handlePerformanceUpdate(w http.ResponseWriter, r *http.Request) {
	var update models.PerformanceUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if update.UserID == "" {
		update.UserID = userID(r)
	}
	if update.Current.CalculatedAt.IsZero() {
		update.Current.CalculatedAt = time.Now().UTC()
	}

	alerts, err := s.engine.ProcessPerformanceUpdate(r.Context(), update)
	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, created(alerts))
}

type marketConditionRequest struct {
	UserID string                       `json:"user_id"`
	Change models.MarketConditionChange `json:"change"`
}

func (s *Server) handleMarketConditions(w http.ResponseWriter, r *http.Request) {
	var req marketConditionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" {
		req.UserID = userID(r)
	}
	if req.Change.ObservedAt.IsZero() {
		req.Change.ObservedAt = time.Now().UTC()
	}

	alerts, err := s.engine.DetectMarketConditionChanges(r.Context(), req.UserID, req.Change)
	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, created(alerts))
}

type correlationRequest struct {
	UserID     string                       `json:"user_id"`
	Strategies []models.StrategyPerformance `json:"strategies"`
}

// handleCorrelations checks for strategies degrading together. Without an
// explicit strategy list the engine uses the latest performance updates.
func (s *Server) handleCorrelations(w http.ResponseWriter, r *http.Request) {
	var req correlationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" {
		req.UserID = userID(r)
	}

	alerts, err := s.engine.DetectCorrelatedPerformanceIssues(r.Context(), req.UserID, req.Strategies)
	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, created(alerts))
}
