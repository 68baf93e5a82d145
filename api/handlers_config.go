package api

import (
	"net/http"
	"strconv"

	"trading-journal/database"
	models "trading-journal/database/models_pkg"
)

// handleHealth returns the health status of the API
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Threshold and preference handlers

func (s *Server) handleGetThresholds(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.engine.GetAlertConfiguration(r.Context(), r.PathValue("userId"))
	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleUpdateThresholds(w http.ResponseWriter, r *http.Request) {
	var cfg models.AlertConfiguration
	if err := decodeJSON(w, r, &cfg); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	updated, err := s.engine.UpdateAlertThresholds(r.Context(), r.PathValue("userId"), &cfg)
	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.engine.GetNotificationPreferences(r.Context(), r.PathValue("userId"))
	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var prefs models.NotificationPreferences
	if err := decodeJSON(w, r, &prefs); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	updated, err := s.engine.UpdateNotificationPreferences(r.Context(), r.PathValue("userId"), &prefs)
	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Webhook handlers

func (s *Server) handleGetWebhooks(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "webhooks unavailable", nil)
		return
	}
	webhooks, err := s.repo.GetWebhooks(r.Context(), r.PathValue("userId"))
	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}
	if webhooks == nil {
		webhooks = []database.AlertWebhook{}
	}
	writeJSON(w, http.StatusOK, webhooks)
}

func (s *Server) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	s.saveWebhook(w, r, 0, http.StatusCreated)
}

func (s *Server) handleUpdateWebhook(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		s.respondWithError(w, http.StatusBadRequest, "Invalid ID", err)
		return
	}
	s.saveWebhook(w, r, id, http.StatusOK)
}

// saveWebhook creates (id 0) or updates a webhook owned by the path user
func (s *Server) saveWebhook(w http.ResponseWriter, r *http.Request, id, status int) {
	if s.repo == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "webhooks unavailable", nil)
		return
	}
	user := r.PathValue("userId")

	var webhook database.AlertWebhook
	if err := decodeJSON(w, r, &webhook); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if webhook.URL == "" {
		s.respondWithDomainError(w, database.NewValidationError("url", "is required"))
		return
	}
	if webhook.MinSeverity != "" && !webhook.MinSeverity.Valid() {
		s.respondWithDomainError(w, database.NewValidationErrorWithValue("min_severity", "unknown severity", webhook.MinSeverity))
		return
	}

	if id != 0 {
		owned, err := s.ownsWebhook(r, user, id)
		if err != nil {
			s.respondWithDomainError(w, err)
			return
		}
		if !owned {
			s.respondWithDomainError(w, database.NewNotFoundErrorWithID("webhook", id))
			return
		}
	}

	webhook.ID = id // Ensure ID matches path
	webhook.UserID = user
	if err := s.repo.SaveWebhook(r.Context(), &webhook); err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	// Refresh webhook manager cache
	if s.webhookMq != nil {
		s.webhookMq.RefreshCache(r.Context(), user)
	}
	writeJSON(w, status, webhook)
}

func (s *Server) ownsWebhook(r *http.Request, userID string, id int) (bool, error) {
	hooks, err := s.repo.GetWebhooks(r.Context(), userID)
	if err != nil {
		return false, err
	}
	for _, h := range hooks {
		if h.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *Server) handleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "webhooks unavailable", nil)
		return
	}
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid ID", err)
		return
	}

	user := r.PathValue("userId")
	if err := s.repo.DeleteWebhook(r.Context(), user, id); err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	// Refresh webhook manager cache
	if s.webhookMq != nil {
		s.webhookMq.RefreshCache(r.Context(), user)
	}
	w.WriteHeader(http.StatusNoContent)
}
