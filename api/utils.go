package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"trading-journal/database"
	"trading-journal/realtime"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

// getIntParam retrieves an integer query parameter with default value and optional range validation
func getIntParam(r *http.Request, key string, defaultVal int, minVal, maxVal *int) int {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultVal
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultVal
	}

	if minVal != nil && val < *minVal {
		return defaultVal
	}
	if maxVal != nil && val > *maxVal {
		return defaultVal
	}

	return val
}

// getTimeParam parses an RFC 3339 query parameter, returning the zero time when absent or invalid
func getTimeParam(r *http.Request, key string) time.Time {
	t, err := time.Parse(time.RFC3339, r.URL.Query().Get(key))
	if err != nil {
		return time.Time{}
	}
	return t
}

// userID reads the caller from the user_id query parameter or the X-User-ID header
func userID(r *http.Request) string {
	if u := strings.TrimSpace(r.URL.Query().Get("user_id")); u != "" {
		return u
	}
	return strings.TrimSpace(r.Header.Get(realtime.UserHeader))
}

// requireUser writes a 400 and returns false when no user is given
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	u := userID(r)
	if u == "" {
		s.respondWithError(w, http.StatusBadRequest, "user_id is required", nil)
		return "", false
	}
	return u, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(dest)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// respondWithError logs the error and sends a JSON error response
// Use this to avoid exposing internal errors while still logging them
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, err error) {
	if code >= http.StatusInternalServerError {
		s.logger.Error("api error", zap.Int("status", code), zap.String("message", message), zap.Error(err))
	} else {
		s.logger.Debug("api error", zap.Int("status", code), zap.String("message", message), zap.Error(err))
	}
	writeJSON(w, code, map[string]string{"error": message})
}

// respondWithDomainError maps the typed errors of the database package to statuses
func (s *Server) respondWithDomainError(w http.ResponseWriter, err error) {
	var ve *database.ValidationError
	var nf *database.NotFoundError
	switch {
	case errors.As(err, &ve):
		s.respondWithError(w, http.StatusBadRequest, ve.Error(), err)
	case errors.As(err, &nf):
		s.respondWithError(w, http.StatusNotFound, nf.Error(), err)
	default:
		s.respondWithError(w, http.StatusInternalServerError, "internal error", err)
	}
}
