package api

import (
	"encoding/json"
	"net/http"
	"time"

	apperrors "github.com/campusdine/preorder-api/pkg/errors"
)

// ApiResponse is the envelope for every JSON response
type ApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// Health represents the health check response
type Health struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// healthCheckHandler handles the health check endpoint
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"

	if err := s.db.Ping(r.Context()); err != nil {
		s.logger.Error("Health check database ping failed", "error", err)
		status = "degraded"
	}

	health := Health{
		Status:    status,
		Version:   "0.1.0",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    health,
	})
}

// respondWithAppError maps a service error to its HTTP status and machine
// readable code
func (s *Server) respondWithAppError(w http.ResponseWriter, err error) {
	s.respondWithJSON(w, apperrors.StatusOf(err), ApiResponse{
		Success: false,
		Error:   err.Error(),
		Code:    apperrors.CodeOf(err),
	})
}

// respondWithError sends a JSON response with an error message
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, ApiResponse{
		Success: false,
		Error:   message,
	})
}

// respondWithJSON sends a JSON response
func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)

	if err != nil {
		s.logger.Error("Failed to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
