package api

import (
	"net/http"
)

// getCircuitBreakerStatusHandler returns the state of every circuit breaker
func (s *Server) getCircuitBreakerStatusHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"service": s.gracefulDegradation.GetMetrics(),
		"catalog": s.catalogClient.Breaker().GetMetrics(),
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response})
}

// resetCircuitBreakerHandler resets every circuit breaker to closed
func (s *Server) resetCircuitBreakerHandler(w http.ResponseWriter, r *http.Request) {
	s.gracefulDegradation.Reset()
	s.catalogClient.Breaker().Reset()

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: map[string]string{
			"message": "Circuit breaker reset successfully",
		},
	})
}
