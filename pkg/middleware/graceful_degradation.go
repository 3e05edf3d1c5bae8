package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/campusdine/preorder-api/pkg/circuitbreaker"
	"github.com/campusdine/preorder-api/pkg/logger"
)

// GracefulDegradation sheds non-essential traffic when the service itself is
// failing. Health, admin, and redemption endpoints stay reachable: a student
// standing at the counter must still be able to pick up their meal.
type GracefulDegradation struct {
	breaker *circuitbreaker.CircuitBreaker
	logger  logger.Logger
}

// NewGracefulDegradation creates a new graceful degradation middleware
func NewGracefulDegradation(logger logger.Logger) *GracefulDegradation {
	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.CircuitBreakerConfig{
		FailureThreshold: 10,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 5,
	})

	return &GracefulDegradation{
		breaker: breaker,
		logger:  logger,
	}
}

// Middleware returns the middleware function
func (gd *GracefulDegradation) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		isEssential := isEssentialEndpoint(r.URL.Path)

		if !isEssential && !gd.breaker.Allow() {
			gd.logger.Warn("Circuit is open, request rejected",
				"path", r.URL.Path,
				"method", r.Method,
				"state", gd.breaker.GetState())

			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Service is temporarily unavailable. Please try again later."))
			return
		}

		wrappedWriter := newStatusCodeWriter(w)
		next.ServeHTTP(wrappedWriter, r)

		if !isEssential {
			statusCode := wrappedWriter.statusCode
			if statusCode >= 500 {
				gd.breaker.Failure()
			} else if statusCode < 400 {
				gd.breaker.Success()
			}
		}
	})
}

func isEssentialEndpoint(path string) bool {
	return strings.HasPrefix(path, "/api/v1/health") ||
		strings.HasPrefix(path, "/api/v1/admin") ||
		strings.HasPrefix(path, "/api/v1/orders/redeem")
}

// statusCodeWriter captures the response status code
type statusCodeWriter struct {
	http.ResponseWriter
	statusCode int
}

func newStatusCodeWriter(w http.ResponseWriter) *statusCodeWriter {
	return &statusCodeWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader captures the status code before delegating
func (scw *statusCodeWriter) WriteHeader(code int) {
	scw.statusCode = code
	scw.ResponseWriter.WriteHeader(code)
}

// GetMetrics returns metrics about the circuit breaker
func (gd *GracefulDegradation) GetMetrics() map[string]interface{} {
	return gd.breaker.GetMetrics()
}

// Reset resets the circuit breaker
func (gd *GracefulDegradation) Reset() {
	gd.breaker.Reset()
}
