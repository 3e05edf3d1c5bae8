package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdine/preorder-api/internal/clients"
	"github.com/campusdine/preorder-api/internal/models"
	"github.com/campusdine/preorder-api/internal/repository"
	"github.com/campusdine/preorder-api/internal/service"
	"github.com/campusdine/preorder-api/pkg/circuitbreaker"
	apperrors "github.com/campusdine/preorder-api/pkg/errors"
	"github.com/campusdine/preorder-api/pkg/logger"
	"github.com/campusdine/preorder-api/pkg/middleware"
)

type fixedCatalog struct {
	meals map[string]*models.Meal
}

func (c *fixedCatalog) GetMeal(ctx context.Context, mealID string) (*models.Meal, error) {
	meal, ok := c.meals[mealID]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("meal %s not found in catalog", mealID))
	}
	return meal, nil
}

type noopHook struct{}

func (noopHook) Notify(order *models.Order, kind models.EventKind) {}

// newTestServer wires the HTTP surface against an in-memory store. No
// database, Kafka, or background processors are involved.
func newTestServer(t *testing.T) (*Server, *repository.MemoryOrderStore) {
	t.Helper()

	l := logger.NewLogger("error")
	store := repository.NewMemoryOrderStore()
	catalog := &fixedCatalog{meals: map[string]*models.Meal{
		"meal-1": {ID: "meal-1", Name: "Chicken Rice", PriceCents: 650, Available: true},
	}}
	hook := noopHook{}

	s := &Server{
		logger:        l,
		router:        mux.NewRouter(),
		orderService:  service.NewOrderService(store, catalog, hook, l),
		catalogClient: clients.NewCatalogClient("http://catalog.local", l),
		redemption:    service.NewRedemptionCoordinator(store, hook, l),
		queryService:  service.NewQueryService(store, l),
		rateLimiter: middleware.NewRateLimiterMiddleware(&middleware.RateLimiterConfig{
			GlobalMaxTokens: 10000,
			GlobalMaxRate:   10000,
			GlobalMinRate:   1000,
			GlobalThreshold: 0.99,
			IPMaxTokens:     10000,
			IPRefillRate:    10000,
		}, l),
		endpointRateLimiter: middleware.NewEndpointRateLimiterMiddleware(10000, 10000, l),
		gracefulDegradation: middleware.NewGracefulDegradation(l),
	}
	t.Cleanup(s.rateLimiter.Stop)

	s.setupRoutes()
	return s, store
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func decodeOrder(t *testing.T, rec *httptest.ResponseRecorder) orderResponse {
	t.Helper()

	env := decodeEnvelope(t, rec)
	require.True(t, env.Success, "expected success envelope, got: %s", rec.Body.String())

	var order orderResponse
	require.NoError(t, json.Unmarshal(env.Data, &order))
	return order
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)

	// Place
	rec := doJSON(t, s, http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"customer_id": "cust-1",
		"meal_id":     "meal-1",
		"quantity":    2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decodeOrder(t, rec)
	assert.Equal(t, models.StatusPendingApproval, created.Status)
	assert.Equal(t, int64(1300), created.TotalCents)
	require.NotEmpty(t, created.VerificationCode)

	// Approve
	rec = doJSON(t, s, http.MethodPost, "/api/v1/orders/"+created.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decodeOrder(t, rec)
	assert.Equal(t, models.StatusPlaced, approved.Status)
	assert.Empty(t, approved.VerificationCode, "code must only appear on creation")

	// Ready
	rec = doJSON(t, s, http.MethodPost, "/api/v1/orders/"+created.ID+"/ready", map[string]interface{}{
		"pickup_time": time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ready := decodeOrder(t, rec)
	assert.Equal(t, models.StatusReady, ready.Status)
	require.NotNil(t, ready.PickupTime)

	// Redeem
	rec = doJSON(t, s, http.MethodPost, "/api/v1/orders/redeem", map[string]interface{}{
		"code": created.VerificationCode,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	redeemed := decodeOrder(t, rec)
	assert.Equal(t, models.StatusPickedUp, redeemed.Status)
	require.NotNil(t, redeemed.RedeemedAt)

	// Second redeem is refused
	rec = doJSON(t, s, http.MethodPost, "/api/v1/orders/redeem", map[string]interface{}{
		"code": created.VerificationCode,
	})
	require.Equal(t, http.StatusGone, rec.Code, rec.Body.String())
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "already_redeemed", env.Code)
}

func TestRedeemWithScannedPayload(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"customer_id": "cust-1",
		"meal_id":     "meal-1",
		"quantity":    1,
	})
	created := decodeOrder(t, rec)

	doJSON(t, s, http.MethodPost, "/api/v1/orders/"+created.ID+"/approve", nil)
	doJSON(t, s, http.MethodPost, "/api/v1/orders/"+created.ID+"/ready", map[string]interface{}{
		"pickup_time": time.Now().Add(time.Hour).Format(time.RFC3339),
	})

	rec = doJSON(t, s, http.MethodPost, "/api/v1/orders/redeem", map[string]interface{}{
		"order_id":          created.ID,
		"verification_code": created.VerificationCode,
		"timestamp":         time.Now().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	redeemed := decodeOrder(t, rec)
	assert.Equal(t, models.StatusPickedUp, redeemed.Status)
}

func TestRejectRequiresReasonOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"customer_id": "cust-1",
		"meal_id":     "meal-1",
		"quantity":    1,
	})
	created := decodeOrder(t, rec)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/orders/"+created.ID+"/reject", map[string]interface{}{
		"reason": "  ",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "validation_error", env.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/orders/"+created.ID+"/reject", map[string]interface{}{
		"reason": "out of stock",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	rejected := decodeOrder(t, rec)
	assert.Equal(t, models.StatusCancelled, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "out of stock", *rejected.RejectionReason)
}

func TestInvalidTransitionOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"customer_id": "cust-1",
		"meal_id":     "meal-1",
		"quantity":    1,
	})
	created := decodeOrder(t, rec)

	// Redeem before the order is ready
	rec = doJSON(t, s, http.MethodPost, "/api/v1/orders/redeem", map[string]interface{}{
		"code": created.VerificationCode,
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "invalid_transition", env.Code)
}

func TestGetUnknownOrder(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/orders/ord-missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "not_found", env.Code)
}

func TestCustomerOrderViews(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"customer_id": "cust-1",
		"meal_id":     "meal-1",
		"quantity":    1,
	})
	created := decodeOrder(t, rec)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/customers/cust-1/orders/active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)

	var active []orderResponse
	require.NoError(t, json.Unmarshal(env.Data, &active))
	require.Len(t, active, 1)
	assert.Equal(t, created.ID, active[0].ID)
	assert.Empty(t, active[0].VerificationCode)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/customers/cust-1/orders/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env = decodeEnvelope(t, rec)

	var history []orderResponse
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Empty(t, history)
}

func TestStatusCounts(t *testing.T) {
	s, _ := newTestServer(t)

	doJSON(t, s, http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"customer_id": "cust-1",
		"meal_id":     "meal-1",
		"quantity":    1,
	})

	rec := doJSON(t, s, http.MethodGet, "/api/v1/orders/stats/status-counts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)

	var counts map[models.Status]int
	require.NoError(t, json.Unmarshal(env.Data, &counts))

	assert.Len(t, counts, len(models.AllStatuses))
	assert.Equal(t, 1, counts[models.StatusPendingApproval])
	assert.Equal(t, 0, counts[models.StatusPickedUp])
}

func TestResetCircuitBreakerCoversCatalogBreaker(t *testing.T) {
	s, _ := newTestServer(t)

	b := s.catalogClient.Breaker()
	for i := 0; i < 10; i++ {
		b.Failure()
	}
	require.Equal(t, circuitbreaker.StateOpen, b.GetState())

	rec := doJSON(t, s, http.MethodPost, "/api/v1/admin/circuit-breaker/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, circuitbreaker.StateClosed, b.GetState())
	assert.True(t, b.Allow())
}
