package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdine/preorder-api/internal/models"
	"github.com/campusdine/preorder-api/internal/repository"
	apperrors "github.com/campusdine/preorder-api/pkg/errors"
	"github.com/campusdine/preorder-api/pkg/logger"
)

type stubCatalog struct {
	meals map[string]*models.Meal
	err   error
}

func (c *stubCatalog) GetMeal(ctx context.Context, mealID string) (*models.Meal, error) {
	if c.err != nil {
		return nil, c.err
	}

	meal, ok := c.meals[mealID]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("meal %s not found in catalog", mealID))
	}

	return meal, nil
}

type recordedEvent struct {
	orderID string
	kind    models.EventKind
}

type recordingHook struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (h *recordingHook) Notify(order *models.Order, kind models.EventKind) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, recordedEvent{orderID: order.ID, kind: kind})
}

func (h *recordingHook) kinds() []models.EventKind {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]models.EventKind, 0, len(h.events))
	for _, e := range h.events {
		out = append(out, e.kind)
	}

	return out
}

func testMeal() *models.Meal {
	return &models.Meal{ID: "meal-1", Name: "Chicken Rice", PriceCents: 650, Available: true}
}

func newTestEngine(t *testing.T) (*OrderService, *repository.MemoryOrderStore, *recordingHook) {
	t.Helper()

	store := repository.NewMemoryOrderStore()
	hook := &recordingHook{}
	catalog := &stubCatalog{meals: map[string]*models.Meal{"meal-1": testMeal()}}
	svc := NewOrderService(store, catalog, hook, logger.NewLogger("error"))

	return svc, store, hook
}

// seedOrder inserts an order directly in the given state
func seedOrder(t *testing.T, store *repository.MemoryOrderStore, status models.Status) *models.Order {
	t.Helper()

	order := models.NewOrder("cust-1", testMeal(), 2)
	order.Status = status

	if status == models.StatusReady || status == models.StatusPickedUp {
		pickup := time.Now().UTC().Add(30 * time.Minute)
		order.PickupTime = &pickup
	}

	require.NoError(t, store.Create(context.Background(), order))
	return order
}

func TestPlaceOrderValidation(t *testing.T) {
	svc, _, _ := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		customerID string
		mealID     string
		quantity   int
	}{
		{"missing customer", "", "meal-1", 1},
		{"whitespace customer", "   ", "meal-1", 1},
		{"missing meal", "cust-1", "", 1},
		{"zero quantity", "cust-1", "meal-1", 0},
		{"negative quantity", "cust-1", "meal-1", -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.PlaceOrder(ctx, tt.customerID, tt.mealID, tt.quantity)
			require.Error(t, err)
			assert.Equal(t, "validation_error", apperrors.CodeOf(err))
		})
	}
}

func TestPlaceOrderUnknownMeal(t *testing.T) {
	svc, _, _ := newTestEngine(t)

	_, err := svc.PlaceOrder(context.Background(), "cust-1", "no-such-meal", 1)
	require.Error(t, err)
	assert.Equal(t, "not_found", apperrors.CodeOf(err))
}

func TestPlaceOrderUnavailableMeal(t *testing.T) {
	store := repository.NewMemoryOrderStore()
	catalog := &stubCatalog{meals: map[string]*models.Meal{
		"meal-2": {ID: "meal-2", Name: "Sold Out Special", PriceCents: 500, Available: false},
	}}
	svc := NewOrderService(store, catalog, &recordingHook{}, logger.NewLogger("error"))

	_, err := svc.PlaceOrder(context.Background(), "cust-1", "meal-2", 1)
	require.Error(t, err)
	assert.Equal(t, "validation_error", apperrors.CodeOf(err))
}

func TestPlaceOrderSnapshotsPrice(t *testing.T) {
	svc, store, hook := newTestEngine(t)
	ctx := context.Background()

	order, err := svc.PlaceOrder(ctx, "cust-1", "meal-1", 2)
	require.NoError(t, err)

	assert.Equal(t, models.StatusPendingApproval, order.Status)
	assert.Equal(t, int64(650), order.UnitPriceCents)
	assert.Equal(t, int64(1300), order.TotalCents())
	assert.NotEmpty(t, order.VerificationCode)
	assert.Equal(t, int64(1), order.Version)

	// Creation fires no notification; the order awaits approval
	assert.Empty(t, hook.kinds())

	stored, err := store.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(650), stored.UnitPriceCents)
}

func TestApprove(t *testing.T) {
	svc, store, hook := newTestEngine(t)
	ctx := context.Background()

	order := seedOrder(t, store, models.StatusPendingApproval)

	updated, err := svc.Approve(ctx, order.ID)
	require.NoError(t, err)

	assert.Equal(t, models.StatusPlaced, updated.Status)
	assert.Equal(t, order.Version+1, updated.Version)
	assert.Equal(t, []models.EventKind{models.EventApproved}, hook.kinds())
}

func TestApproveUnknownOrder(t *testing.T) {
	svc, _, _ := newTestEngine(t)

	_, err := svc.Approve(context.Background(), "ord-missing")
	require.Error(t, err)
	assert.Equal(t, "not_found", apperrors.CodeOf(err))
}

func TestRejectRequiresReason(t *testing.T) {
	svc, store, hook := newTestEngine(t)
	ctx := context.Background()

	order := seedOrder(t, store, models.StatusPendingApproval)

	for _, reason := range []string{"", "   ", "\t\n"} {
		_, err := svc.Reject(ctx, order.ID, reason)
		require.Error(t, err)
		assert.Equal(t, "validation_error", apperrors.CodeOf(err))
	}

	// Failed validation never mutated the order or fired an event
	current, err := store.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingApproval, current.Status)
	assert.Empty(t, hook.kinds())
}

func TestReject(t *testing.T) {
	svc, store, hook := newTestEngine(t)
	ctx := context.Background()

	order := seedOrder(t, store, models.StatusPendingApproval)

	updated, err := svc.Reject(ctx, order.ID, "kitchen closed early")
	require.NoError(t, err)

	assert.Equal(t, models.StatusCancelled, updated.Status)
	require.NotNil(t, updated.RejectionReason)
	assert.Equal(t, "kitchen closed early", *updated.RejectionReason)
	assert.Equal(t, []models.EventKind{models.EventCancelled}, hook.kinds())
}

func TestSetReady(t *testing.T) {
	svc, store, hook := newTestEngine(t)
	ctx := context.Background()

	order := seedOrder(t, store, models.StatusPlaced)
	pickup := time.Now().Add(45 * time.Minute)

	updated, err := svc.SetReady(ctx, order.ID, pickup)
	require.NoError(t, err)

	assert.Equal(t, models.StatusReady, updated.Status)
	require.NotNil(t, updated.PickupTime)
	assert.WithinDuration(t, pickup.UTC(), *updated.PickupTime, time.Second)
	assert.Equal(t, []models.EventKind{models.EventReady}, hook.kinds())
}

func TestSetReadyRejectsPastDeadline(t *testing.T) {
	svc, store, _ := newTestEngine(t)

	order := seedOrder(t, store, models.StatusPlaced)

	_, err := svc.SetReady(context.Background(), order.ID, time.Now().Add(-time.Minute))
	require.Error(t, err)
	assert.Equal(t, "validation_error", apperrors.CodeOf(err))
}

func TestCancel(t *testing.T) {
	tests := []struct {
		name string
		from models.Status
	}{
		{"cancel placed", models.StatusPlaced},
		{"cancel ready", models.StatusReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, hook := newTestEngine(t)
			order := seedOrder(t, store, tt.from)

			updated, err := svc.Cancel(context.Background(), order.ID, "ran out of ingredients")
			require.NoError(t, err)

			assert.Equal(t, models.StatusCancelled, updated.Status)
			require.NotNil(t, updated.RejectionReason)
			assert.Equal(t, "ran out of ingredients", *updated.RejectionReason)
			assert.Equal(t, []models.EventKind{models.EventCancelled}, hook.kinds())
		})
	}
}

func TestInvalidTransitions(t *testing.T) {
	type attempt struct {
		name string
		from models.Status
		call func(svc *OrderService, orderID string) error
	}

	approve := func(svc *OrderService, id string) error {
		_, err := svc.Approve(context.Background(), id)
		return err
	}
	reject := func(svc *OrderService, id string) error {
		_, err := svc.Reject(context.Background(), id, "some reason")
		return err
	}
	ready := func(svc *OrderService, id string) error {
		_, err := svc.SetReady(context.Background(), id, time.Now().Add(time.Hour))
		return err
	}
	cancel := func(svc *OrderService, id string) error {
		_, err := svc.Cancel(context.Background(), id, "some reason")
		return err
	}

	attempts := []attempt{
		{"approve placed", models.StatusPlaced, approve},
		{"approve ready", models.StatusReady, approve},
		{"approve picked up", models.StatusPickedUp, approve},
		{"approve cancelled", models.StatusCancelled, approve},
		{"reject placed", models.StatusPlaced, reject},
		{"reject ready", models.StatusReady, reject},
		{"reject picked up", models.StatusPickedUp, reject},
		{"reject cancelled", models.StatusCancelled, reject},
		{"ready pending", models.StatusPendingApproval, ready},
		{"ready ready", models.StatusReady, ready},
		{"ready picked up", models.StatusPickedUp, ready},
		{"ready cancelled", models.StatusCancelled, ready},
		{"cancel pending", models.StatusPendingApproval, cancel},
		{"cancel picked up", models.StatusPickedUp, cancel},
		{"cancel cancelled", models.StatusCancelled, cancel},
	}

	for _, tt := range attempts {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, hook := newTestEngine(t)
			order := seedOrder(t, store, tt.from)

			err := tt.call(svc, order.ID)
			require.Error(t, err)
			assert.Equal(t, "invalid_transition", apperrors.CodeOf(err))
			assert.Equal(t, 409, apperrors.StatusOf(err))

			// The order is untouched and no event fired
			current, getErr := store.GetByID(context.Background(), order.ID)
			require.NoError(t, getErr)
			assert.Equal(t, tt.from, current.Status)
			assert.Equal(t, order.Version, current.Version)
			assert.Empty(t, hook.kinds())
		})
	}
}

type panickingHook struct{}

func (panickingHook) Notify(order *models.Order, kind models.EventKind) {
	panic("notification backend exploded")
}

func TestHookPanicDoesNotFailTransition(t *testing.T) {
	store := repository.NewMemoryOrderStore()
	catalog := &stubCatalog{meals: map[string]*models.Meal{"meal-1": testMeal()}}
	svc := NewOrderService(store, catalog, panickingHook{}, logger.NewLogger("error"))

	order := seedOrder(t, store, models.StatusPendingApproval)

	updated, err := svc.Approve(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPlaced, updated.Status)
}

// conflictingStore injects version conflicts before delegating to the real
// store, to exercise the bounded retry loop.
type conflictingStore struct {
	*repository.MemoryOrderStore
	mu        sync.Mutex
	conflicts int
}

func (s *conflictingStore) UpdateVersioned(ctx context.Context, order *models.Order, expectedVersion int64) error {
	s.mu.Lock()
	remaining := s.conflicts
	if remaining > 0 {
		s.conflicts--
	}
	s.mu.Unlock()

	if remaining > 0 {
		return repository.ErrVersionConflict
	}

	return s.MemoryOrderStore.UpdateVersioned(ctx, order, expectedVersion)
}

func TestTransitionRetriesAfterConflict(t *testing.T) {
	store := &conflictingStore{MemoryOrderStore: repository.NewMemoryOrderStore(), conflicts: 2}
	catalog := &stubCatalog{meals: map[string]*models.Meal{"meal-1": testMeal()}}
	hook := &recordingHook{}
	svc := NewOrderService(store, catalog, hook, logger.NewLogger("error"))

	order := seedOrder(t, store.MemoryOrderStore, models.StatusPendingApproval)

	updated, err := svc.Approve(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPlaced, updated.Status)
	assert.Equal(t, []models.EventKind{models.EventApproved}, hook.kinds())
}

func TestTransitionGivesUpAfterRepeatedConflicts(t *testing.T) {
	store := &conflictingStore{MemoryOrderStore: repository.NewMemoryOrderStore(), conflicts: 100}
	catalog := &stubCatalog{meals: map[string]*models.Meal{"meal-1": testMeal()}}
	hook := &recordingHook{}
	svc := NewOrderService(store, catalog, hook, logger.NewLogger("error"))

	order := seedOrder(t, store.MemoryOrderStore, models.StatusPendingApproval)

	_, err := svc.Approve(context.Background(), order.ID)
	require.Error(t, err)
	assert.Equal(t, "conflict", apperrors.CodeOf(err))
	assert.Empty(t, hook.kinds())
}
