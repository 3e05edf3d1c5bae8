package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdine/preorder-api/internal/models"
	"github.com/campusdine/preorder-api/internal/repository"
	apperrors "github.com/campusdine/preorder-api/pkg/errors"
	"github.com/campusdine/preorder-api/pkg/logger"
)

func seedCustomerOrder(t *testing.T, store *repository.MemoryOrderStore, customerID string, status models.Status, age time.Duration) *models.Order {
	t.Helper()

	order := models.NewOrder(customerID, testMeal(), 1)
	order.Status = status
	order.OrderTime = time.Now().UTC().Add(-age)

	require.NoError(t, store.Create(context.Background(), order))
	return order
}

func TestActiveOrdersFor(t *testing.T) {
	store := repository.NewMemoryOrderStore()
	q := NewQueryService(store, logger.NewLogger("error"))
	ctx := context.Background()

	newest := seedCustomerOrder(t, store, "cust-1", models.StatusPendingApproval, 1*time.Minute)
	middle := seedCustomerOrder(t, store, "cust-1", models.StatusPlaced, 10*time.Minute)
	oldest := seedCustomerOrder(t, store, "cust-1", models.StatusReady, 30*time.Minute)

	// Noise: terminal orders and another customer's orders
	seedCustomerOrder(t, store, "cust-1", models.StatusPickedUp, 2*time.Hour)
	seedCustomerOrder(t, store, "cust-1", models.StatusCancelled, 3*time.Hour)
	seedCustomerOrder(t, store, "cust-2", models.StatusPlaced, 5*time.Minute)

	orders, err := q.ActiveOrdersFor(ctx, "cust-1")
	require.NoError(t, err)

	require.Len(t, orders, 3)
	assert.Equal(t, newest.ID, orders[0].ID)
	assert.Equal(t, middle.ID, orders[1].ID)
	assert.Equal(t, oldest.ID, orders[2].ID)
}

func TestHistoryFor(t *testing.T) {
	store := repository.NewMemoryOrderStore()
	q := NewQueryService(store, logger.NewLogger("error"))
	ctx := context.Background()

	pickedUp := seedCustomerOrder(t, store, "cust-1", models.StatusPickedUp, 2*time.Hour)
	cancelled := seedCustomerOrder(t, store, "cust-1", models.StatusCancelled, 1*time.Hour)
	seedCustomerOrder(t, store, "cust-1", models.StatusPlaced, 5*time.Minute)

	orders, err := q.HistoryFor(ctx, "cust-1")
	require.NoError(t, err)

	require.Len(t, orders, 2)
	assert.Equal(t, cancelled.ID, orders[0].ID)
	assert.Equal(t, pickedUp.ID, orders[1].ID)
}

func TestQueriesRequireCustomerID(t *testing.T) {
	q := NewQueryService(repository.NewMemoryOrderStore(), logger.NewLogger("error"))
	ctx := context.Background()

	_, err := q.ActiveOrdersFor(ctx, "")
	require.Error(t, err)
	assert.Equal(t, "validation_error", apperrors.CodeOf(err))

	_, err = q.HistoryFor(ctx, "  ")
	require.Error(t, err)
	assert.Equal(t, "validation_error", apperrors.CodeOf(err))
}

func TestCountsByStatusZeroFillsAllStatuses(t *testing.T) {
	store := repository.NewMemoryOrderStore()
	q := NewQueryService(store, logger.NewLogger("error"))
	ctx := context.Background()

	seedCustomerOrder(t, store, "cust-1", models.StatusPlaced, time.Minute)
	seedCustomerOrder(t, store, "cust-2", models.StatusPlaced, time.Minute)
	seedCustomerOrder(t, store, "cust-3", models.StatusReady, time.Minute)

	counts, err := q.CountsByStatus(ctx)
	require.NoError(t, err)

	require.Len(t, counts, len(models.AllStatuses))
	assert.Equal(t, 0, counts[models.StatusPendingApproval])
	assert.Equal(t, 2, counts[models.StatusPlaced])
	assert.Equal(t, 1, counts[models.StatusReady])
	assert.Equal(t, 0, counts[models.StatusPickedUp])
	assert.Equal(t, 0, counts[models.StatusCancelled])
}
