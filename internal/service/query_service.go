package service

import (
	"context"
	"strings"

	"github.com/campusdine/preorder-api/internal/models"
	apperrors "github.com/campusdine/preorder-api/pkg/errors"
	"github.com/campusdine/preorder-api/pkg/logger"
)

// QueryService serves read-only projections over orders. It never mutates
// state and tolerates any mix of concurrent transitions; callers get a
// consistent snapshot as of the underlying read.
type QueryService struct {
	store  OrderStore
	logger logger.Logger
}

// NewQueryService creates a new QueryService
func NewQueryService(store OrderStore, logger logger.Logger) *QueryService {
	return &QueryService{
		store:  store,
		logger: logger,
	}
}

// ActiveOrdersFor returns a customer's orders that still need attention,
// newest first
func (q *QueryService) ActiveOrdersFor(ctx context.Context, customerID string) ([]*models.Order, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, apperrors.NewValidationError("customer_id", "customer_id is required")
	}

	orders, err := q.store.ListByCustomerAndStatuses(ctx, customerID, models.ActiveStatuses)

	if err != nil {
		q.logger.Error("Failed to list active orders", "error", err, "customerID", customerID)
		return nil, apperrors.NewInternalError("failed to list active orders")
	}

	return orders, nil
}

// HistoryFor returns a customer's finished orders, newest first
func (q *QueryService) HistoryFor(ctx context.Context, customerID string) ([]*models.Order, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, apperrors.NewValidationError("customer_id", "customer_id is required")
	}

	orders, err := q.store.ListByCustomerAndStatuses(ctx, customerID, models.TerminalStatuses)

	if err != nil {
		q.logger.Error("Failed to list order history", "error", err, "customerID", customerID)
		return nil, apperrors.NewInternalError("failed to list order history")
	}

	return orders, nil
}

// CountsByStatus returns the number of orders in every status. Statuses
// with no orders appear with a zero count so dashboards always see the
// full set of keys.
func (q *QueryService) CountsByStatus(ctx context.Context) (map[models.Status]int, error) {
	counts, err := q.store.CountByStatus(ctx)

	if err != nil {
		q.logger.Error("Failed to count orders by status", "error", err)
		return nil, apperrors.NewInternalError("failed to count orders")
	}

	result := make(map[models.Status]int, len(models.AllStatuses))
	for _, status := range models.AllStatuses {
		result[status] = counts[status]
	}

	return result, nil
}
