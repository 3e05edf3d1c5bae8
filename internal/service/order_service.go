package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campusdine/preorder-api/internal/models"
	"github.com/campusdine/preorder-api/internal/repository"
	apperrors "github.com/campusdine/preorder-api/pkg/errors"
	"github.com/campusdine/preorder-api/pkg/logger"
)

// maxTransitionAttempts bounds the read-decide-update loop for non-redeem
// transitions. Conflicts on one order are rare (two staff racing), so a
// small budget suffices; exhausting it surfaces Conflict to the caller.
const maxTransitionAttempts = 3

// OrderService is the order lifecycle engine. Every mutation of an order
// passes through here (or through the RedemptionCoordinator for redeem);
// transitions are validated against the state machine in models and applied
// with an optimistic version check.
type OrderService struct {
	store   OrderStore
	catalog MealCatalog
	hook    NotificationHook
	logger  logger.Logger
}

// NewOrderService creates a new OrderService
func NewOrderService(store OrderStore, catalog MealCatalog, hook NotificationHook, logger logger.Logger) *OrderService {
	return &OrderService{
		store:   store,
		catalog: catalog,
		hook:    hook,
		logger:  logger,
	}
}

// PlaceOrder creates a new order in PendingApproval. The meal's current
// price is snapshotted into the order; later catalog price changes never
// affect this order's total.
func (s *OrderService) PlaceOrder(ctx context.Context, customerID, mealID string, quantity int) (*models.Order, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, apperrors.NewValidationError("customer_id", "customer_id is required")
	}
	if strings.TrimSpace(mealID) == "" {
		return nil, apperrors.NewValidationError("meal_id", "meal_id is required")
	}
	if quantity <= 0 {
		return nil, apperrors.NewValidationError("quantity", "quantity must be a positive integer")
	}

	meal, err := s.catalog.GetMeal(ctx, mealID)

	if err != nil {
		s.logger.Error("Failed to fetch meal from catalog", "error", err, "mealID", mealID)
		return nil, err
	}

	if !meal.Available {
		return nil, apperrors.NewValidationError("meal_id", fmt.Sprintf("meal %s is not available for preorder", mealID))
	}

	order := models.NewOrder(customerID, meal, quantity)

	if err := s.store.Create(ctx, order); err != nil {
		s.logger.Error("Failed to persist order", "error", err, "orderID", order.ID)
		return nil, apperrors.NewInternalError("failed to create order")
	}

	s.logger.Info("Order placed",
		"orderID", order.ID,
		"customerID", customerID,
		"mealID", mealID,
		"quantity", quantity,
		"totalCents", order.TotalCents())

	return order, nil
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.store.GetByID(ctx, orderID)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", orderID))
		}
		return nil, apperrors.NewInternalError("failed to load order")
	}

	return order, nil
}

// Approve moves a pending order to Placed
func (s *OrderService) Approve(ctx context.Context, orderID string) (*models.Order, error) {
	return s.applyTransition(ctx, orderID, models.ActionApprove, models.EventApproved, nil)
}

// Reject cancels a pending order with a mandatory reason
func (s *OrderService) Reject(ctx context.Context, orderID, reason string) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("reason", "a rejection reason is required")
	}

	return s.applyTransition(ctx, orderID, models.ActionReject, models.EventCancelled, func(o *models.Order) {
		o.RejectionReason = &reason
	})
}

// SetReady marks a placed order as ready for pickup at the given deadline
func (s *OrderService) SetReady(ctx context.Context, orderID string, pickupTime time.Time) (*models.Order, error) {
	if pickupTime.Before(models.GetCurrentTime()) {
		return nil, apperrors.NewValidationError("pickup_time", "pickup time must not be in the past")
	}

	pickupUTC := pickupTime.UTC()

	return s.applyTransition(ctx, orderID, models.ActionSetReady, models.EventReady, func(o *models.Order) {
		o.PickupTime = &pickupUTC
	})
}

// Cancel cancels a placed or ready order with a mandatory reason
func (s *OrderService) Cancel(ctx context.Context, orderID, reason string) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("reason", "a cancellation reason is required")
	}

	return s.applyTransition(ctx, orderID, models.ActionCancel, models.EventCancelled, func(o *models.Order) {
		o.RejectionReason = &reason
	})
}

// applyTransition runs the optimistic read-decide-update loop for a
// non-redeem transition. Only the read and the conditional write are
// retried; validation happened before and the notification fires once,
// after the write commits.
func (s *OrderService) applyTransition(
	ctx context.Context,
	orderID string,
	action models.Action,
	eventKind models.EventKind,
	mutate func(*models.Order),
) (*models.Order, error) {
	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		order, err := s.store.GetByID(ctx, orderID)

		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", orderID))
			}
			return nil, apperrors.NewInternalError("failed to load order")
		}

		next, ok := models.NextStatus(order.Status, action)

		if !ok {
			return nil, apperrors.NewInvalidTransitionError(string(order.Status), string(action))
		}

		updated := *order
		if mutate != nil {
			mutate(&updated)
		}
		updated.Status = next

		err = s.store.UpdateVersioned(ctx, &updated, order.Version)

		if errors.Is(err, repository.ErrVersionConflict) {
			s.logger.Warn("Transition lost version race, re-reading",
				"orderID", orderID,
				"action", action,
				"attempt", attempt)
			continue
		}

		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", orderID))
			}
			return nil, apperrors.NewInternalError("failed to update order")
		}

		s.logger.Info("Order transition applied",
			"orderID", orderID,
			"action", action,
			"from", order.Status,
			"to", updated.Status,
			"version", updated.Version)

		s.fireHook(&updated, eventKind)
		return &updated, nil
	}

	return nil, apperrors.NewConflictError(
		fmt.Sprintf("order %s is under heavy contention, retry the operation", orderID))
}

// fireHook invokes the notification hook without letting it affect the
// already-committed transition
func (s *OrderService) fireHook(order *models.Order, kind models.EventKind) {
	if s.hook == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Notification hook panicked",
				"panic", r,
				"orderID", order.ID,
				"event", kind)
		}
	}()

	s.hook.Notify(order, kind)
}
