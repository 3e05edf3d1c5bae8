package service

import (
	"context"
	"time"

	"github.com/campusdine/preorder-api/internal/models"
)

// OrderStore is the persistence port the engine and coordinator mutate
// through. Both the Postgres repository and the in-memory store satisfy it;
// UpdateVersioned must be atomic with respect to the version check.
type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByVerificationCode(ctx context.Context, code string) (*models.Order, error)
	UpdateVersioned(ctx context.Context, order *models.Order, expectedVersion int64) error
	ListByCustomerAndStatuses(ctx context.Context, customerID string, statuses []models.Status) ([]*models.Order, error)
	CountByStatus(ctx context.Context) (map[models.Status]int, error)
	ListDueForReminder(ctx context.Context, dueBefore time.Time) ([]*models.Order, error)
}

// MealCatalog supplies the current meal data the engine snapshots at order
// creation. Owned by the external catalog service.
type MealCatalog interface {
	GetMeal(ctx context.Context, mealID string) (*models.Meal, error)
}

// NotificationHook is invoked after every committed transition (and on
// pickup-deadline proximity). Implementations must not fail the transition;
// the engine swallows panics and implementations log their own delivery
// errors.
type NotificationHook interface {
	Notify(order *models.Order, kind models.EventKind)
}

// NotificationHookFunc adapts a function to the NotificationHook interface
type NotificationHookFunc func(order *models.Order, kind models.EventKind)

// Notify calls the wrapped function
func (f NotificationHookFunc) Notify(order *models.Order, kind models.EventKind) {
	f(order, kind)
}
