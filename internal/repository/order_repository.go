package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/campusdine/preorder-api/internal/database"
	"github.com/campusdine/preorder-api/internal/models"
	"github.com/campusdine/preorder-api/pkg/logger"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrDatabase = errors.New("database error")

	// ErrVersionConflict means a conditional update lost a race: the row's
	// version no longer matched the one the caller read.
	ErrVersionConflict = errors.New("version conflict")
)

const orderColumns = `id, customer_id, meal_id, meal_name, unit_price_cents, quantity, status,
	verification_code, order_time, pickup_time, redeemed_at, reminder_sent_at,
	rejection_reason, version, updated_at`

// OrderRepository is the Postgres-backed order store
type OrderRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(db *database.Database, logger logger.Logger) *OrderRepository {
	return &OrderRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new order
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.DB.ExecContext(
		ctx,
		query,
		order.ID,
		order.CustomerID,
		order.MealID,
		order.MealName,
		order.UnitPriceCents,
		order.Quantity,
		order.Status,
		order.VerificationCode,
		order.OrderTime,
		order.PickupTime,
		order.RedeemedAt,
		order.ReminderSentAt,
		order.RejectionReason,
		order.Version,
		order.UpdatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create order", "error", err, "orderID", order.ID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// GetByID retrieves an order by its ID
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	var order models.Order
	err := r.db.DB.GetContext(ctx, &order, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get order by ID", "error", err, "orderID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &order, nil
}

// GetByVerificationCode retrieves an order by its pickup code. A scanning
// device only has the code, never the order ID.
func (r *OrderRepository) GetByVerificationCode(ctx context.Context, code string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE verification_code = $1`

	var order models.Order
	err := r.db.DB.GetContext(ctx, &order, query, code)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get order by verification code", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &order, nil
}

// UpdateVersioned applies the order's mutated fields only if the stored row
// still carries expectedVersion, incrementing the version in the same
// statement. Exactly one of any set of concurrent callers can win.
func (r *OrderRepository) UpdateVersioned(ctx context.Context, order *models.Order, expectedVersion int64) error {
	query := `
		UPDATE orders
		SET status = $1, pickup_time = $2, redeemed_at = $3, reminder_sent_at = $4,
			rejection_reason = $5, version = version + 1, updated_at = $6
		WHERE id = $7 AND version = $8
	`

	result, err := r.db.DB.ExecContext(
		ctx,
		query,
		order.Status,
		order.PickupTime,
		order.RedeemedAt,
		order.ReminderSentAt,
		order.RejectionReason,
		models.GetCurrentTime(),
		order.ID,
		expectedVersion,
	)

	if err != nil {
		r.logger.Error("Failed to update order", "error", err, "orderID", order.ID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	rowsAffected, err := result.RowsAffected()

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if rowsAffected == 0 {
		// Either the row is gone or someone else won the version race
		if _, getErr := r.GetByID(ctx, order.ID); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	order.Version = expectedVersion + 1
	return nil
}

// ListByCustomerAndStatuses retrieves a customer's orders in any of the given
// statuses, newest first
func (r *OrderRepository) ListByCustomerAndStatuses(ctx context.Context, customerID string, statuses []models.Status) ([]*models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE customer_id = $1 AND status = ANY($2)
		ORDER BY order_time DESC
	`

	statusStrs := make([]string, len(statuses))
	for i, s := range statuses {
		statusStrs[i] = string(s)
	}

	var orders []*models.Order
	err := r.db.DB.SelectContext(ctx, &orders, query, customerID, pq.Array(statusStrs))

	if err != nil {
		r.logger.Error("Failed to list orders by customer", "error", err, "customerID", customerID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return orders, nil
}

// CountByStatus counts orders grouped by status
func (r *OrderRepository) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	query := `SELECT status, COUNT(*) AS count FROM orders GROUP BY status`

	rows, err := r.db.DB.QueryxContext(ctx, query)

	if err != nil {
		r.logger.Error("Failed to count orders by status", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int)

	for rows.Next() {
		var status models.Status
		var count int

		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return counts, nil
}

// ListDueForReminder finds Ready orders whose pickup deadline falls at or
// before dueBefore and which have not been reminded yet
func (r *OrderRepository) ListDueForReminder(ctx context.Context, dueBefore time.Time) ([]*models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = $1 AND reminder_sent_at IS NULL
			AND pickup_time IS NOT NULL AND pickup_time <= $2
		ORDER BY pickup_time ASC
	`

	var orders []*models.Order
	err := r.db.DB.SelectContext(ctx, &orders, query, models.StatusReady, dueBefore)

	if err != nil {
		r.logger.Error("Failed to list orders due for reminder", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return orders, nil
}
