package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/campusdine/preorder-api/internal/models"
)

// MemoryOrderStore is an in-memory order store with the same conditional
// update semantics as the Postgres repository. It backs the engine and
// coordinator tests, where the version race is exercised with real
// goroutines instead of a database.
type MemoryOrderStore struct {
	mu     sync.Mutex
	orders map[string]*models.Order
	byCode map[string]string // verification code -> order id
}

// NewMemoryOrderStore creates an empty in-memory store
func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{
		orders: make(map[string]*models.Order),
		byCode: make(map[string]string),
	}
}

// Create inserts a new order
func (s *MemoryOrderStore) Create(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *order
	s.orders[order.ID] = &cp
	s.byCode[order.VerificationCode] = order.ID
	return nil
}

// GetByID retrieves an order by its ID
func (s *MemoryOrderStore) GetByID(ctx context.Context, id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}

	cp := *order
	return &cp, nil
}

// GetByVerificationCode retrieves an order by its pickup code
func (s *MemoryOrderStore) GetByVerificationCode(ctx context.Context, code string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}

	cp := *s.orders[id]
	return &cp, nil
}

// UpdateVersioned applies the mutation only if the stored version still
// matches expectedVersion. The check and the write happen under one lock,
// mirroring the atomicity of the SQL conditional update.
func (s *MemoryOrderStore) UpdateVersioned(ctx context.Context, order *models.Order, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[order.ID]
	if !ok {
		return ErrNotFound
	}

	if current.Version != expectedVersion {
		return ErrVersionConflict
	}

	cp := *order
	cp.Version = expectedVersion + 1
	cp.UpdatedAt = models.GetCurrentTime()
	s.orders[order.ID] = &cp

	order.Version = cp.Version
	order.UpdatedAt = cp.UpdatedAt
	return nil
}

// ListByCustomerAndStatuses retrieves a customer's orders in any of the given
// statuses, newest first
func (s *MemoryOrderStore) ListByCustomerAndStatuses(ctx context.Context, customerID string, statuses []models.Status) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[models.Status]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}

	var result []*models.Order

	for _, order := range s.orders {
		if order.CustomerID == customerID && wanted[order.Status] {
			cp := *order
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OrderTime.After(result[j].OrderTime)
	})

	return result, nil
}

// CountByStatus counts orders grouped by status
func (s *MemoryOrderStore) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[models.Status]int)

	for _, order := range s.orders {
		counts[order.Status]++
	}

	return counts, nil
}

// ListDueForReminder finds Ready orders with a pickup deadline at or before
// dueBefore that have not been reminded yet
func (s *MemoryOrderStore) ListDueForReminder(ctx context.Context, dueBefore time.Time) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*models.Order

	for _, order := range s.orders {
		if order.Status != models.StatusReady || order.ReminderSentAt != nil {
			continue
		}
		if order.PickupTime == nil || order.PickupTime.After(dueBefore) {
			continue
		}
		cp := *order
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].PickupTime.Before(*result[j].PickupTime)
	})

	return result, nil
}
