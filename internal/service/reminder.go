package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/campusdine/preorder-api/internal/models"
	"github.com/campusdine/preorder-api/internal/repository"
	"github.com/campusdine/preorder-api/pkg/logger"
)

// PickupReminderScheduler periodically scans for ready orders whose pickup
// deadline is close and fires a single reminder per order. Deduplication is
// server side: the reminder timestamp is written with the same version
// check as any other order update, so two scheduler instances cannot both
// send a reminder for one order.
type PickupReminderScheduler struct {
	store        OrderStore
	hook         NotificationHook
	logger       logger.Logger
	leadTime     time.Duration
	pollInterval time.Duration
	stopCh       chan struct{}
	wg           sync.WaitGroup
}

// NewPickupReminderScheduler creates a new PickupReminderScheduler
func NewPickupReminderScheduler(
	store OrderStore,
	hook NotificationHook,
	logger logger.Logger,
	leadTime time.Duration,
	pollInterval time.Duration,
) *PickupReminderScheduler {
	return &PickupReminderScheduler{
		store:        store,
		hook:         hook,
		logger:       logger,
		leadTime:     leadTime,
		pollInterval: pollInterval,
		stopCh:       make(chan struct{}),
	}
}

// Start begins the reminder polling loop
func (s *PickupReminderScheduler) Start(ctx context.Context) {
	s.logger.Info("Starting pickup reminder scheduler",
		"leadTime", s.leadTime,
		"pollInterval", s.pollInterval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sweep(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the scheduler and waits for the in-flight sweep to finish
func (s *PickupReminderScheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("Pickup reminder scheduler stopped")
}

// sweep sends reminders for every order due within the lead time
func (s *PickupReminderScheduler) sweep(ctx context.Context) {
	dueBefore := models.GetCurrentTime().Add(s.leadTime)

	orders, err := s.store.ListDueForReminder(ctx, dueBefore)

	if err != nil {
		s.logger.Error("Reminder sweep failed to list due orders", "error", err)
		return
	}

	for _, order := range orders {
		s.remind(ctx, order)
	}
}

// remind claims the reminder slot for one order and fires the hook. Losing
// the version race means another instance already claimed it; we skip.
func (s *PickupReminderScheduler) remind(ctx context.Context, order *models.Order) {
	now := models.GetCurrentTime()
	updated := *order
	updated.ReminderSentAt = &now

	err := s.store.UpdateVersioned(ctx, &updated, order.Version)

	if errors.Is(err, repository.ErrVersionConflict) || errors.Is(err, repository.ErrNotFound) {
		return
	}

	if err != nil {
		s.logger.Error("Failed to mark reminder as sent", "error", err, "orderID", order.ID)
		return
	}

	s.logger.Info("Pickup reminder sent",
		"orderID", order.ID,
		"customerID", order.CustomerID,
		"pickupTime", order.PickupTime)

	s.fireHook(&updated, models.EventPickupReminder)
}

func (s *PickupReminderScheduler) fireHook(order *models.Order, kind models.EventKind) {
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
