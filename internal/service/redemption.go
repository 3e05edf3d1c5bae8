package service

import (
	"context"
	"errors"
	"strings"

	"github.com/campusdine/preorder-api/internal/models"
	"github.com/campusdine/preorder-api/internal/repository"
	apperrors "github.com/campusdine/preorder-api/pkg/errors"
	"github.com/campusdine/preorder-api/pkg/logger"
)

// maxRedeemAttempts bounds how many times a redemption re-reads and
// retries after losing the version race to a writer that did not redeem
// the order, such as a reminder claim.
const maxRedeemAttempts = 3

// RedemptionCoordinator performs exactly-once pickup verification. When
// two staff scan the same code, exactly one conditional update lands;
// the loser re-reads and reports what actually happened instead of
// retrying the pickup. The write is retried only when the re-read shows
// the order is still Ready, meaning the conflicting writer was not a
// redemption.
type RedemptionCoordinator struct {
	store  OrderStore
	hook   NotificationHook
	logger logger.Logger
}

// NewRedemptionCoordinator creates a new RedemptionCoordinator
func NewRedemptionCoordinator(store OrderStore, hook NotificationHook, logger logger.Logger) *RedemptionCoordinator {
	return &RedemptionCoordinator{
		store:  store,
		hook:   hook,
		logger: logger,
	}
}

// Redeem looks up the order for a verification code and moves it from
// Ready to PickedUp. expectedOrderID is optional; when non-empty (QR scan
// payloads carry it) the code must belong to that order. A code for an
// already picked-up order returns AlreadyRedeemed, never a second success.
func (c *RedemptionCoordinator) Redeem(ctx context.Context, code, expectedOrderID string) (*models.Order, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperrors.NewValidationError("verification_code", "a verification code is required")
	}

	order, err := c.store.GetByVerificationCode(ctx, code)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("no order matches this verification code")
		}
		return nil, apperrors.NewInternalError("failed to look up verification code")
	}

	// A code presented against the wrong order is indistinguishable from
	// an unknown code to the caller.
	if expectedOrderID != "" && order.ID != expectedOrderID {
		return nil, apperrors.NewNotFoundError("no order matches this verification code")
	}

	for attempt := 1; attempt <= maxRedeemAttempts; attempt++ {
		if order.Status == models.StatusPickedUp {
			return nil, apperrors.NewAlreadyRedeemedError(order.ID)
		}

		next, ok := models.NextStatus(order.Status, models.ActionRedeem)

		if !ok {
			return nil, apperrors.NewInvalidTransitionError(string(order.Status), string(models.ActionRedeem))
		}

		now := models.GetCurrentTime()
		updated := *order
		updated.Status = next
		updated.RedeemedAt = &now

		err = c.store.UpdateVersioned(ctx, &updated, order.Version)

		if errors.Is(err, repository.ErrVersionConflict) {
			// A concurrent writer consumed the version token. Re-read
			// and let the next iteration decide: a completed pickup
			// becomes AlreadyRedeemed, an order that left Ready becomes
			// InvalidTransition, and a bump that left it Ready (a
			// reminder claim) means the redemption itself still has to
			// happen, so it is retried.
			order, err = c.store.GetByID(ctx, order.ID)

			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil, apperrors.NewNotFoundError("no order matches this verification code")
				}
				return nil, apperrors.NewInternalError("failed to re-read order after redemption conflict")
			}

			c.logger.Warn("Redemption lost version race",
				"orderID", order.ID,
				"attempt", attempt,
				"currentStatus", order.Status)
			continue
		}

		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NewNotFoundError("no order matches this verification code")
			}
			return nil, apperrors.NewInternalError("failed to redeem order")
		}

		c.logger.Info("Order redeemed",
			"orderID", updated.ID,
			"customerID", updated.CustomerID,
			"redeemedAt", now)

		c.fireHook(&updated, models.EventPickedUp)
		return &updated, nil
	}

	return nil, apperrors.NewConflictError(
		"order could not be redeemed after repeated concurrent updates, try again")
}

func (c *RedemptionCoordinator) fireHook(order *models.Order, kind models.EventKind) {
	if c.hook == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Notification hook panicked",
				"panic", r,
				"orderID", order.ID,
				"event", kind)
		}
	}()

	c.hook.Notify(order, kind)
}
