package outbox

import (
	"context"
	"time"

	"github.com/campusdine/preorder-api/internal/models"
	"github.com/campusdine/preorder-api/internal/repository"
	"github.com/campusdine/preorder-api/pkg/logger"
)

const hookWriteTimeout = 5 * time.Second

// Hook records order events as outbox rows. It satisfies the notification
// hook port of the service layer: a failed write is logged and dropped, the
// transition that fired it has already committed and must not be affected.
type Hook struct {
	outboxRepo *repository.OutboxRepository
	logger     logger.Logger
}

// NewHook creates a new Hook
func NewHook(outboxRepo *repository.OutboxRepository, logger logger.Logger) *Hook {
	return &Hook{
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// Notify writes one outbox row for the event
func (h *Hook) Notify(order *models.Order, kind models.EventKind) {
	msg, err := models.NewOrderEventMessage(order, kind)

	if err != nil {
		h.logger.Error("Failed to build order event",
			"error", err,
			"orderID", order.ID,
			"event", kind)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), hookWriteTimeout)
	defer cancel()

	if err := h.outboxRepo.Create(ctx, msg); err != nil {
		h.logger.Error("Failed to enqueue order event",
			"error", err,
			"orderID", order.ID,
			"event", kind)
		return
	}

	h.logger.Debug("Order event enqueued",
		"orderID", order.ID,
		"event", kind,
		"messageID", msg.ID)
}
