package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Shopify/sarama"

	"github.com/campusdine/preorder-api/internal/models"
	"github.com/campusdine/preorder-api/pkg/logger"
)

// OrderEventsHandler consumes order events from Kafka and delivers the
// customer-facing notifications. Delivery here is the log line; swapping in
// push or email delivery means changing the notify methods only.
type OrderEventsHandler struct {
	logger logger.Logger
}

// NewOrderEventsHandler creates a new OrderEventsHandler
func NewOrderEventsHandler(logger logger.Logger) *OrderEventsHandler {
	return &OrderEventsHandler{
		logger: logger,
	}
}

// HandleMessage handles incoming order events from Kafka messages
func (h *OrderEventsHandler) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var event models.OrderEvent

	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error("failed to unmarshal message", "error", err)
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	h.logger.Info("Handling order event",
		"eventType", event.EventType,
		"eventId", event.EventID,
		"orderId", event.OrderID,
		"occurredAt", event.OccurredAt,
	)

	switch event.EventType {
	case models.EventApproved:
		return h.notifyApproved(event)
	case models.EventReady:
		return h.notifyReady(event)
	case models.EventPickedUp:
		return h.notifyPickedUp(event)
	case models.EventCancelled:
		return h.notifyCancelled(event)
	case models.EventPickupReminder:
		return h.notifyReminder(event)
	default:
		h.logger.Warn("unknown event type", "eventType", event.EventType)
		return nil
	}
}

func (h *OrderEventsHandler) notifyApproved(event models.OrderEvent) error {
	h.logger.Info("Notifying customer: order approved",
		"customerID", event.CustomerID,
		"orderID", event.OrderID,
		"mealName", event.Order.MealName)

	return nil
}

func (h *OrderEventsHandler) notifyReady(event models.OrderEvent) error {
	h.logger.Info("Notifying customer: order ready for pickup",
		"customerID", event.CustomerID,
		"orderID", event.OrderID,
		"mealName", event.Order.MealName,
		"pickupTime", event.Order.PickupTime)

	return nil
}

func (h *OrderEventsHandler) notifyPickedUp(event models.OrderEvent) error {
	h.logger.Info("Notifying customer: order picked up",
		"customerID", event.CustomerID,
		"orderID", event.OrderID)

	return nil
}

func (h *OrderEventsHandler) notifyCancelled(event models.OrderEvent) error {
	reason := ""
	if event.Order.Reason != nil {
		reason = *event.Order.Reason
	}

	h.logger.Info("Notifying customer: order cancelled",
		"customerID", event.CustomerID,
		"orderID", event.OrderID,
		"reason", reason)

	return nil
}

func (h *OrderEventsHandler) notifyReminder(event models.OrderEvent) error {
	h.logger.Info("Notifying customer: pickup deadline approaching",
		"customerID", event.CustomerID,
		"orderID", event.OrderID,
		"pickupTime", event.Order.PickupTime)

	return nil
}
