package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/campusdine/preorder-api/internal/models"
	"github.com/campusdine/preorder-api/pkg/logger"
)

// LoggingHandler is a message handler that logs the order event. Used when
// no Kafka brokers are configured so events still surface somewhere.
type LoggingHandler struct {
	logger logger.Logger
}

// NewLoggingHandler creates a new LoggingHandler
func NewLoggingHandler(logger logger.Logger) *LoggingHandler {
	return &LoggingHandler{
		logger: logger,
	}
}

// HandleMessage handles the outbox message by logging it
func (h *LoggingHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	var event models.OrderEvent

	if err := json.Unmarshal(message.Payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal order event: %w", err)
	}

	h.logger.Info("Handling order event",
		"messageID", message.ID,
		"eventType", message.EventType,
		"orderID", event.OrderID,
		"customerID", event.CustomerID,
		"eventID", event.EventID,
		"occurredAt", event.OccurredAt)

	return nil
}
