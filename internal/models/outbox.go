package models

import (
	"encoding/json"
	"time"
)

// EventKind identifies a notification-worthy order event
type EventKind string

const (
	EventApproved       EventKind = "order_approved"
	EventReady          EventKind = "order_ready"
	EventPickedUp       EventKind = "order_picked_up"
	EventCancelled      EventKind = "order_cancelled"
	EventPickupReminder EventKind = "pickup_reminder"
)

// OutboxStatus represents the status of an outbox message
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusCompleted  OutboxStatus = "completed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// OutboxMessage is a notification event awaiting publication. Rows are
// written when a transition commits and drained by the outbox processor, so
// a Kafka outage never blocks or fails a transition.
type OutboxMessage struct {
	ID                 int64        `db:"id" json:"id"`
	AggregateType      string       `db:"aggregate_type" json:"aggregate_type"`
	AggregateID        string       `db:"aggregate_id" json:"aggregate_id"`
	EventType          string       `db:"event_type" json:"event_type"`
	Payload            []byte       `db:"payload" json:"payload"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	ProcessedAt        *time.Time   `db:"processed_at" json:"processed_at,omitempty"`
	ProcessingAttempts int          `db:"processing_attempts" json:"processing_attempts"`
	LastError          *string      `db:"last_error" json:"last_error,omitempty"`
	Status             OutboxStatus `db:"status" json:"status"`
}

// OrderEvent is the payload envelope published for each order event
type OrderEvent struct {
	EventType  EventKind   `json:"event_type"`
	EventID    string      `json:"event_id"`
	OrderID    string      `json:"order_id"`
	CustomerID string      `json:"customer_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Order      OrderNotice `json:"order"`
}

// OrderNotice is the customer-facing order snapshot carried in events.
// The verification code is deliberately omitted: it travels only on the
// order-placement response, never through the notification pipeline.
type OrderNotice struct {
	ID         string     `json:"id"`
	MealName   string     `json:"meal_name"`
	Quantity   int        `json:"quantity"`
	TotalCents int64      `json:"total_cents"`
	Status     Status     `json:"status"`
	PickupTime *time.Time `json:"pickup_time,omitempty"`
	Reason     *string    `json:"reason,omitempty"`
}

// NewOrderEventMessage builds the outbox row for an order event
func NewOrderEventMessage(order *Order, kind EventKind) (*OutboxMessage, error) {
	event := OrderEvent{
		EventType:  kind,
		EventID:    GenerateID("evt"),
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		OccurredAt: GetCurrentTime(),
		Order: OrderNotice{
			ID:         order.ID,
			MealName:   order.MealName,
			Quantity:   order.Quantity,
			TotalCents: order.TotalCents(),
			Status:     order.Status,
			PickupTime: order.PickupTime,
			Reason:     order.RejectionReason,
		},
	}

	payload, err := json.Marshal(event)

	if err != nil {
		return nil, err
	}

	return &OutboxMessage{
		AggregateType:      "order",
		AggregateID:        order.ID,
		EventType:          string(kind),
		Payload:            payload,
		CreatedAt:          GetCurrentTime(),
		ProcessingAttempts: 0,
		Status:             OutboxStatusPending,
	}, nil
}
