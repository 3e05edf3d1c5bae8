package models

import (
	"time"
)

// Status is the closed set of order lifecycle states
type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusPlaced          Status = "placed"
	StatusReady           Status = "ready"
	StatusPickedUp        Status = "picked_up"
	StatusCancelled       Status = "cancelled"
)

// Action names a lifecycle transition attempt
type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionSetReady Action = "set_ready"
	ActionCancel   Action = "cancel"
	ActionRedeem   Action = "redeem"
)

// transitions is the complete edge set of the lifecycle state machine.
// Any (state, action) pair absent here is an invalid transition.
var transitions = map[Status]map[Action]Status{
	StatusPendingApproval: {
		ActionApprove: StatusPlaced,
		ActionReject:  StatusCancelled,
	},
	StatusPlaced: {
		ActionSetReady: StatusReady,
		ActionCancel:   StatusCancelled,
	},
	StatusReady: {
		ActionCancel: StatusCancelled,
		ActionRedeem: StatusPickedUp,
	},
}

// NextStatus returns the state an action leads to from the current state,
// and whether the edge exists at all.
func NextStatus(current Status, action Action) (Status, bool) {
	next, ok := transitions[current][action]
	return next, ok
}

// IsTerminal reports whether the status has no outgoing transitions
func (s Status) IsTerminal() bool {
	return s == StatusPickedUp || s == StatusCancelled
}

// ActiveStatuses are the states shown in a customer's active-orders view
var ActiveStatuses = []Status{StatusPendingApproval, StatusPlaced, StatusReady}

// TerminalStatuses are the states shown in a customer's order history
var TerminalStatuses = []Status{StatusPickedUp, StatusCancelled}

// AllStatuses lists every lifecycle state, for the staff dashboard counts
var AllStatuses = []Status{
	StatusPendingApproval,
	StatusPlaced,
	StatusReady,
	StatusPickedUp,
	StatusCancelled,
}

// Order is a customer's preorder of one meal for later pickup.
//
// UnitPriceCents is snapshotted from the catalog when the order is created
// and never recomputed; the catalog's current price may drift afterwards
// without changing this order's total. Version is the optimistic-concurrency
// token: every committed mutation increments it, and conditional updates
// compare against it.
type Order struct {
	ID               string     `db:"id" json:"id"`
	CustomerID       string     `db:"customer_id" json:"customer_id"`
	MealID           string     `db:"meal_id" json:"meal_id"`
	MealName         string     `db:"meal_name" json:"meal_name"`
	UnitPriceCents   int64      `db:"unit_price_cents" json:"unit_price_cents"`
	Quantity         int        `db:"quantity" json:"quantity"`
	Status           Status     `db:"status" json:"status"`
	VerificationCode string     `db:"verification_code" json:"verification_code,omitempty"`
	OrderTime        time.Time  `db:"order_time" json:"order_time"`
	PickupTime       *time.Time `db:"pickup_time" json:"pickup_time,omitempty"`
	RedeemedAt       *time.Time `db:"redeemed_at" json:"redeemed_at,omitempty"`
	ReminderSentAt   *time.Time `db:"reminder_sent_at" json:"reminder_sent_at,omitempty"`
	RejectionReason  *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
	Version          int64      `db:"version" json:"version"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// NewOrder creates an order in the initial pending-approval state with a
// fresh verification code and a price snapshot from the given meal.
func NewOrder(customerID string, meal *Meal, quantity int) *Order {
	now := GetCurrentTime()

	return &Order{
		ID:               GenerateID("ord"),
		CustomerID:       customerID,
		MealID:           meal.ID,
		MealName:         meal.Name,
		UnitPriceCents:   meal.PriceCents,
		Quantity:         quantity,
		Status:           StatusPendingApproval,
		VerificationCode: NewVerificationCode(),
		OrderTime:        now,
		Version:          1,
		UpdatedAt:        now,
	}
}

// TotalCents is the order total, always computed from the creation-time
// price snapshot.
func (o *Order) TotalCents() int64 {
	return o.UnitPriceCents * int64(o.Quantity)
}
