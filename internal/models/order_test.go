package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		name    string
		current Status
		action  Action
		want    Status
		wantOK  bool
	}{
		{"approve pending", StatusPendingApproval, ActionApprove, StatusPlaced, true},
		{"reject pending", StatusPendingApproval, ActionReject, StatusCancelled, true},
		{"ready placed", StatusPlaced, ActionSetReady, StatusReady, true},
		{"cancel placed", StatusPlaced, ActionCancel, StatusCancelled, true},
		{"cancel ready", StatusReady, ActionCancel, StatusCancelled, true},
		{"redeem ready", StatusReady, ActionRedeem, StatusPickedUp, true},
		{"redeem pending", StatusPendingApproval, ActionRedeem, "", false},
		{"redeem placed", StatusPlaced, ActionRedeem, "", false},
		{"approve placed", StatusPlaced, ActionApprove, "", false},
		{"approve ready", StatusReady, ActionApprove, "", false},
		{"reject placed", StatusPlaced, ActionReject, "", false},
		{"cancel pending", StatusPendingApproval, ActionCancel, "", false},
		{"set ready on pending", StatusPendingApproval, ActionSetReady, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextStatus(tt.current, tt.action)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestTerminalStatesHaveNoOutgoingEdges(t *testing.T) {
	actions := []Action{ActionApprove, ActionReject, ActionSetReady, ActionCancel, ActionRedeem}

	for _, status := range []Status{StatusPickedUp, StatusCancelled} {
		require.True(t, status.IsTerminal())

		for _, action := range actions {
			_, ok := NextStatus(status, action)
			assert.False(t, ok, "expected no edge from %s via %s", status, action)
		}
	}
}

func TestActiveStatusesAreNotTerminal(t *testing.T) {
	for _, status := range ActiveStatuses {
		assert.False(t, status.IsTerminal(), "status %s", status)
	}

	assert.ElementsMatch(t, AllStatuses, append(append([]Status{}, ActiveStatuses...), TerminalStatuses...))
}

func TestNewOrder(t *testing.T) {
	meal := &Meal{ID: "meal-1", Name: "Chicken Rice", PriceCents: 650, Available: true}

	order := NewOrder("cust-1", meal, 3)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, "cust-1", order.CustomerID)
	assert.Equal(t, "meal-1", order.MealID)
	assert.Equal(t, "Chicken Rice", order.MealName)
	assert.Equal(t, int64(650), order.UnitPriceCents)
	assert.Equal(t, 3, order.Quantity)
	assert.Equal(t, StatusPendingApproval, order.Status)
	assert.Equal(t, int64(1), order.Version)
	assert.NotEmpty(t, order.VerificationCode)
	assert.Nil(t, order.PickupTime)
	assert.Nil(t, order.RedeemedAt)
	assert.Nil(t, order.RejectionReason)
}

func TestTotalCentsUsesPriceSnapshot(t *testing.T) {
	meal := &Meal{ID: "meal-1", Name: "Noodle Soup", PriceCents: 480, Available: true}

	order := NewOrder("cust-1", meal, 2)
	require.Equal(t, int64(960), order.TotalCents())

	// A later catalog price change must not affect the order total
	meal.PriceCents = 9999
	assert.Equal(t, int64(960), order.TotalCents())
}

func TestNewVerificationCode(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		code := NewVerificationCode()

		require.Len(t, code, 32)
		require.False(t, seen[code], "duplicate verification code generated")
		seen[code] = true
	}
}

func TestNewOrderEventMessageOmitsVerificationCode(t *testing.T) {
	meal := &Meal{ID: "meal-1", Name: "Curry", PriceCents: 700, Available: true}
	order := NewOrder("cust-9", meal, 1)

	msg, err := NewOrderEventMessage(order, EventApproved)
	require.NoError(t, err)

	assert.Equal(t, "order", msg.AggregateType)
	assert.Equal(t, order.ID, msg.AggregateID)
	assert.Equal(t, string(EventApproved), msg.EventType)
	assert.Equal(t, OutboxStatusPending, msg.Status)
	assert.NotContains(t, string(msg.Payload), order.VerificationCode)
}
