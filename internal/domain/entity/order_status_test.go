package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatus_Transitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{OrderPending, OrderConfirmed, true},
		{OrderPending, OrderCancelled, true},
		{OrderPending, OrderShipped, false},
		{OrderConfirmed, OrderProcessing, true},
		{OrderConfirmed, OrderShipped, true},
		{OrderConfirmed, OrderPending, false},
		{OrderProcessing, OrderCancelled, true},
		{OrderShipped, OrderDelivered, true},
		{OrderShipped, OrderCancelled, false},
		{OrderDelivered, OrderCancelled, false},
		{OrderCancelled, OrderPending, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestOrderStatus_TerminalStatesHaveNoExits(t *testing.T) {
	for _, s := range []OrderStatus{OrderDelivered, OrderCancelled} {
		assert.True(t, s.IsTerminal())
		for _, next := range []OrderStatus{OrderPending, OrderConfirmed, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled} {
			assert.False(t, s.CanTransitionTo(next), "%s -> %s", s, next)
		}
	}
}

func TestOrderStatus_Valid(t *testing.T) {
	assert.True(t, OrderProcessing.Valid())
	assert.False(t, OrderStatus("lost").Valid())
}

func TestPaymentStatus_Transitions(t *testing.T) {
	assert.True(t, PaymentPending.CanTransitionTo(PaymentPaid))
	assert.True(t, PaymentFailed.CanTransitionTo(PaymentPending))
	assert.True(t, PaymentFailed.CanTransitionTo(PaymentPaid))
	assert.True(t, PaymentPaid.CanTransitionTo(PaymentRefunded))
	assert.False(t, PaymentPaid.CanTransitionTo(PaymentFailed))
	assert.False(t, PaymentRefunded.CanTransitionTo(PaymentPaid))
}

func TestOrderStatus_HoldsStock(t *testing.T) {
	assert.False(t, OrderPending.HoldsStock())
	assert.True(t, OrderConfirmed.HoldsStock())
	assert.False(t, OrderCancelled.HoldsStock())
}
