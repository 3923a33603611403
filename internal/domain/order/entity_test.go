package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"pending to completed", StatusPending, StatusPaymentCompleted, true},
		{"pending to failed", StatusPending, StatusPaymentFailed, true},
		{"pending to cancelled", StatusPending, StatusCancelled, true},
		{"failed to completed on retry", StatusPaymentFailed, StatusPaymentCompleted, true},
		{"failed to cancelled", StatusPaymentFailed, StatusCancelled, true},
		{"completed to delivered", StatusPaymentCompleted, StatusDelivered, true},
		{"delivered to completed", StatusDelivered, StatusCompleted, true},
		{"completed back to pending", StatusPaymentCompleted, StatusPending, false},
		{"completed to failed", StatusPaymentCompleted, StatusPaymentFailed, false},
		{"cancelled is terminal", StatusCancelled, StatusPending, false},
		{"completed lifecycle is terminal", StatusCompleted, StatusDelivered, false},
		{"no self transition", StatusPending, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestGenerateOrderNumber(t *testing.T) {
	at := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

	assert.Equal(t, "ORD-20250314-00042", GenerateOrderNumber(42, at))
	assert.Equal(t, "ORD-20250314-123456", GenerateOrderNumber(123456, at))
}

func TestIsTerminalPayment(t *testing.T) {
	assert.False(t, (&Order{Status: StatusPending}).IsTerminalPayment())
	assert.False(t, (&Order{Status: StatusPaymentFailed}).IsTerminalPayment())
	assert.True(t, (&Order{Status: StatusPaymentCompleted}).IsTerminalPayment())
	assert.True(t, (&Order{Status: StatusCancelled}).IsTerminalPayment())
}

func TestDeliveryTypeValid(t *testing.T) {
	assert.True(t, DeliveryShipping.Valid())
	assert.True(t, DeliveryPickup.Valid())
	assert.False(t, DeliveryType("DRONE").Valid())
	assert.False(t, DeliveryType("").Valid())
}
