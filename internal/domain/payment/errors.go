// internal/domain/payment/errors.go
package payment

import (
	"errors"
	"fmt"
)

var (
	// ErrOrderNotPayable is returned when the order's payment phase is over
	ErrOrderNotPayable = errors.New("order is not payable")

	// ErrMethodDisabled is returned for a disabled payment method
	ErrMethodDisabled = errors.New("payment method is disabled")

	// ErrCardTokenRequired is returned when a card charge has no token
	ErrCardTokenRequired = errors.New("card token is required")

	// ErrBankRequired is returned when a PSE payment names no bank
	ErrBankRequired = errors.New("bank code is required")

	// ErrUnknownTransaction is returned for webhooks that reference no
	// transaction we ever created
	ErrUnknownTransaction = errors.New("unknown transaction reference")

	// ErrWebhookRejected is returned when webhook authentication fails
	ErrWebhookRejected = errors.New("webhook rejected")

	// ErrPaymentInProgress is returned when another attempt for the same
	// order is still running
	ErrPaymentInProgress = errors.New("payment attempt already in progress")
)

// AmountOutOfRangeError is returned when the order total falls outside the
// method's configured bounds
type AmountOutOfRangeError struct {
	Amount int64
	Min    int64
	Max    int64
}

func (e *AmountOutOfRangeError) Error() string {
	return fmt.Sprintf("amount %d outside method range [%d, %d]", e.Amount, e.Min, e.Max)
}
