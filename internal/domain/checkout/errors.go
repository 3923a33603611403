// internal/domain/checkout/errors.go
package checkout

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoActiveCart is returned when checkout is initiated without a cart
	ErrNoActiveCart = errors.New("no active cart to check out")

	// ErrEmptyCart is returned when the cart has no line items
	ErrEmptyCart = errors.New("cart is empty")

	// ErrSessionNotFound is returned for an unknown checkout session id
	ErrSessionNotFound = errors.New("checkout session not found")

	// ErrSessionExpired is returned once the session deadline has passed
	ErrSessionExpired = errors.New("checkout session expired")

	// ErrPaymentMethodUnavailable is returned for disabled or unknown methods
	ErrPaymentMethodUnavailable = errors.New("payment method unavailable")

	// ErrOrderCreationInProgress is returned when a concurrent createOrder
	// for the same session holds the lock
	ErrOrderCreationInProgress = errors.New("order creation already in progress")
)

// IncompleteCheckoutError reports which steps createOrder is still missing
type IncompleteCheckoutError struct {
	Missing []string
}

func (e *IncompleteCheckoutError) Error() string {
	return fmt.Sprintf("checkout incomplete: missing %s", strings.Join(e.Missing, ", "))
}

// InvalidDeliveryTargetError is returned when the delivery target does not
// match the delivery type or does not belong to the user
type InvalidDeliveryTargetError struct {
	Reason string
}

func (e *InvalidDeliveryTargetError) Error() string {
	return "invalid delivery target: " + e.Reason
}

// OrderAlreadyCreatedError is returned when createOrder runs against a
// session that already produced an order
type OrderAlreadyCreatedError struct {
	OrderID uint
}

func (e *OrderAlreadyCreatedError) Error() string {
	return fmt.Sprintf("order %d already created for this checkout session", e.OrderID)
}
