// internal/domain/checkout/entity.go
package checkout

import (
	"time"

	"github.com/your-org/storefront-backend/internal/domain/order"
)

// State identifies how far a checkout session has progressed
type State string

const (
	StateInitiated    State = "INITIATED"
	StateDeliverySet  State = "DELIVERY_SET"
	StatePaymentSet   State = "PAYMENT_SET"
	StateOrderCreated State = "ORDER_CREATED"
)

// Session is the short-lived checkout working set. It lives in Redis only;
// nothing here is authoritative until createOrder materializes an order row.
type Session struct {
	ID     string `json:"id"`
	UserID uint   `json:"user_id"`
	CartID uint   `json:"cart_id"`

	DeliveryType      order.DeliveryType `json:"delivery_type,omitempty"`
	DeliveryAddressID *uint              `json:"delivery_address_id,omitempty"`
	PickupAgencyID    *uint              `json:"pickup_agency_id,omitempty"`

	PaymentMethodID uint `json:"payment_method_id,omitempty"`

	ShippingFee int64 `json:"shipping_fee"`

	// OrderID is set exactly once, by the first successful createOrder
	OrderID uint `json:"order_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// State derives the progression from which fields have been set. Steps are
// recorded independently, so delivery can be revised after payment is chosen
// without losing the payment selection.
func (s *Session) State() State {
	switch {
	case s.OrderID != 0:
		return StateOrderCreated
	case s.PaymentMethodID != 0:
		return StatePaymentSet
	case s.DeliveryType != "":
		return StateDeliverySet
	default:
		return StateInitiated
	}
}

// Expired reports whether the session has passed its deadline
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// MissingSteps lists what still has to happen before createOrder can run
func (s *Session) MissingSteps() []string {
	var missing []string
	if s.DeliveryType == "" {
		missing = append(missing, "delivery")
	}
	if s.PaymentMethodID == 0 {
		missing = append(missing, "payment_method")
	}
	return missing
}

// ReadyForOrder reports whether both checkout steps are complete
func (s *Session) ReadyForOrder() bool {
	return len(s.MissingSteps()) == 0
}
