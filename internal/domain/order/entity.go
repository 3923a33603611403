// internal/domain/order/entity.go
package order

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Status represents the order lifecycle state. Transitions are append-only:
// once a payment attempt was recorded the order never returns to PENDING.
type Status string

const (
	StatusPending          Status = "PENDING"
	StatusPaymentCompleted Status = "PAYMENT_COMPLETED"
	StatusPaymentFailed    Status = "PAYMENT_FAILED"
	StatusCancelled        Status = "CANCELLED"
	StatusDelivered        Status = "DELIVERED"
	StatusCompleted        Status = "COMPLETED"
)

// DeliveryType selects between home delivery and agency pickup
type DeliveryType string

const (
	DeliveryShipping DeliveryType = "SHIPPING"
	DeliveryPickup   DeliveryType = "PICKUP"
)

// Valid reports whether the delivery type is a known variant
func (d DeliveryType) Valid() bool {
	return d == DeliveryShipping || d == DeliveryPickup
}

// Order represents an order materialized from a cart snapshot
type Order struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	OrderNumber string `gorm:"uniqueIndex;size:50" json:"order_number"`
	UserID      uint   `gorm:"not null;index" json:"user_id"`
	CartID      uint   `gorm:"not null;index" json:"cart_id"`

	// CheckoutSessionID ties the order to the checkout session that created
	// it. A partial unique index (migrations) makes order creation
	// idempotent per session even when the session's own order pointer was
	// lost.
	CheckoutSessionID string `gorm:"size:64;index" json:"checkout_session_id"`
	Status      Status `gorm:"not null;default:'PENDING';size:30;index" json:"status"`

	// Delivery; exactly one of address/agency is set, matching DeliveryType
	DeliveryType      DeliveryType `gorm:"not null;size:10" json:"delivery_type"`
	DeliveryAddressID *uint        `gorm:"index" json:"delivery_address_id,omitempty"`
	PickupAgencyID    *uint        `gorm:"index" json:"pickup_agency_id,omitempty"`

	PaymentMethodID uint `gorm:"not null;index" json:"payment_method_id"`

	// Financial breakdown, in cents. total = subtotal - discount + shipping + tax
	SubtotalAmount int64  `gorm:"not null" json:"subtotal_amount"`
	DiscountAmount int64  `gorm:"default:0" json:"discount_amount"`
	ShippingAmount int64  `gorm:"default:0" json:"shipping_amount"`
	TaxAmount      int64  `gorm:"default:0" json:"tax_amount"`
	TotalAmount    int64  `gorm:"not null" json:"total_amount"`
	Currency       string `gorm:"size:3;default:'COP'" json:"currency"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items"`
}

// OrderItem is a frozen snapshot of one cart line at order-creation time
type OrderItem struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OrderID    uint      `gorm:"not null;index" json:"order_id"`
	ProductID  uint      `gorm:"not null;index" json:"product_id"`
	SKU        string    `gorm:"not null;size:100" json:"sku"`
	Name       string    `gorm:"not null;size:255" json:"name"`
	Quantity   int       `gorm:"not null" json:"quantity"`
	Price      int64     `gorm:"not null" json:"price"`       // Price per unit in cents
	TotalPrice int64     `gorm:"not null" json:"total_price"` // Quantity * Price
	CreatedAt  time.Time `json:"created_at"`
}

// TableName overrides
func (Order) TableName() string     { return "orders" }
func (OrderItem) TableName() string { return "order_items" }

// validTransitions is the append-only state table. PAYMENT_FAILED may still
// reach PAYMENT_COMPLETED through a retried payment or late webhook, but no
// state ever goes back to PENDING.
var validTransitions = map[Status][]Status{
	StatusPending:          {StatusPaymentCompleted, StatusPaymentFailed, StatusCancelled},
	StatusPaymentFailed:    {StatusPaymentCompleted, StatusCancelled},
	StatusPaymentCompleted: {StatusDelivered, StatusCancelled},
	StatusDelivered:        {StatusCompleted},
}

// CanTransition reports whether a status change is allowed
func CanTransition(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// GenerateOrderNumber formats the public order number: ORD-YYYYMMDD-XXXXX
func GenerateOrderNumber(id uint, at time.Time) string {
	return fmt.Sprintf("ORD-%s-%05d", at.Format("20060102"), id)
}

// IsTerminalPayment reports whether the payment phase has concluded
func (o *Order) IsTerminalPayment() bool {
	return o.Status != StatusPending && o.Status != StatusPaymentFailed
}

// CanBeCancelled checks if the order can still be cancelled
func (o *Order) CanBeCancelled() bool {
	return o.Status == StatusPending || o.Status == StatusPaymentFailed
}
