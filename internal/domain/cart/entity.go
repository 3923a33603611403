// internal/domain/cart/entity.go
package cart

import (
	"time"

	"gorm.io/gorm"
)

// CartStatus represents the cart lifecycle state
type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusAbandoned CartStatus = "abandoned"
	CartStatusConverted CartStatus = "converted"
)

// Cart represents a shopping cart owned by a user or addressed by a session
// token only (guest cart). Carts are never hard-deleted; superseded carts are
// marked abandoned and carts that became orders are marked converted.
type Cart struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UserID       *uint          `gorm:"index" json:"user_id"` // Nullable for guest carts
	SessionToken string         `gorm:"not null;size:64;index" json:"session_token"`
	Status       CartStatus     `gorm:"not null;default:'active';size:20;index" json:"status"`
	ExpiresAt    time.Time      `json:"expires_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	Items []CartItem `gorm:"foreignKey:CartID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items"`
}

// CartItem represents one product line in a cart. One row per (cart, product);
// adding the same product again increments the quantity instead.
type CartItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CartID    uint      `gorm:"not null;uniqueIndex:idx_cart_items_cart_product" json:"cart_id"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_cart_items_cart_product" json:"product_id"`
	Quantity  int       `gorm:"not null;default:1" json:"quantity"`
	Price     int64     `gorm:"not null" json:"price"` // Price at time of adding, in cents
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides
func (Cart) TableName() string     { return "carts" }
func (CartItem) TableName() string { return "cart_items" }

// IsActive reports whether the cart can still be mutated
func (c *Cart) IsActive() bool {
	return c.Status == CartStatusActive
}

// Expired reports whether the cart passed its expiry timestamp
func (c *Cart) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// ItemFor returns the line item for a product, or nil
func (c *Cart) ItemFor(productID uint) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}

// Session is the store-resident pointer from an opaque session token to a
// cart. It is a cache of the carts table, never a source of truth for cart
// contents, and is recreated lazily when missing.
type Session struct {
	Token     string    `json:"token"`
	CartID    uint      `json:"cart_id"`
	UserID    *uint     `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Summary represents calculated cart totals
type Summary struct {
	ItemCount      int   `json:"item_count"`     // Number of unique items
	TotalQuantity  int   `json:"total_quantity"` // Sum of all quantities
	Subtotal       int64 `json:"subtotal"`       // Total before tax/shipping
	DiscountAmount int64 `json:"discount_amount"`
	ShippingCost   int64 `json:"shipping_cost"`
	TaxAmount      int64 `json:"tax_amount"`
	TotalAmount    int64 `json:"total_amount"` // subtotal - discount + shipping + tax
}

// ComputeSummary calculates totals from line items. Shipping is filled in
// later by checkout once the delivery type is known.
func ComputeSummary(items []CartItem) Summary {
	var s Summary
	s.ItemCount = len(items)
	for _, item := range items {
		s.TotalQuantity += item.Quantity
		s.Subtotal += item.Price * int64(item.Quantity)
	}
	s.TotalAmount = s.Subtotal - s.DiscountAmount + s.ShippingCost + s.TaxAmount
	return s
}

// MergeLineItems combines guest line items into a user's, quantity-additive
// per product. The destination item's price wins for products present in
// both carts; products only in the source keep their snapshot price.
func MergeLineItems(into, from []CartItem) []CartItem {
	merged := make([]CartItem, len(into))
	copy(merged, into)

	byProduct := make(map[uint]int, len(merged))
	for i := range merged {
		byProduct[merged[i].ProductID] = i
	}

	for _, src := range from {
		if i, ok := byProduct[src.ProductID]; ok {
			merged[i].Quantity += src.Quantity
			continue
		}
		merged = append(merged, CartItem{
			ProductID: src.ProductID,
			Quantity:  src.Quantity,
			Price:     src.Price,
		})
		byProduct[src.ProductID] = len(merged) - 1
	}

	return merged
}
