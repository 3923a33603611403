// internal/domain/payment/entity.go
package payment

import (
	"time"

	"gorm.io/gorm"
)

// MethodType identifies how the customer pays
type MethodType string

const (
	MethodCreditCard MethodType = "CREDIT_CARD"
	MethodPSE        MethodType = "PSE"
)

// GatewayConfig is a configured payment provider
type GatewayConfig struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Provider  string         `gorm:"uniqueIndex;size:50;not null" json:"provider"`
	Mode      string         `gorm:"size:20;default:'test'" json:"mode"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (GatewayConfig) TableName() string {
	return "payment_gateways"
}

// PaymentMethodConfig is a customer-facing payment method bound to a gateway
type PaymentMethodConfig struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"size:100;not null" json:"name"`
	Type      MethodType     `gorm:"size:30;not null;index" json:"type"`
	Enabled   bool           `gorm:"default:true" json:"enabled"`
	MinAmount int64          `gorm:"default:0" json:"min_amount"`
	MaxAmount int64          `gorm:"default:0" json:"max_amount"`
	GatewayID uint           `gorm:"not null;index" json:"gateway_id"`
	Gateway   GatewayConfig  `gorm:"foreignKey:GatewayID" json:"gateway,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (PaymentMethodConfig) TableName() string {
	return "payment_methods"
}

// Transaction statuses. These track the payment attempt, not the order.
const (
	TxnStatusPending   = "pending"
	TxnStatusCompleted = "completed"
	TxnStatusFailed    = "failed"
	TxnStatusUnknown   = "unknown"
)

// Transaction is one payment attempt against an order
type Transaction struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	OrderID    uint       `gorm:"not null;index" json:"order_id"`
	MethodType MethodType `gorm:"size:30;not null" json:"method_type"`
	Provider   string     `gorm:"size:50;not null" json:"provider"`

	// Reference is the gateway-side transaction id, used to correlate webhooks
	Reference string `gorm:"uniqueIndex;size:255" json:"reference"`

	Status    string `gorm:"size:30;not null" json:"status"`
	RawStatus string `gorm:"size:100" json:"raw_status"`

	Amount   int64  `gorm:"not null" json:"amount"`
	Currency string `gorm:"size:3;not null" json:"currency"`

	// RedirectURL is set for redirect flows (PSE) so the client can resume
	RedirectURL   string `gorm:"size:500" json:"redirect_url,omitempty"`
	FailureReason string `gorm:"size:500" json:"failure_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (Transaction) TableName() string {
	return "payment_transactions"
}
