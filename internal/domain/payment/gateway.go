// internal/domain/payment/gateway.go
package payment

import (
	"context"
	"fmt"
)

// GatewayInfo identifies a gateway implementation
type GatewayInfo struct {
	Provider string
	Mode     string
}

// CardTokenInput carries raw card data for tokenization. It is never
// persisted; only the resulting token travels further.
type CardTokenInput struct {
	Number     string
	ExpMonth   string
	ExpYear    string
	CVC        string
	HolderName string
}

// CardToken is the gateway's opaque handle for a tokenized card
type CardToken struct {
	Token string
	Brand string
	Last4 string
}

// ChargeInput charges a previously tokenized card
type ChargeInput struct {
	OrderNumber   string
	Amount        int64
	Currency      string
	Token         string
	Description   string
	CustomerEmail string
}

// ChargeResult is the gateway's synchronous answer to a charge
type ChargeResult struct {
	Reference string
	RawStatus string
}

// PSEPaymentInput starts a PSE bank-redirect payment
type PSEPaymentInput struct {
	OrderNumber    string
	Amount         int64
	Currency       string
	BankCode       string
	CustomerEmail  string
	CustomerName   string
	DocumentType   string
	DocumentNumber string
	ResponseURL    string
}

// PSEPaymentResult carries the redirect the customer must follow
type PSEPaymentResult struct {
	Reference   string
	RawStatus   string
	RedirectURL string
}

// VerifyResult is the gateway's answer to a transaction lookup
type VerifyResult struct {
	Reference string
	RawStatus string
	Amount    int64
}

// Bank is a PSE-participating bank
type Bank struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// WebhookEvent is a verified, provider-normalized webhook notification
type WebhookEvent struct {
	Reference string
	RawStatus string
}

// Gateway is the provider abstraction. Not every gateway supports every
// capability; callers must check Supports before invoking one.
type Gateway interface {
	Info() GatewayInfo
	Supports(method MethodType) bool

	CreateCardToken(ctx context.Context, in CardTokenInput) (*CardToken, error)
	ChargeCard(ctx context.Context, in ChargeInput) (*ChargeResult, error)

	ProcessPSEPayment(ctx context.Context, in PSEPaymentInput) (*PSEPaymentResult, error)
	Banks(ctx context.Context) ([]Bank, error)

	VerifyTransaction(ctx context.Context, reference string) (*VerifyResult, error)

	// ParseWebhook authenticates the raw notification and normalizes it.
	// Unauthenticated payloads are rejected, never partially processed.
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// UnsupportedCapabilityError is returned when a gateway is asked for a
// capability it does not implement
type UnsupportedCapabilityError struct {
	Provider   string
	Capability string
}

func (e *UnsupportedCapabilityError) Error() string {
	return fmt.Sprintf("gateway %s does not support %s", e.Provider, e.Capability)
}

// GatewayError wraps a failed gateway call. Ambiguous means the gateway may
// or may not have executed the operation (timeouts, transport failures), so
// the order must stay in its current state until reconciliation.
type GatewayError struct {
	Provider  string
	Ambiguous bool
	Err       error
}

func (e *GatewayError) Error() string {
	if e.Ambiguous {
		return fmt.Sprintf("gateway %s: outcome unknown: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("gateway %s: %v", e.Provider, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
