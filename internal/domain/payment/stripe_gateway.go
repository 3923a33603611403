// internal/domain/payment/stripe_gateway.go
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/charge"
	"github.com/stripe/stripe-go/v80/token"
	"github.com/stripe/stripe-go/v80/webhook"
)

// StripeGateway processes card payments through Stripe
type StripeGateway struct {
	mode          string
	webhookSecret string
}

// NewStripeGateway configures the Stripe client. The secret key is global to
// the stripe-go library, so only one Stripe gateway can exist per process.
func NewStripeGateway(secretKey, webhookSecret, mode string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{
		mode:          mode,
		webhookSecret: webhookSecret,
	}
}

// Info identifies this gateway
func (g *StripeGateway) Info() GatewayInfo {
	return GatewayInfo{Provider: "stripe", Mode: g.mode}
}

// Supports reports the capabilities Stripe is wired for
func (g *StripeGateway) Supports(method MethodType) bool {
	return method == MethodCreditCard
}

// CreateCardToken tokenizes raw card data. Card numbers never go further
// than this call.
func (g *StripeGateway) CreateCardToken(ctx context.Context, in CardTokenInput) (*CardToken, error) {
	params := &stripe.TokenParams{
		Card: &stripe.CardParams{
			Number:   stripe.String(in.Number),
			ExpMonth: stripe.String(in.ExpMonth),
			ExpYear:  stripe.String(in.ExpYear),
			CVC:      stripe.String(in.CVC),
			Name:     stripe.String(in.HolderName),
		},
	}
	params.Context = ctx

	tok, err := token.New(params)
	if err != nil {
		return nil, g.wrapErr(err)
	}

	ct := &CardToken{Token: tok.ID}
	if tok.Card != nil {
		ct.Brand = string(tok.Card.Brand)
		ct.Last4 = tok.Card.Last4
	}
	return ct, nil
}

// ChargeCard charges a tokenized card synchronously
func (g *StripeGateway) ChargeCard(ctx context.Context, in ChargeInput) (*ChargeResult, error) {
	params := &stripe.ChargeParams{
		Amount:       stripe.Int64(in.Amount),
		Currency:     stripe.String(strings.ToLower(in.Currency)),
		Description:  stripe.String(in.Description),
		ReceiptEmail: stripe.String(in.CustomerEmail),
	}
	params.Context = ctx
	params.AddMetadata("order_number", in.OrderNumber)
	if err := params.SetSource(in.Token); err != nil {
		return nil, fmt.Errorf("invalid card token: %w", err)
	}

	ch, err := charge.New(params)
	if err != nil {
		return nil, g.wrapErr(err)
	}

	return &ChargeResult{
		Reference: ch.ID,
		RawStatus: string(ch.Status),
	}, nil
}

// ProcessPSEPayment is not a Stripe capability in this deployment
func (g *StripeGateway) ProcessPSEPayment(ctx context.Context, in PSEPaymentInput) (*PSEPaymentResult, error) {
	return nil, &UnsupportedCapabilityError{Provider: "stripe", Capability: "pse_payment"}
}

// Banks is not a Stripe capability
func (g *StripeGateway) Banks(ctx context.Context) ([]Bank, error) {
	return nil, &UnsupportedCapabilityError{Provider: "stripe", Capability: "pse_banks"}
}

// VerifyTransaction re-reads a charge from Stripe
func (g *StripeGateway) VerifyTransaction(ctx context.Context, reference string) (*VerifyResult, error) {
	params := &stripe.ChargeParams{}
	params.Context = ctx

	ch, err := charge.Get(reference, params)
	if err != nil {
		return nil, g.wrapErr(err)
	}
	return &VerifyResult{
		Reference: ch.ID,
		RawStatus: string(ch.Status),
		Amount:    ch.Amount,
	}, nil
}

// ParseWebhook verifies the Stripe-Signature header and extracts the charge
// outcome. Payloads that fail verification are rejected outright.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	switch event.Type {
	case "charge.succeeded", "charge.failed", "charge.pending":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("failed to decode charge event: %w", err)
		}
		return &WebhookEvent{
			Reference: ch.ID,
			RawStatus: string(ch.Status),
		}, nil
	default:
		return nil, fmt.Errorf("unhandled stripe event type %s", event.Type)
	}
}

// wrapErr classifies a stripe-go error. A structured *stripe.Error means the
// gateway answered, so the outcome is known; anything else is transport and
// leaves the outcome ambiguous.
func (g *StripeGateway) wrapErr(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &GatewayError{Provider: "stripe", Ambiguous: false, Err: err}
	}
	return &GatewayError{Provider: "stripe", Ambiguous: true, Err: err}
}
