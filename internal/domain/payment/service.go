// internal/domain/payment/service.go
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/domain/order"
)

// Service orchestrates payment attempts and webhook reconciliation
type Service struct {
	store    Store
	router   *Router
	dedup    WebhookDedup
	lock     AttemptLock
	notifier Notifier
	log      *logrus.Logger

	// responseURL is where PSE sends the customer back after the bank step
	responseURL string
}

// NewService creates a new payment service
func NewService(store Store, router *Router, dedup WebhookDedup, lock AttemptLock, responseURL string, log *logrus.Logger) *Service {
	return &Service{
		store:       store,
		router:      router,
		dedup:       dedup,
		lock:        lock,
		responseURL: responseURL,
		log:         log,
	}
}

// SetNotifier wires payment-completed notifications. Optional.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *Service) notifyCompleted(ctx context.Context, orderID uint) {
	if s.notifier != nil {
		s.notifier.PaymentCompleted(ctx, orderID)
	}
}

// TokenizeCard exchanges raw card data for a gateway token. Raw card data
// exists only for the duration of this call.
func (s *Service) TokenizeCard(ctx context.Context, in CardTokenInput) (*CardToken, error) {
	gw, err := s.router.GatewayFor(MethodCreditCard)
	if err != nil {
		return nil, err
	}
	return gw.CreateCardToken(ctx, in)
}

// Methods lists the payment methods customers can pick from
func (s *Service) Methods(ctx context.Context) ([]PaymentMethodConfig, error) {
	return s.store.EnabledMethods(ctx)
}

// MethodEnabled reports whether a method is available for checkout
func (s *Service) MethodEnabled(ctx context.Context, methodID uint) (bool, error) {
	m, err := s.store.MethodByID(ctx, methodID)
	if errors.Is(err, ErrMethodDisabled) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.Enabled && m.Gateway.IsActive, nil
}

// Banks lists PSE-participating banks
func (s *Service) Banks(ctx context.Context) ([]Bank, error) {
	gw, err := s.router.GatewayFor(MethodPSE)
	if err != nil {
		return nil, err
	}
	return gw.Banks(ctx)
}

// ProcessPaymentInput carries everything a payment attempt needs
type ProcessPaymentInput struct {
	OrderID uint

	// Card payments
	CardToken string

	// PSE payments
	BankCode       string
	DocumentType   string
	DocumentNumber string

	CustomerEmail string
	CustomerName  string
}

// PaymentResult is the synchronous answer to a payment attempt
type PaymentResult struct {
	Transaction *Transaction `json:"transaction"`
	OrderStatus order.Status `json:"order_status"`
	RedirectURL string       `json:"redirect_url,omitempty"`
}

// ProcessPayment runs one payment attempt: take the per-order lock, load and
// gate the order, gate the method, route to the gateway, invoke the right
// capability, then settle. The lock is held across the gateway call so two
// concurrent attempts for the same order cannot both charge the customer.
// An ambiguous gateway failure leaves the order PENDING and records the
// attempt as unknown; reconciliation happens via webhook or verification.
func (s *Service) ProcessPayment(ctx context.Context, userID uint, in ProcessPaymentInput) (*PaymentResult, error) {
	acquired, err := s.lock.Acquire(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrPaymentInProgress
	}
	defer func() {
		if err := s.lock.Release(ctx, in.OrderID); err != nil {
			s.log.WithError(err).WithField("order_id", in.OrderID).
				Warn("Failed to release payment attempt lock")
		}
	}()

	// Read under the lock: a racing attempt may have settled the order
	o, err := s.store.OrderForUser(ctx, userID, in.OrderID)
	if err != nil {
		return nil, err
	}
	if o.IsTerminalPayment() {
		return nil, ErrOrderNotPayable
	}

	m, err := s.store.MethodByID(ctx, o.PaymentMethodID)
	if err != nil {
		return nil, err
	}
	if !m.Enabled || !m.Gateway.IsActive {
		return nil, ErrMethodDisabled
	}
	if o.TotalAmount < m.MinAmount || (m.MaxAmount > 0 && o.TotalAmount > m.MaxAmount) {
		return nil, &AmountOutOfRangeError{Amount: o.TotalAmount, Min: m.MinAmount, Max: m.MaxAmount}
	}

	gw, err := s.router.GatewayFor(m.Type)
	if err != nil {
		return nil, err
	}

	txn := &Transaction{
		OrderID:    o.ID,
		MethodType: m.Type,
		Provider:   gw.Info().Provider,
		Status:     TxnStatusPending,
		Amount:     o.TotalAmount,
		Currency:   o.Currency,
	}

	var rawStatus, redirectURL string
	switch m.Type {
	case MethodCreditCard:
		if in.CardToken == "" {
			return nil, ErrCardTokenRequired
		}
		res, err := gw.ChargeCard(ctx, ChargeInput{
			OrderNumber:   o.OrderNumber,
			Amount:        o.TotalAmount,
			Currency:      o.Currency,
			Token:         in.CardToken,
			Description:   fmt.Sprintf("Order %s", o.OrderNumber),
			CustomerEmail: in.CustomerEmail,
		})
		if err != nil {
			return nil, s.settleFailure(ctx, txn, err)
		}
		txn.Reference = res.Reference
		rawStatus = res.RawStatus

	case MethodPSE:
		if in.BankCode == "" {
			return nil, ErrBankRequired
		}
		res, err := gw.ProcessPSEPayment(ctx, PSEPaymentInput{
			OrderNumber:    o.OrderNumber,
			Amount:         o.TotalAmount,
			Currency:       o.Currency,
			BankCode:       in.BankCode,
			CustomerEmail:  in.CustomerEmail,
			CustomerName:   in.CustomerName,
			DocumentType:   in.DocumentType,
			DocumentNumber: in.DocumentNumber,
			ResponseURL:    s.responseURL,
		})
		if err != nil {
			return nil, s.settleFailure(ctx, txn, err)
		}
		txn.Reference = res.Reference
		rawStatus = res.RawStatus
		redirectURL = res.RedirectURL
		txn.RedirectURL = redirectURL

	default:
		return nil, fmt.Errorf("unsupported payment method type %s", m.Type)
	}

	txn.RawStatus = rawStatus
	outcome := OutcomeFor(rawStatus)

	switch outcome {
	case order.StatusPaymentCompleted:
		txn.Status = TxnStatusCompleted
		applied, err := s.store.ApplyOutcome(ctx, txn, outcome)
		if err != nil {
			return nil, err
		}
		if applied {
			s.notifyCompleted(ctx, o.ID)
		}
	case order.StatusPaymentFailed:
		txn.Status = TxnStatusFailed
		txn.FailureReason = fmt.Sprintf("gateway reported %s", rawStatus)
		if _, err := s.store.ApplyOutcome(ctx, txn, outcome); err != nil {
			return nil, err
		}
	default:
		// No outcome yet. The order stays PENDING until the webhook lands.
		if err := s.store.SaveTransaction(ctx, txn); err != nil {
			return nil, err
		}
		outcome = o.Status
	}

	s.log.WithFields(logrus.Fields{
		"order_id":  o.ID,
		"provider":  txn.Provider,
		"reference": txn.Reference,
		"status":    txn.Status,
	}).Info("Payment attempt processed")

	return &PaymentResult{
		Transaction: txn,
		OrderStatus: outcome,
		RedirectURL: redirectURL,
	}, nil
}

// forgetWebhook releases a dedup claim after a processing failure
func (s *Service) forgetWebhook(ctx context.Context, provider, reference string) {
	if err := s.dedup.Forget(ctx, provider, reference); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"provider":  provider,
			"reference": reference,
		}).Error("Failed to release webhook dedup claim")
	}
}

// settleFailure records a failed gateway call. Declines settle the order as
// PAYMENT_FAILED; ambiguous failures record an unknown attempt and leave the
// order alone. The original error is returned either way.
func (s *Service) settleFailure(ctx context.Context, txn *Transaction, cause error) error {
	var gwErr *GatewayError
	if errors.As(cause, &gwErr) && gwErr.Ambiguous {
		txn.Status = TxnStatusUnknown
		txn.FailureReason = gwErr.Error()
		if err := s.store.SaveTransaction(ctx, txn); err != nil {
			s.log.WithError(err).Error("Failed to record ambiguous payment attempt")
		}
		return cause
	}

	txn.Status = TxnStatusFailed
	txn.FailureReason = cause.Error()
	if _, err := s.store.ApplyOutcome(ctx, txn, order.StatusPaymentFailed); err != nil {
		s.log.WithError(err).Error("Failed to record declined payment attempt")
	}
	return cause
}

// HandleWebhook reconciles a gateway notification. The payload is
// authenticated first; anything unverifiable is rejected before any lookup.
// Duplicates are dropped, late notifications that no longer fit the order's
// transition table are recorded but change nothing.
func (s *Service) HandleWebhook(ctx context.Context, provider string, payload []byte, signature string) error {
	gw, err := s.router.GatewayByProvider(provider)
	if err != nil {
		return ErrWebhookRejected
	}

	evt, err := gw.ParseWebhook(payload, signature)
	if err != nil {
		s.log.WithError(err).WithField("provider", provider).Warn("Webhook rejected")
		return ErrWebhookRejected
	}

	fresh, err := s.dedup.MarkProcessed(ctx, provider, evt.Reference)
	if err != nil {
		return err
	}
	if !fresh {
		s.log.WithFields(logrus.Fields{
			"provider":  provider,
			"reference": evt.Reference,
		}).Info("Duplicate webhook dropped")
		return nil
	}

	// Every failure from here on releases the dedup claim. The gateway will
	// retry on our error response, and that retry has to get through.
	txn, err := s.store.TransactionByReference(ctx, evt.Reference)
	if err != nil {
		s.forgetWebhook(ctx, provider, evt.Reference)
		return err
	}

	txn.RawStatus = evt.RawStatus
	outcome := OutcomeFor(evt.RawStatus)
	if outcome == order.StatusPending {
		if err := s.store.SaveTransaction(ctx, txn); err != nil {
			s.forgetWebhook(ctx, provider, evt.Reference)
			return err
		}
		return nil
	}

	if outcome == order.StatusPaymentCompleted {
		txn.Status = TxnStatusCompleted
	} else {
		txn.Status = TxnStatusFailed
		txn.FailureReason = fmt.Sprintf("gateway reported %s", evt.RawStatus)
	}

	applied, err := s.store.ApplyOutcome(ctx, txn, outcome)
	if err != nil {
		s.forgetWebhook(ctx, provider, evt.Reference)
		return err
	}
	if applied && outcome == order.StatusPaymentCompleted {
		s.notifyCompleted(ctx, txn.OrderID)
	}

	s.log.WithFields(logrus.Fields{
		"provider":  provider,
		"reference": evt.Reference,
		"order_id":  txn.OrderID,
		"outcome":   outcome,
		"applied":   applied,
	}).Info("Webhook reconciled")

	return nil
}

// VerifyPayment re-reads a transaction from its gateway and reconciles the
// order, for flows where the webhook never arrived.
func (s *Service) VerifyPayment(ctx context.Context, userID uint, orderID uint, reference string) (*PaymentResult, error) {
	txn, err := s.store.TransactionByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	o, err := s.store.OrderForUser(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if txn.OrderID != o.ID {
		return nil, ErrUnknownTransaction
	}

	gw, err := s.router.GatewayByProvider(txn.Provider)
	if err != nil {
		return nil, err
	}
	res, err := gw.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, err
	}

	txn.RawStatus = res.RawStatus
	outcome := OutcomeFor(res.RawStatus)
	switch outcome {
	case order.StatusPending:
		if err := s.store.SaveTransaction(ctx, txn); err != nil {
			return nil, err
		}
		outcome = o.Status
	case order.StatusPaymentCompleted:
		txn.Status = TxnStatusCompleted
		applied, err := s.store.ApplyOutcome(ctx, txn, outcome)
		if err != nil {
			return nil, err
		}
		if applied {
			s.notifyCompleted(ctx, o.ID)
		}
	default:
		txn.Status = TxnStatusFailed
		txn.FailureReason = fmt.Sprintf("gateway reported %s", res.RawStatus)
		if _, err := s.store.ApplyOutcome(ctx, txn, outcome); err != nil {
			return nil, err
		}
	}

	return &PaymentResult{Transaction: txn, OrderStatus: outcome}, nil
}
