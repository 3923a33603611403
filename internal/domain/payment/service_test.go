package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/domain/order"
)

func TestOutcomeFor(t *testing.T) {
	tests := []struct {
		raw     string
		outcome order.Status
	}{
		{"succeeded", order.StatusPaymentCompleted},
		{"approved", order.StatusPaymentCompleted},
		{"Aceptada", order.StatusPaymentCompleted},
		{"pending", order.StatusPending},
		{"in_progress", order.StatusPending},
		{"Pendiente", order.StatusPending},
		{"failed", order.StatusPaymentFailed},
		{"rechazada", order.StatusPaymentFailed},
		{"declined", order.StatusPaymentFailed},
		{"", order.StatusPaymentFailed},
		{"anything_else", order.StatusPaymentFailed},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.outcome, OutcomeFor(tt.raw))
		})
	}
}

// fakeGateway lets each test script the gateway's behavior
type fakeGateway struct {
	provider string
	methods  []MethodType

	chargeFn func(ChargeInput) (*ChargeResult, error)
	pseFn    func(PSEPaymentInput) (*PSEPaymentResult, error)
	parseFn  func(payload []byte, signature string) (*WebhookEvent, error)
}

func (g *fakeGateway) Info() GatewayInfo { return GatewayInfo{Provider: g.provider, Mode: "test"} }

func (g *fakeGateway) Supports(m MethodType) bool {
	for _, supported := range g.methods {
		if supported == m {
			return true
		}
	}
	return false
}

func (g *fakeGateway) CreateCardToken(_ context.Context, in CardTokenInput) (*CardToken, error) {
	return &CardToken{Token: "tok_test", Last4: in.Number[len(in.Number)-4:]}, nil
}

func (g *fakeGateway) ChargeCard(_ context.Context, in ChargeInput) (*ChargeResult, error) {
	return g.chargeFn(in)
}

func (g *fakeGateway) ProcessPSEPayment(_ context.Context, in PSEPaymentInput) (*PSEPaymentResult, error) {
	return g.pseFn(in)
}

func (g *fakeGateway) Banks(context.Context) ([]Bank, error) {
	return []Bank{{Code: "1007", Name: "Bancolombia"}}, nil
}

func (g *fakeGateway) VerifyTransaction(context.Context, string) (*VerifyResult, error) {
	return nil, errors.New("not scripted")
}

func (g *fakeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	return g.parseFn(payload, signature)
}

// fakePayStore records settlement calls
type fakePayStore struct {
	orders  map[uint]*order.Order
	methods map[uint]*PaymentMethodConfig
	txns    map[string]*Transaction

	saved    []*Transaction
	applied  []appliedOutcome
	canApply bool
}

type appliedOutcome struct {
	txn *Transaction
	to  order.Status
}

func newFakePayStore() *fakePayStore {
	return &fakePayStore{
		orders:   make(map[uint]*order.Order),
		methods:  make(map[uint]*PaymentMethodConfig),
		txns:     make(map[string]*Transaction),
		canApply: true,
	}
}

func (f *fakePayStore) OrderForUser(_ context.Context, userID, orderID uint) (*order.Order, error) {
	o, ok := f.orders[orderID]
	if !ok || o.UserID != userID {
		return nil, order.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakePayStore) MethodByID(_ context.Context, id uint) (*PaymentMethodConfig, error) {
	m, ok := f.methods[id]
	if !ok {
		return nil, ErrMethodDisabled
	}
	return m, nil
}

func (f *fakePayStore) EnabledMethods(context.Context) ([]PaymentMethodConfig, error) {
	var out []PaymentMethodConfig
	for _, m := range f.methods {
		if m.Enabled {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakePayStore) SaveTransaction(_ context.Context, txn *Transaction) error {
	f.saved = append(f.saved, txn)
	if txn.Reference != "" {
		f.txns[txn.Reference] = txn
	}
	return nil
}

func (f *fakePayStore) TransactionByReference(_ context.Context, reference string) (*Transaction, error) {
	txn, ok := f.txns[reference]
	if !ok {
		return nil, ErrUnknownTransaction
	}
	return txn, nil
}

func (f *fakePayStore) ApplyOutcome(_ context.Context, txn *Transaction, to order.Status) (bool, error) {
	f.applied = append(f.applied, appliedOutcome{txn: txn, to: to})
	if txn.Reference != "" {
		f.txns[txn.Reference] = txn
	}
	if !f.canApply {
		return false, nil
	}
	if o, ok := f.orders[txn.OrderID]; ok {
		o.Status = to
	}
	return true, nil
}

type fakeDedup struct{ seen map[string]bool }

func (f *fakeDedup) MarkProcessed(_ context.Context, provider, reference string) (bool, error) {
	key := provider + ":" + reference
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeDedup) Forget(_ context.Context, provider, reference string) error {
	delete(f.seen, provider+":"+reference)
	return nil
}

// fakeAttemptLock is an in-memory per-order lock
type fakeAttemptLock struct {
	mu   sync.Mutex
	held map[uint]bool
}

func newFakeAttemptLock() *fakeAttemptLock {
	return &fakeAttemptLock{held: make(map[uint]bool)}
}

func (l *fakeAttemptLock) Acquire(_ context.Context, orderID uint) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[orderID] {
		return false, nil
	}
	l.held[orderID] = true
	return true, nil
}

func (l *fakeAttemptLock) Release(_ context.Context, orderID uint) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, orderID)
	return nil
}

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func paymentFixture(t *testing.T, card, pse *fakeGateway) (*Service, *fakePayStore) {
	t.Helper()
	store := newFakePayStore()
	store.orders[1] = &order.Order{
		ID: 1, OrderNumber: "ORD-20250314-00001", UserID: 7,
		CartID: 42, Status: order.StatusPending,
		PaymentMethodID: 1, TotalAmount: 5000000, Currency: "COP",
	}
	store.methods[1] = &PaymentMethodConfig{
		ID: 1, Type: MethodCreditCard, Enabled: true,
		MinAmount: 100000, MaxAmount: 2000000000,
		Gateway: GatewayConfig{Provider: "stripe", IsActive: true},
	}
	store.methods[2] = &PaymentMethodConfig{
		ID: 2, Type: MethodPSE, Enabled: true,
		MinAmount: 160000, MaxAmount: 2000000000,
		Gateway: GatewayConfig{Provider: "epayco", IsActive: true},
	}

	router := NewRouter()
	if card != nil {
		require.NoError(t, router.Register(MethodCreditCard, card))
	}
	if pse != nil {
		require.NoError(t, router.Register(MethodPSE, pse))
	}

	svc := NewService(store, router, &fakeDedup{seen: map[string]bool{}}, newFakeAttemptLock(), "https://shop.example/pse/response", quietLog())
	return svc, store
}

func TestRouterRejectsUnsupportedBinding(t *testing.T) {
	router := NewRouter()
	pseOnly := &fakeGateway{provider: "epayco", methods: []MethodType{MethodPSE}}

	err := router.Register(MethodCreditCard, pseOnly)
	var unsupported *UnsupportedCapabilityError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "epayco", unsupported.Provider)
}

func TestProcessPaymentCardApproved(t *testing.T) {
	card := &fakeGateway{
		provider: "stripe",
		methods:  []MethodType{MethodCreditCard},
		chargeFn: func(in ChargeInput) (*ChargeResult, error) {
			return &ChargeResult{Reference: "ch_123", RawStatus: "succeeded"}, nil
		},
	}
	svc, store := paymentFixture(t, card, nil)

	res, err := svc.ProcessPayment(context.Background(), 7, ProcessPaymentInput{
		OrderID: 1, CardToken: "tok_visa",
	})
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaymentCompleted, res.OrderStatus)
	assert.Equal(t, TxnStatusCompleted, res.Transaction.Status)

	require.Len(t, store.applied, 1)
	assert.Equal(t, order.StatusPaymentCompleted, store.applied[0].to)
	assert.Equal(t, order.StatusPaymentCompleted, store.orders[1].Status)
}

func TestProcessPaymentCardDeclined(t *testing.T) {
	card := &fakeGateway{
		provider: "stripe",
		methods:  []MethodType{MethodCreditCard},
		chargeFn: func(ChargeInput) (*ChargeResult, error) {
			return nil, &GatewayError{Provider: "stripe", Err: errors.New("card declined")}
		},
	}
	svc, store := paymentFixture(t, card, nil)

	_, err := svc.ProcessPayment(context.Background(), 7, ProcessPaymentInput{
		OrderID: 1, CardToken: "tok_visa",
	})
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.False(t, gwErr.Ambiguous)

	require.Len(t, store.applied, 1)
	assert.Equal(t, order.StatusPaymentFailed, store.applied[0].to)
	assert.Equal(t, order.StatusPaymentFailed, store.orders[1].Status)
}

func TestProcessPaymentAmbiguousLeavesOrderPending(t *testing.T) {
	card := &fakeGateway{
		provider: "stripe",
		methods:  []MethodType{MethodCreditCard},
		chargeFn: func(ChargeInput) (*ChargeResult, error) {
			return nil, &GatewayError{Provider: "stripe", Ambiguous: true, Err: errors.New("timeout")}
		},
	}
	svc, store := paymentFixture(t, card, nil)

	_, err := svc.ProcessPayment(context.Background(), 7, ProcessPaymentInput{
		OrderID: 1, CardToken: "tok_visa",
	})
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.True(t, gwErr.Ambiguous)

	// The attempt is recorded as unknown but the order is not settled
	assert.Empty(t, store.applied)
	require.Len(t, store.saved, 1)
	assert.Equal(t, TxnStatusUnknown, store.saved[0].Status)
	assert.Equal(t, order.StatusPending, store.orders[1].Status)
}

func TestProcessPaymentPSEPendingRedirect(t *testing.T) {
	pse := &fakeGateway{
		provider: "epayco",
		methods:  []MethodType{MethodPSE},
		pseFn: func(in PSEPaymentInput) (*PSEPaymentResult, error) {
			return &PSEPaymentResult{
				Reference:   "890123",
				RawStatus:   "pendiente",
				RedirectURL: "https://bank.example/authorize/890123",
			}, nil
		},
	}
	svc, store := paymentFixture(t, nil, pse)
	store.orders[1].PaymentMethodID = 2

	res, err := svc.ProcessPayment(context.Background(), 7, ProcessPaymentInput{
		OrderID: 1, BankCode: "1007",
		DocumentType: "CC", DocumentNumber: "1012345678",
		CustomerEmail: "ana@example.com", CustomerName: "Ana Gomez",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://bank.example/authorize/890123", res.RedirectURL)

	// No outcome yet: the order stays PENDING until the webhook settles it
	assert.Equal(t, order.StatusPending, res.OrderStatus)
	assert.Empty(t, store.applied)
	require.Len(t, store.saved, 1)
	assert.Equal(t, TxnStatusPending, store.saved[0].Status)
}

func TestProcessPaymentGates(t *testing.T) {
	card := &fakeGateway{provider: "stripe", methods: []MethodType{MethodCreditCard}}
	svc, store := paymentFixture(t, card, nil)
	ctx := context.Background()

	t.Run("unknown order", func(t *testing.T) {
		_, err := svc.ProcessPayment(ctx, 7, ProcessPaymentInput{OrderID: 99, CardToken: "tok"})
		assert.ErrorIs(t, err, order.ErrOrderNotFound)
	})

	t.Run("foreign order", func(t *testing.T) {
		_, err := svc.ProcessPayment(ctx, 8, ProcessPaymentInput{OrderID: 1, CardToken: "tok"})
		assert.ErrorIs(t, err, order.ErrOrderNotFound)
	})

	t.Run("terminal order", func(t *testing.T) {
		store.orders[1].Status = order.StatusPaymentCompleted
		defer func() { store.orders[1].Status = order.StatusPending }()

		_, err := svc.ProcessPayment(ctx, 7, ProcessPaymentInput{OrderID: 1, CardToken: "tok"})
		assert.ErrorIs(t, err, ErrOrderNotPayable)
	})

	t.Run("failed order can retry", func(t *testing.T) {
		card.chargeFn = func(ChargeInput) (*ChargeResult, error) {
			return &ChargeResult{Reference: "ch_retry", RawStatus: "succeeded"}, nil
		}
		store.orders[1].Status = order.StatusPaymentFailed
		defer func() { store.orders[1].Status = order.StatusPending }()

		res, err := svc.ProcessPayment(ctx, 7, ProcessPaymentInput{OrderID: 1, CardToken: "tok"})
		require.NoError(t, err)
		assert.Equal(t, order.StatusPaymentCompleted, res.OrderStatus)
	})

	t.Run("amount below method minimum", func(t *testing.T) {
		store.orders[1].TotalAmount = 50000
		defer func() { store.orders[1].TotalAmount = 5000000 }()

		_, err := svc.ProcessPayment(ctx, 7, ProcessPaymentInput{OrderID: 1, CardToken: "tok"})
		var rangeErr *AmountOutOfRangeError
		assert.ErrorAs(t, err, &rangeErr)
	})

	t.Run("missing card token", func(t *testing.T) {
		_, err := svc.ProcessPayment(ctx, 7, ProcessPaymentInput{OrderID: 1})
		assert.ErrorIs(t, err, ErrCardTokenRequired)
	})

	t.Run("disabled method", func(t *testing.T) {
		store.methods[1].Enabled = false
		defer func() { store.methods[1].Enabled = true }()

		_, err := svc.ProcessPayment(ctx, 7, ProcessPaymentInput{OrderID: 1, CardToken: "tok"})
		assert.ErrorIs(t, err, ErrMethodDisabled)
	})
}

func TestHandleWebhook(t *testing.T) {
	newPSE := func() *fakeGateway {
		return &fakeGateway{
			provider: "epayco",
			methods:  []MethodType{MethodPSE},
			parseFn: func(payload []byte, signature string) (*WebhookEvent, error) {
				if signature != "valid" {
					return nil, fmt.Errorf("webhook signature verification failed")
				}
				return &WebhookEvent{Reference: "890123", RawStatus: "aceptada"}, nil
			},
		}
	}
	ctx := context.Background()

	t.Run("rejects bad signature before any lookup", func(t *testing.T) {
		svc, store := paymentFixture(t, nil, newPSE())
		err := svc.HandleWebhook(ctx, "epayco", []byte(`{}`), "forged")
		assert.ErrorIs(t, err, ErrWebhookRejected)
		assert.Empty(t, store.applied)
	})

	t.Run("rejects unknown provider", func(t *testing.T) {
		svc, _ := paymentFixture(t, nil, newPSE())
		err := svc.HandleWebhook(ctx, "nobody", []byte(`{}`), "valid")
		assert.ErrorIs(t, err, ErrWebhookRejected)
	})

	t.Run("settles the order on first delivery", func(t *testing.T) {
		svc, store := paymentFixture(t, nil, newPSE())
		store.txns["890123"] = &Transaction{OrderID: 1, Reference: "890123", Provider: "epayco", Status: TxnStatusPending}

		require.NoError(t, svc.HandleWebhook(ctx, "epayco", []byte(`{}`), "valid"))
		require.Len(t, store.applied, 1)
		assert.Equal(t, order.StatusPaymentCompleted, store.applied[0].to)
	})

	t.Run("drops duplicates after the first delivery", func(t *testing.T) {
		svc, store := paymentFixture(t, nil, newPSE())
		store.txns["890123"] = &Transaction{OrderID: 1, Reference: "890123", Provider: "epayco", Status: TxnStatusPending}

		require.NoError(t, svc.HandleWebhook(ctx, "epayco", []byte(`{}`), "valid"))
		require.NoError(t, svc.HandleWebhook(ctx, "epayco", []byte(`{}`), "valid"))
		assert.Len(t, store.applied, 1)
	})

	t.Run("unknown reference is an error", func(t *testing.T) {
		svc, _ := paymentFixture(t, nil, newPSE())
		err := svc.HandleWebhook(ctx, "epayco", []byte(`{}`), "valid")
		assert.ErrorIs(t, err, ErrUnknownTransaction)
	})

	t.Run("failed processing leaves the retry deliverable", func(t *testing.T) {
		svc, store := paymentFixture(t, nil, newPSE())

		// First delivery races ahead of the transaction commit and fails
		err := svc.HandleWebhook(ctx, "epayco", []byte(`{}`), "valid")
		require.ErrorIs(t, err, ErrUnknownTransaction)

		// The gateway retries once the transaction exists; the failed
		// delivery must not have burned the dedup claim
		store.txns["890123"] = &Transaction{OrderID: 1, Reference: "890123", Provider: "epayco", Status: TxnStatusPending}
		require.NoError(t, svc.HandleWebhook(ctx, "epayco", []byte(`{}`), "valid"))
		require.Len(t, store.applied, 1)
		assert.Equal(t, order.StatusPaymentCompleted, store.applied[0].to)
	})
}

func TestProcessPaymentSerializesConcurrentAttempts(t *testing.T) {
	var charges int32
	entered := make(chan struct{})
	release := make(chan struct{})
	card := &fakeGateway{
		provider: "stripe",
		methods:  []MethodType{MethodCreditCard},
		chargeFn: func(ChargeInput) (*ChargeResult, error) {
			atomic.AddInt32(&charges, 1)
			close(entered)
			<-release
			return &ChargeResult{Reference: "ch_once", RawStatus: "succeeded"}, nil
		},
	}
	svc, store := paymentFixture(t, card, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.ProcessPayment(context.Background(), 7, ProcessPaymentInput{OrderID: 1, CardToken: "tok"})
		done <- err
	}()
	<-entered

	// A second attempt while the first is mid-charge is turned away
	// before it can reach the gateway
	_, err := svc.ProcessPayment(context.Background(), 7, ProcessPaymentInput{OrderID: 1, CardToken: "tok"})
	assert.ErrorIs(t, err, ErrPaymentInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), atomic.LoadInt32(&charges))
	assert.Equal(t, order.StatusPaymentCompleted, store.orders[1].Status)
}

func TestMethodEnabled(t *testing.T) {
	svc, store := paymentFixture(t, nil, nil)
	ctx := context.Background()

	enabled, err := svc.MethodEnabled(ctx, 1)
	require.NoError(t, err)
	assert.True(t, enabled)

	enabled, err = svc.MethodEnabled(ctx, 99)
	require.NoError(t, err)
	assert.False(t, enabled)

	store.methods[1].Gateway.IsActive = false
	enabled, err = svc.MethodEnabled(ctx, 1)
	require.NoError(t, err)
	assert.False(t, enabled)
}
