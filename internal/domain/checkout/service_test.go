package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/order"
)

type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	locked   map[string]bool

	// saveErr makes Save fail until cleared
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]Session), locked: make(map[string]bool)}
}

func (f *fakeStore) Get(_ context.Context, id string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	copied := s
	return &copied, nil
}

func (f *fakeStore) Save(_ context.Context, s *Session, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.sessions[s.ID] = *s
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

func (f *fakeStore) AcquireOrderLock(_ context.Context, id string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locked[id] {
		return false, nil
	}
	f.locked[id] = true
	return true, nil
}

func (f *fakeStore) ReleaseOrderLock(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.locked, id)
	return nil
}

type fakeCarts struct {
	byUser map[uint]*cart.Cart
}

func (f *fakeCarts) ActiveCartByUser(_ context.Context, userID uint) (*cart.Cart, error) {
	c, ok := f.byUser[userID]
	if !ok {
		return nil, cart.ErrCartNotFound
	}
	return c, nil
}

func (f *fakeCarts) CartByID(_ context.Context, id uint) (*cart.Cart, error) {
	for _, c := range f.byUser {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, cart.ErrCartNotFound
}

type fakeAddresses struct{ owned map[uint]uint } // addressID -> userID

func (f *fakeAddresses) UserOwnsAddress(_ context.Context, userID, addressID uint) (bool, error) {
	return f.owned[addressID] == userID, nil
}

type fakeAgencies struct{ active map[uint]bool }

func (f *fakeAgencies) AgencyActive(_ context.Context, agencyID uint) (bool, error) {
	return f.active[agencyID], nil
}

type fakeMethods struct{ enabled map[uint]bool }

func (f *fakeMethods) MethodEnabled(_ context.Context, methodID uint) (bool, error) {
	return f.enabled[methodID], nil
}

type fakeOrders struct {
	mu        sync.Mutex
	nextID    uint
	calls     int
	last      order.CreateFromCartInput
	bySession map[string]*order.Order

	// failuresLeft makes the next N calls fail with a transient error
	failuresLeft int
}

func (f *fakeOrders) CreateFromCart(_ context.Context, in order.CreateFromCartInput) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = in
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return nil, errors.New("deadlock detected")
	}
	if existing, ok := f.bySession[in.CheckoutSessionID]; ok {
		return existing, nil
	}
	f.nextID++
	o := &order.Order{
		ID:                f.nextID,
		OrderNumber:       order.GenerateOrderNumber(f.nextID, time.Now().UTC()),
		CheckoutSessionID: in.CheckoutSessionID,
		UserID:            in.UserID,
		CartID:            in.CartID,
		Status:            order.StatusPending,
	}
	f.bySession[in.CheckoutSessionID] = o
	return o, nil
}

type fixture struct {
	svc    *Service
	store  *fakeStore
	orders *fakeOrders
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	store := newFakeStore()
	orders := &fakeOrders{bySession: make(map[string]*order.Order)}
	carts := &fakeCarts{byUser: map[uint]*cart.Cart{
		7: {ID: 42, Status: cart.CartStatusActive, Items: []cart.CartItem{
			{ProductID: 1, Quantity: 2, Price: 5000},
		}},
		8: {ID: 43, Status: cart.CartStatusActive},
	}}
	svc := NewService(
		store,
		carts,
		&fakeAddresses{owned: map[uint]uint{10: 7}},
		&fakeAgencies{active: map[uint]bool{20: true, 21: false}},
		&fakeMethods{enabled: map[uint]bool{1: true, 2: false}},
		orders,
		30*time.Minute,
		1200000,
		"COP",
		log,
	)
	return &fixture{svc: svc, store: store, orders: orders}
}

func (fx *fixture) initiated(t *testing.T) *Session {
	t.Helper()
	sess, err := fx.svc.Initiate(context.Background(), 7)
	require.NoError(t, err)
	return sess
}

func ptr(v uint) *uint { return &v }

func TestInitiate(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	sess, err := fx.svc.Initiate(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, StateInitiated, sess.State())
	assert.Equal(t, uint(42), sess.CartID)
	assert.NotEmpty(t, sess.ID)

	_, err = fx.svc.Initiate(ctx, 8)
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = fx.svc.Initiate(ctx, 99)
	assert.ErrorIs(t, err, ErrNoActiveCart)
}

func TestStepOrdering(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sess := fx.initiated(t)

	_, err := fx.svc.CreateOrder(ctx, 7, sess.ID)
	var incomplete *IncompleteCheckoutError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []string{"delivery", "payment_method"}, incomplete.Missing)

	// Payment can be recorded before delivery; only createOrder demands both
	updated, err := fx.svc.SetPaymentMethod(ctx, 7, sess.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, StatePaymentSet, updated.State())

	_, err = fx.svc.CreateOrder(ctx, 7, sess.ID)
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []string{"delivery"}, incomplete.Missing)

	_, err = fx.svc.SetDelivery(ctx, 7, sess.ID, SetDeliveryInput{
		Type: order.DeliveryShipping, AddressID: ptr(10),
	})
	require.NoError(t, err)

	o, err := fx.svc.CreateOrder(ctx, 7, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(1), fx.orders.last.PaymentMethodID)
	assert.NotZero(t, o.ID)
}

func TestSetDelivery(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	t.Run("shipping requires owned address", func(t *testing.T) {
		sess := fx.initiated(t)

		_, err := fx.svc.SetDelivery(ctx, 7, sess.ID, SetDeliveryInput{Type: order.DeliveryShipping})
		var invalid *InvalidDeliveryTargetError
		assert.ErrorAs(t, err, &invalid)

		_, err = fx.svc.SetDelivery(ctx, 7, sess.ID, SetDeliveryInput{
			Type: order.DeliveryShipping, AddressID: ptr(999),
		})
		assert.ErrorAs(t, err, &invalid)

		updated, err := fx.svc.SetDelivery(ctx, 7, sess.ID, SetDeliveryInput{
			Type: order.DeliveryShipping, AddressID: ptr(10),
		})
		require.NoError(t, err)
		assert.Equal(t, StateDeliverySet, updated.State())
		assert.Equal(t, int64(1200000), updated.ShippingFee)
	})

	t.Run("pickup needs an active agency and has no shipping fee", func(t *testing.T) {
		sess := fx.initiated(t)

		_, err := fx.svc.SetDelivery(ctx, 7, sess.ID, SetDeliveryInput{
			Type: order.DeliveryPickup, AgencyID: ptr(21),
		})
		var invalid *InvalidDeliveryTargetError
		assert.ErrorAs(t, err, &invalid)

		updated, err := fx.svc.SetDelivery(ctx, 7, sess.ID, SetDeliveryInput{
			Type: order.DeliveryPickup, AgencyID: ptr(20),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(0), updated.ShippingFee)
		assert.Nil(t, updated.DeliveryAddressID)
	})

	t.Run("revising delivery keeps payment selection", func(t *testing.T) {
		sess := fx.initiated(t)

		_, err := fx.svc.SetDelivery(ctx, 7, sess.ID, SetDeliveryInput{
			Type: order.DeliveryShipping, AddressID: ptr(10),
		})
		require.NoError(t, err)
		_, err = fx.svc.SetPaymentMethod(ctx, 7, sess.ID, 1)
		require.NoError(t, err)

		updated, err := fx.svc.SetDelivery(ctx, 7, sess.ID, SetDeliveryInput{
			Type: order.DeliveryPickup, AgencyID: ptr(20),
		})
		require.NoError(t, err)
		assert.Equal(t, uint(1), updated.PaymentMethodID)
		assert.Equal(t, StatePaymentSet, updated.State())
	})
}

func TestSetPaymentMethod(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sess := fx.initiated(t)

	_, err := fx.svc.SetDelivery(ctx, 7, sess.ID, SetDeliveryInput{
		Type: order.DeliveryShipping, AddressID: ptr(10),
	})
	require.NoError(t, err)

	_, err = fx.svc.SetPaymentMethod(ctx, 7, sess.ID, 2)
	assert.ErrorIs(t, err, ErrPaymentMethodUnavailable)

	updated, err := fx.svc.SetPaymentMethod(ctx, 7, sess.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, StatePaymentSet, updated.State())
}

func TestCreateOrderIdempotency(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sess := fx.initiated(t)

	_, err := fx.svc.SetDelivery(ctx, 7, sess.ID, SetDeliveryInput{
		Type: order.DeliveryShipping, AddressID: ptr(10),
	})
	require.NoError(t, err)
	_, err = fx.svc.SetPaymentMethod(ctx, 7, sess.ID, 1)
	require.NoError(t, err)

	o, err := fx.svc.CreateOrder(ctx, 7, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(42), o.CartID)
	assert.Equal(t, int64(1200000), fx.orders.last.ShippingFee)
	assert.Equal(t, sess.ID, fx.orders.last.CheckoutSessionID)

	status, err := fx.svc.Status(ctx, 7, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StateOrderCreated, status.State())
	assert.Equal(t, o.ID, status.OrderID)

	_, err = fx.svc.CreateOrder(ctx, 7, sess.ID)
	var already *OrderAlreadyCreatedError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, o.ID, already.OrderID)
	assert.Equal(t, 1, fx.orders.calls)
}

func TestCreateOrderLockContention(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sess := fx.initiated(t)

	_, err := fx.svc.SetDelivery(ctx, 7, sess.ID, SetDeliveryInput{
		Type: order.DeliveryPickup, AgencyID: ptr(20),
	})
	require.NoError(t, err)
	_, err = fx.svc.SetPaymentMethod(ctx, 7, sess.ID, 1)
	require.NoError(t, err)

	// Hold the lock as a concurrent call would
	held, err := fx.store.AcquireOrderLock(ctx, sess.ID, time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	_, err = fx.svc.CreateOrder(ctx, 7, sess.ID)
	assert.ErrorIs(t, err, ErrOrderCreationInProgress)
	assert.Equal(t, 0, fx.orders.calls)
}

func TestCreateOrderSurvivesSessionSaveFailure(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sess := fx.initiated(t)

	_, err := fx.svc.SetDelivery(ctx, 7, sess.ID, SetDeliveryInput{
		Type: order.DeliveryShipping, AddressID: ptr(10),
	})
	require.NoError(t, err)
	_, err = fx.svc.SetPaymentMethod(ctx, 7, sess.ID, 1)
	require.NoError(t, err)

	// The order commits but recording it on the session fails
	fx.store.saveErr = errors.New("redis down")
	first, err := fx.svc.CreateOrder(ctx, 7, sess.ID)
	require.NoError(t, err)
	fx.store.saveErr = nil

	status, err := fx.svc.Status(ctx, 7, sess.ID)
	require.NoError(t, err)
	require.Zero(t, status.OrderID, "the pointer write was lost")

	// A retried call must surface the same order, not a second one
	second, err := fx.svc.CreateOrder(ctx, 7, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, uint(1), fx.orders.nextID, "only one order materialized")

	status, err = fx.svc.Status(ctx, 7, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, status.OrderID)
}

func TestCreateOrderRetriesTransientFailures(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sess := fx.initiated(t)

	_, err := fx.svc.SetDelivery(ctx, 7, sess.ID, SetDeliveryInput{
		Type: order.DeliveryPickup, AgencyID: ptr(20),
	})
	require.NoError(t, err)
	_, err = fx.svc.SetPaymentMethod(ctx, 7, sess.ID, 1)
	require.NoError(t, err)

	fx.orders.failuresLeft = 1
	o, err := fx.svc.CreateOrder(ctx, 7, sess.ID)
	require.NoError(t, err)
	assert.NotZero(t, o.ID)
	assert.Equal(t, 2, fx.orders.calls)
}

func TestSessionExpiry(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sess := fx.initiated(t)

	fx.svc.now = func() time.Time { return time.Now().Add(31 * time.Minute) }

	_, err := fx.svc.Status(ctx, 7, sess.ID)
	assert.ErrorIs(t, err, ErrSessionExpired)

	_, err = fx.svc.SetDelivery(ctx, 7, sess.ID, SetDeliveryInput{
		Type: order.DeliveryPickup, AgencyID: ptr(20),
	})
	assert.ErrorIs(t, err, ErrSessionExpired)

	_, err = fx.svc.CreateOrder(ctx, 7, sess.ID)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestSessionIsolation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sess := fx.initiated(t)

	_, err := fx.svc.Status(ctx, 8, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = fx.svc.Status(ctx, 7, "no-such-session")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
