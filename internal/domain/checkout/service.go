// internal/domain/checkout/service.go
package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/pkg/retry"
)

// orderLockTTL bounds how long a crashed createOrder can block retries
const orderLockTTL = 15 * time.Second

// Order creation retries absorb transient database failures such as lock
// waits. Domain rejections are final and never retried.
const (
	orderCreateAttempts   = 3
	orderCreateRetryDelay = 100 * time.Millisecond
)

func retryableOrderError(err error) bool {
	var stockErr *cart.InsufficientStockError
	switch {
	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, cart.ErrCartNotFound),
		errors.As(err, &stockErr):
		return false
	}
	return true
}

// CartReader is the slice of the cart repository checkout needs
type CartReader interface {
	ActiveCartByUser(ctx context.Context, userID uint) (*cart.Cart, error)
	CartByID(ctx context.Context, id uint) (*cart.Cart, error)
}

// AddressBook answers whether an address belongs to the user
type AddressBook interface {
	UserOwnsAddress(ctx context.Context, userID, addressID uint) (bool, error)
}

// AgencyDirectory answers whether a pickup agency is open for selection
type AgencyDirectory interface {
	AgencyActive(ctx context.Context, agencyID uint) (bool, error)
}

// PaymentMethods answers whether a configured payment method is enabled
type PaymentMethods interface {
	MethodEnabled(ctx context.Context, methodID uint) (bool, error)
}

// OrderCreator materializes an order from the checkout working set
type OrderCreator interface {
	CreateFromCart(ctx context.Context, in order.CreateFromCartInput) (*order.Order, error)
}

// Service drives the checkout session state machine
type Service struct {
	store     Store
	carts     CartReader
	addresses AddressBook
	agencies  AgencyDirectory
	methods   PaymentMethods
	orders    OrderCreator
	log       *logrus.Logger

	sessionTTL  time.Duration
	shippingFee int64
	currency    string

	now   func() time.Time
	newID func() string
}

// NewService creates a new checkout service
func NewService(
	store Store,
	carts CartReader,
	addresses AddressBook,
	agencies AgencyDirectory,
	methods PaymentMethods,
	orders OrderCreator,
	sessionTTL time.Duration,
	shippingFee int64,
	currency string,
	log *logrus.Logger,
) *Service {
	return &Service{
		store:       store,
		carts:       carts,
		addresses:   addresses,
		agencies:    agencies,
		methods:     methods,
		orders:      orders,
		log:         log,
		sessionTTL:  sessionTTL,
		shippingFee: shippingFee,
		currency:    currency,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Initiate starts a checkout session over the user's active cart
func (s *Service) Initiate(ctx context.Context, userID uint) (*Session, error) {
	c, err := s.carts.ActiveCartByUser(ctx, userID)
	if errors.Is(err, cart.ErrCartNotFound) {
		return nil, ErrNoActiveCart
	}
	if err != nil {
		return nil, err
	}
	if len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	now := s.now().UTC()
	sess := &Session{
		ID:        s.newID(),
		UserID:    userID,
		CartID:    c.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.store.Save(ctx, sess, s.sessionTTL); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"checkout_id": sess.ID,
		"user_id":     userID,
		"cart_id":     c.ID,
	}).Info("Checkout session initiated")

	return sess, nil
}

// Status returns the current session, expiry checked first
func (s *Service) Status(ctx context.Context, userID uint, sessionID string) (*Session, error) {
	return s.load(ctx, userID, sessionID)
}

// SetDeliveryInput selects how the order will be fulfilled
type SetDeliveryInput struct {
	Type      order.DeliveryType `json:"delivery_type" binding:"required"`
	AddressID *uint              `json:"address_id,omitempty"`
	AgencyID  *uint              `json:"agency_id,omitempty"`
}

// SetDelivery records the delivery step. Delivery may be revised any number
// of times before the order exists; a later payment selection survives it.
func (s *Service) SetDelivery(ctx context.Context, userID uint, sessionID string, in SetDeliveryInput) (*Session, error) {
	sess, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.OrderID != 0 {
		return nil, &OrderAlreadyCreatedError{OrderID: sess.OrderID}
	}
	if !in.Type.Valid() {
		return nil, &InvalidDeliveryTargetError{Reason: "unknown delivery type"}
	}

	switch in.Type {
	case order.DeliveryShipping:
		if in.AddressID == nil {
			return nil, &InvalidDeliveryTargetError{Reason: "shipping requires an address"}
		}
		owns, err := s.addresses.UserOwnsAddress(ctx, userID, *in.AddressID)
		if err != nil {
			return nil, err
		}
		if !owns {
			return nil, &InvalidDeliveryTargetError{Reason: "address does not belong to user"}
		}
		sess.DeliveryType = order.DeliveryShipping
		sess.DeliveryAddressID = in.AddressID
		sess.PickupAgencyID = nil
		sess.ShippingFee = s.shippingFee

	case order.DeliveryPickup:
		if in.AgencyID == nil {
			return nil, &InvalidDeliveryTargetError{Reason: "pickup requires an agency"}
		}
		active, err := s.agencies.AgencyActive(ctx, *in.AgencyID)
		if err != nil {
			return nil, err
		}
		if !active {
			return nil, &InvalidDeliveryTargetError{Reason: "agency not available for pickup"}
		}
		sess.DeliveryType = order.DeliveryPickup
		sess.PickupAgencyID = in.AgencyID
		sess.DeliveryAddressID = nil
		sess.ShippingFee = 0
	}

	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// SetPaymentMethod records the payment step. Like delivery it can be set in
// any order; createOrder is the single place that demands both steps.
func (s *Service) SetPaymentMethod(ctx context.Context, userID uint, sessionID string, methodID uint) (*Session, error) {
	sess, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.OrderID != 0 {
		return nil, &OrderAlreadyCreatedError{OrderID: sess.OrderID}
	}

	enabled, err := s.methods.MethodEnabled(ctx, methodID)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, ErrPaymentMethodUnavailable
	}

	sess.PaymentMethodID = methodID
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// CreateOrder materializes the order exactly once per session. A second call
// reports the existing order; concurrent first calls serialize on a store
// lock so only one of them reaches the order service.
func (s *Service) CreateOrder(ctx context.Context, userID uint, sessionID string) (*order.Order, error) {
	sess, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.OrderID != 0 {
		return nil, &OrderAlreadyCreatedError{OrderID: sess.OrderID}
	}
	if !sess.ReadyForOrder() {
		return nil, &IncompleteCheckoutError{Missing: sess.MissingSteps()}
	}

	acquired, err := s.store.AcquireOrderLock(ctx, sessionID, orderLockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrOrderCreationInProgress
	}
	defer func() {
		if err := s.store.ReleaseOrderLock(ctx, sessionID); err != nil {
			s.log.WithError(err).Warn("Failed to release checkout order lock")
		}
	}()

	// Re-read under the lock: a racing call may have won
	sess, err = s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.OrderID != 0 {
		return nil, &OrderAlreadyCreatedError{OrderID: sess.OrderID}
	}

	var o *order.Order
	err = retry.Do(ctx, retry.Options{
		Attempts:  orderCreateAttempts,
		Delay:     orderCreateRetryDelay,
		Retryable: retryableOrderError,
	}, func() error {
		var createErr error
		o, createErr = s.orders.CreateFromCart(ctx, order.CreateFromCartInput{
			CheckoutSessionID: sess.ID,
			CartID:            sess.CartID,
			UserID:            sess.UserID,
			DeliveryType:      sess.DeliveryType,
			DeliveryAddressID: sess.DeliveryAddressID,
			PickupAgencyID:    sess.PickupAgencyID,
			PaymentMethodID:   sess.PaymentMethodID,
			ShippingFee:       sess.ShippingFee,
			Currency:          s.currency,
		})
		return createErr
	})
	if errors.Is(err, order.ErrEmptyCart) {
		return nil, ErrEmptyCart
	}
	if err != nil {
		return nil, err
	}

	sess.OrderID = o.ID
	if err := s.save(ctx, sess); err != nil {
		// The order row carries the session id, so even without this pointer
		// a retried createOrder finds the existing order instead of minting
		// a second one.
		s.log.WithError(err).WithFields(logrus.Fields{
			"checkout_id": sess.ID,
			"order_id":    o.ID,
		}).Error("Failed to record order on checkout session")
	}

	s.log.WithFields(logrus.Fields{
		"checkout_id":  sess.ID,
		"order_id":     o.ID,
		"order_number": o.OrderNumber,
	}).Info("Order created from checkout session")

	return o, nil
}

// load fetches and validates a session. Expiry is checked before anything
// else so every operation fails the same way on a stale session.
func (s *Service) load(ctx context.Context, userID uint, sessionID string) (*Session, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.UserID != userID {
		return nil, ErrSessionNotFound
	}
	if sess.Expired(s.now().UTC()) {
		return nil, ErrSessionExpired
	}
	return sess, nil
}

// save persists the session for whatever lifetime it has left
func (s *Service) save(ctx context.Context, sess *Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return ErrSessionExpired
	}
	return s.store.Save(ctx, sess, ttl)
}
