// internal/domain/cart/session.go
package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SessionManager resolves "the cart for this request" from an optional
// bearer identity and an optional session token, keeps the store-resident
// pointer consistent with the carts table, and reconciles guest carts into
// user carts on authentication.
type SessionManager struct {
	repo    Repository
	store   SessionStore
	cartTTL time.Duration
	log     *logrus.Logger
	now     func() time.Time
}

// NewSessionManager creates a new cart session manager
func NewSessionManager(repo Repository, store SessionStore, cartTTL time.Duration, log *logrus.Logger) *SessionManager {
	return &SessionManager{
		repo:    repo,
		store:   store,
		cartTTL: cartTTL,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ResolvedCart is the outcome of cart resolution for one request
type ResolvedCart struct {
	Cart    *Cart
	Token   string
	Created bool // A new cart row was minted for this request
	// Ephemeral marks an empty projection that was never persisted; returned
	// for read-only calls with no resolvable cart.
	Ephemeral bool
}

// ResolveCart finds the single cart for a request. Resolution order: the
// user's active cart, then the cart behind the session token, then a freshly
// minted cart (mutating calls only). Read-only calls with nothing to find get
// an empty projection and nothing is persisted.
func (m *SessionManager) ResolveCart(ctx context.Context, userID *uint, token string, forWrite bool) (*ResolvedCart, error) {
	// (a) user-owned active cart wins every tie
	if userID != nil {
		c, err := m.repo.ActiveCartByUser(ctx, *userID)
		if err != nil && !errors.Is(err, ErrCartNotFound) {
			return nil, err
		}
		if c != nil {
			m.healSession(ctx, c)
			return &ResolvedCart{Cart: c, Token: c.SessionToken}, nil
		}
	}

	// (b) cart behind the session token
	if token != "" {
		c, err := m.cartForToken(ctx, token)
		if err != nil {
			return nil, err
		}
		if c != nil && m.usable(c, userID) {
			return &ResolvedCart{Cart: c, Token: c.SessionToken}, nil
		}
	}

	// (c) mutating call with nothing found: mint a new cart
	if forWrite {
		c := &Cart{
			UserID:       userID,
			SessionToken: uuid.NewString(),
			Status:       CartStatusActive,
			ExpiresAt:    m.now().Add(m.cartTTL),
			Items:        []CartItem{},
		}
		if err := m.repo.Create(ctx, c); err != nil {
			return nil, err
		}
		m.healSession(ctx, c)
		return &ResolvedCart{Cart: c, Token: c.SessionToken, Created: true}, nil
	}

	// (d) read-only call: empty projection, nothing persisted
	return &ResolvedCart{
		Cart:      &Cart{Status: CartStatusActive, Items: []CartItem{}},
		Ephemeral: true,
	}, nil
}

// MergeGuestIntoUser reconciles the guest cart behind a session token into
// the user's cart on login or registration. When the user has no active
// cart the guest cart is re-owned in place, keeping its row and items.
// Otherwise guest items are merged line-by-line into the user's cart, the
// guest cart is abandoned and its token invalidated.
func (m *SessionManager) MergeGuestIntoUser(ctx context.Context, userID uint, guestToken string) (*Cart, error) {
	guest, err := m.cartForToken(ctx, guestToken)
	if err != nil {
		return nil, err
	}
	if guest == nil || (guest.UserID != nil && *guest.UserID != userID) {
		// Nothing to merge; return whatever the user already has
		c, err := m.repo.ActiveCartByUser(ctx, userID)
		if errors.Is(err, ErrCartNotFound) {
			return nil, nil
		}
		return c, err
	}
	if guest.UserID != nil && *guest.UserID == userID {
		return guest, nil
	}

	userCart, err := m.repo.ActiveCartByUser(ctx, userID)
	if err != nil && !errors.Is(err, ErrCartNotFound) {
		return nil, err
	}

	if userCart == nil {
		// Re-own: same cart row, same items, now with an owner
		if err := m.repo.ReOwn(ctx, guest.ID, userID); err != nil {
			return nil, err
		}
		guest.UserID = &userID
		m.healSession(ctx, guest)
		m.log.WithFields(logrus.Fields{
			"cart_id": guest.ID,
			"user_id": userID,
		}).Info("Guest cart re-owned by user")
		return guest, nil
	}

	// Line-by-line merge into the existing user cart. The session pointer is
	// only touched after the transaction commits so a half-merged cart is
	// never exposed.
	if err := m.repo.MergeInto(ctx, guest.ID, userCart.ID); err != nil {
		return nil, err
	}
	if err := m.InvalidateSession(ctx, guestToken); err != nil {
		m.log.WithError(err).Warn("Failed to invalidate merged guest session")
	}

	m.log.WithFields(logrus.Fields{
		"guest_cart_id": guest.ID,
		"user_cart_id":  userCart.ID,
		"user_id":       userID,
	}).Info("Guest cart merged into user cart")

	return m.repo.CartByID(ctx, userCart.ID)
}

// EnsureSessionConsistency recreates the store-resident pointer from the
// cart row. The store is a cache of a relation, not the source of truth.
func (m *SessionManager) EnsureSessionConsistency(ctx context.Context, c *Cart) error {
	sess := &Session{
		Token:     c.SessionToken,
		CartID:    c.ID,
		UserID:    c.UserID,
		CreatedAt: c.CreatedAt,
		ExpiresAt: c.ExpiresAt,
	}
	ttl := time.Until(c.ExpiresAt)
	if ttl <= 0 {
		ttl = m.cartTTL
	}
	return m.store.SaveSession(ctx, sess, ttl)
}

// InvalidateSession drops the pointer for a token
func (m *SessionManager) InvalidateSession(ctx context.Context, token string) error {
	return m.store.DeleteSession(ctx, token)
}

// cartForToken resolves a token to an active cart, self-healing the session
// pointer when the store entry is missing but the cart row exists.
func (m *SessionManager) cartForToken(ctx context.Context, token string) (*Cart, error) {
	sess, err := m.store.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}

	if sess != nil {
		c, err := m.repo.CartByID(ctx, sess.CartID)
		if errors.Is(err, ErrCartNotFound) {
			// Stale pointer; drop it
			_ = m.store.DeleteSession(ctx, token)
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if !c.IsActive() {
			return nil, nil
		}
		return c, nil
	}

	// Store miss: the cart row may still exist (self-healing cache)
	c, err := m.repo.ActiveCartByToken(ctx, token)
	if errors.Is(err, ErrCartNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.healSession(ctx, c)
	return c, nil
}

// usable reports whether a token-resolved cart may serve the requester.
// A cart already owned by a different user is never exposed through its
// token alone.
func (m *SessionManager) usable(c *Cart, userID *uint) bool {
	if !c.IsActive() || c.Expired(m.now()) {
		return false
	}
	if c.UserID == nil {
		return true
	}
	return userID != nil && *userID == *c.UserID
}

func (m *SessionManager) healSession(ctx context.Context, c *Cart) {
	if err := m.EnsureSessionConsistency(ctx, c); err != nil {
		m.log.WithError(err).WithField("cart_id", c.ID).Warn("Failed to refresh cart session pointer")
	}
}
