// internal/domain/payment/store.go
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/order"
	redisdb "github.com/your-org/storefront-backend/internal/infrastructure/database/redis"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the persistence surface the payment service works against
type Store interface {
	OrderForUser(ctx context.Context, userID, orderID uint) (*order.Order, error)
	MethodByID(ctx context.Context, id uint) (*PaymentMethodConfig, error)
	EnabledMethods(ctx context.Context) ([]PaymentMethodConfig, error)
	SaveTransaction(ctx context.Context, txn *Transaction) error
	TransactionByReference(ctx context.Context, reference string) (*Transaction, error)

	// ApplyOutcome settles a payment attempt: the order row is locked, the
	// status transition validated, and the transaction saved, all in one
	// database transaction. On payment completion the cart converts too.
	// Returns false when the transition is stale and nothing was applied.
	ApplyOutcome(ctx context.Context, txn *Transaction, to order.Status) (bool, error)
}

// GormStore is the PostgreSQL-backed payment store
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new payment store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// OrderForUser loads an order, enforcing ownership
func (s *GormStore) OrderForUser(ctx context.Context, userID, orderID uint) (*order.Order, error) {
	var o order.Order
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", orderID, userID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &o, nil
}

// MethodByID loads a payment method with its gateway binding
func (s *GormStore) MethodByID(ctx context.Context, id uint) (*PaymentMethodConfig, error) {
	var m PaymentMethodConfig
	err := s.db.WithContext(ctx).Preload("Gateway").First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMethodDisabled
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment method: %w", err)
	}
	return &m, nil
}

// EnabledMethods lists the methods customers can currently pick
func (s *GormStore) EnabledMethods(ctx context.Context) ([]PaymentMethodConfig, error) {
	var methods []PaymentMethodConfig
	err := s.db.WithContext(ctx).Preload("Gateway").
		Where("enabled = ?", true).Order("id").Find(&methods).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payment methods: %w", err)
	}
	return methods, nil
}

// SaveTransaction creates or updates a payment attempt record
func (s *GormStore) SaveTransaction(ctx context.Context, txn *Transaction) error {
	if err := s.db.WithContext(ctx).Save(txn).Error; err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

// TransactionByReference finds the attempt a webhook refers to
func (s *GormStore) TransactionByReference(ctx context.Context, reference string) (*Transaction, error) {
	var txn Transaction
	err := s.db.WithContext(ctx).Where("reference = ?", reference).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownTransaction
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	return &txn, nil
}

// ApplyOutcome settles a payment attempt against the order
func (s *GormStore) ApplyOutcome(ctx context.Context, txn *Transaction, to order.Status) (bool, error) {
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o order.Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&o, txn.OrderID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return order.ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}

		if err := tx.Save(txn).Error; err != nil {
			return fmt.Errorf("failed to save transaction: %w", err)
		}

		// A late or duplicate notification that no longer fits the
		// transition table is recorded but changes nothing.
		if !order.CanTransition(o.Status, to) {
			return nil
		}

		if err := tx.Model(&o).Update("status", to).Error; err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		if to == order.StatusPaymentCompleted {
			err := tx.Model(&cart.Cart{}).Where("id = ?", o.CartID).
				Update("status", cart.CartStatusConverted).Error
			if err != nil {
				return fmt.Errorf("failed to convert cart: %w", err)
			}
		}

		applied = true
		return nil
	})
	return applied, err
}

// WebhookDedup remembers which gateway notifications were already handled
type WebhookDedup interface {
	// MarkProcessed returns false when the notification was seen before
	MarkProcessed(ctx context.Context, provider, reference string) (bool, error)

	// Forget releases a claim so the gateway's retry of a notification we
	// failed to process is not dropped as a duplicate
	Forget(ctx context.Context, provider, reference string) error
}

// webhookDedupTTL keeps dedup markers long enough to outlive any sane
// gateway retry window
const webhookDedupTTL = 72 * time.Hour

// RedisWebhookDedup implements webhook dedup on Redis SETNX
type RedisWebhookDedup struct {
	client *redisdb.Client
}

// NewRedisWebhookDedup creates a redis-backed webhook dedup
func NewRedisWebhookDedup(client *redisdb.Client) *RedisWebhookDedup {
	return &RedisWebhookDedup{client: client}
}

func webhookKey(provider, reference string) string {
	return fmt.Sprintf("payment:webhook:%s:%s", provider, reference)
}

// MarkProcessed claims a notification for processing
func (d *RedisWebhookDedup) MarkProcessed(ctx context.Context, provider, reference string) (bool, error) {
	return d.client.SetNX(ctx, webhookKey(provider, reference), "1", webhookDedupTTL)
}

// Forget releases a notification claim
func (d *RedisWebhookDedup) Forget(ctx context.Context, provider, reference string) error {
	return d.client.Del(ctx, webhookKey(provider, reference))
}

// AttemptLock serializes payment attempts so two concurrent calls for the
// same order cannot both reach the gateway
type AttemptLock interface {
	// Acquire returns false when another attempt holds the lock
	Acquire(ctx context.Context, orderID uint) (bool, error)
	Release(ctx context.Context, orderID uint) error
}

// attemptLockTTL bounds how long a crashed attempt can block retries. It has
// to outlast the slowest gateway call.
const attemptLockTTL = 60 * time.Second

// RedisAttemptLock implements the per-order attempt lock on Redis SETNX
type RedisAttemptLock struct {
	client *redisdb.Client
}

// NewRedisAttemptLock creates a redis-backed payment attempt lock
func NewRedisAttemptLock(client *redisdb.Client) *RedisAttemptLock {
	return &RedisAttemptLock{client: client}
}

func attemptLockKey(orderID uint) string {
	return fmt.Sprintf("payment:attempt-lock:%d", orderID)
}

// Acquire takes the attempt lock for an order
func (l *RedisAttemptLock) Acquire(ctx context.Context, orderID uint) (bool, error) {
	return l.client.SetNX(ctx, attemptLockKey(orderID), "1", attemptLockTTL)
}

// Release frees the attempt lock
func (l *RedisAttemptLock) Release(ctx context.Context, orderID uint) error {
	return l.client.Del(ctx, attemptLockKey(orderID))
}
