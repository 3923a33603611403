// internal/domain/checkout/store.go
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	redisdb "github.com/your-org/storefront-backend/internal/infrastructure/database/redis"
)

// Store holds checkout sessions for the duration of a checkout flow
type Store interface {
	// Get returns the session for an id, or (nil, nil) when missing
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error

	// AcquireOrderLock takes a short-lived lock used to serialize the first
	// createOrder for a session. Returns false when another call holds it.
	AcquireOrderLock(ctx context.Context, id string, ttl time.Duration) (bool, error)
	ReleaseOrderLock(ctx context.Context, id string) error
}

// RedisStore keeps checkout sessions in Redis with per-key expiration
type RedisStore struct {
	client *redisdb.Client
}

// NewRedisStore creates a redis-backed checkout session store
func NewRedisStore(client *redisdb.Client) *RedisStore {
	return &RedisStore{client: client}
}

func checkoutKey(id string) string {
	return fmt.Sprintf("checkout:session:%s", id)
}

func orderLockKey(id string) string {
	return fmt.Sprintf("checkout:order-lock:%s", id)
}

// Get retrieves a checkout session by id
func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, checkoutKey(id))
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkout session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}
	return &sess, nil
}

// Save writes a checkout session with a TTL
func (s *RedisStore) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode checkout session: %w", err)
	}
	if err := s.client.Set(ctx, checkoutKey(sess.ID), data, ttl); err != nil {
		return fmt.Errorf("failed to save checkout session: %w", err)
	}
	return nil
}

// Delete removes a checkout session
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, checkoutKey(id))
}

// AcquireOrderLock serializes order creation across concurrent callers
func (s *RedisStore) AcquireOrderLock(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, orderLockKey(id), "1", ttl)
}

// ReleaseOrderLock frees the order creation lock
func (s *RedisStore) ReleaseOrderLock(ctx context.Context, id string) error {
	return s.client.Del(ctx, orderLockKey(id))
}
