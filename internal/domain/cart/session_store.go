// internal/domain/cart/session_store.go
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	redisdb "github.com/your-org/storefront-backend/internal/infrastructure/database/redis"
)

// SessionStore holds the store-resident token → cart pointers
type SessionStore interface {
	// GetSession returns the session for a token, or (nil, nil) when missing
	GetSession(ctx context.Context, token string) (*Session, error)
	SaveSession(ctx context.Context, s *Session, ttl time.Duration) error
	DeleteSession(ctx context.Context, token string) error
}

// RedisSessionStore keeps cart sessions in Redis with per-key expiration
type RedisSessionStore struct {
	client *redisdb.Client
}

// NewRedisSessionStore creates a redis-backed session store
func NewRedisSessionStore(client *redisdb.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func sessionKey(token string) string {
	return fmt.Sprintf("cart:session:%s", token)
}

// GetSession retrieves a session pointer by token
func (s *RedisSessionStore) GetSession(ctx context.Context, token string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(token))
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cart session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to decode cart session: %w", err)
	}
	return &sess, nil
}

// SaveSession writes a session pointer with a TTL
func (s *RedisSessionStore) SaveSession(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode cart session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.Token), data, ttl); err != nil {
		return fmt.Errorf("failed to save cart session: %w", err)
	}
	return nil
}

// DeleteSession invalidates a session token
func (s *RedisSessionStore) DeleteSession(ctx context.Context, token string) error {
	return s.client.Del(ctx, sessionKey(token))
}
