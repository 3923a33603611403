// internal/domain/user/sessions.go
package user

import (
	"context"
	"fmt"
	"time"

	redisdb "github.com/your-org/storefront-backend/internal/infrastructure/database/redis"
)

// SessionRegistry tracks which refresh tokens are still live, keyed by the
// token's JTI. Revoking a key kills that session; revoking the user's whole
// keyspace logs them out everywhere.
type SessionRegistry interface {
	Register(ctx context.Context, userID uint, jti string, ttl time.Duration) error
	Valid(ctx context.Context, userID uint, jti string) (bool, error)
	Revoke(ctx context.Context, userID uint, jti string) error
	RevokeAll(ctx context.Context, userID uint) error
}

// RedisSessionRegistry implements the registry on Redis
type RedisSessionRegistry struct {
	client *redisdb.Client
}

// NewRedisSessionRegistry creates a redis-backed session registry
func NewRedisSessionRegistry(client *redisdb.Client) *RedisSessionRegistry {
	return &RedisSessionRegistry{client: client}
}

func authSessionKey(userID uint, jti string) string {
	return fmt.Sprintf("auth:session:%d:%s", userID, jti)
}

// Register records a live refresh session for the token's lifetime
func (r *RedisSessionRegistry) Register(ctx context.Context, userID uint, jti string, ttl time.Duration) error {
	return r.client.Set(ctx, authSessionKey(userID, jti), "1", ttl)
}

// Valid reports whether a refresh session is still live
func (r *RedisSessionRegistry) Valid(ctx context.Context, userID uint, jti string) (bool, error) {
	return r.client.Exists(ctx, authSessionKey(userID, jti))
}

// Revoke kills one refresh session
func (r *RedisSessionRegistry) Revoke(ctx context.Context, userID uint, jti string) error {
	return r.client.Del(ctx, authSessionKey(userID, jti))
}

// RevokeAll kills every refresh session the user has
func (r *RedisSessionRegistry) RevokeAll(ctx context.Context, userID uint) error {
	_, err := r.client.DelPattern(ctx, fmt.Sprintf("auth:session:%d:*", userID))
	return err
}
