package revocation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps any Redis transport or server error.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrEmptyTokenID is returned for a blank jti.
var ErrEmptyTokenID = errors.New("empty token id")

// DefaultPrefix is used when NewStore receives an empty prefix.
const DefaultPrefix = "certauth:revoked"

// Store is safe for concurrent use.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

func NewStore(client redis.UniversalClient, prefix string) *Store {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{
		redis:  client,
		prefix: prefix,
	}
}

func (s *Store) key(jti string) string {
	return s.prefix + ":" + jti
}

// Revoke denylists jti until the given instant. An instant already in the past
// is a no-op because the token can no longer validate.
func (s *Store) Revoke(ctx context.Context, jti string, until time.Time) error {
	return s.RevokeFor(ctx, jti, time.Until(until))
}

// RevokeFor denylists jti for ttl. Non-positive ttl is a no-op.
func (s *Store) RevokeFor(ctx context.Context, jti string, ttl time.Duration) error {
	if strings.TrimSpace(jti) == "" {
		return ErrEmptyTokenID
	}
	if ttl <= 0 {
		return nil
	}
	// Redis rejects PX 0, and sub-millisecond entries would vanish immediately.
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	if err := s.redis.Set(ctx, s.key(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether jti is on the denylist.
func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if strings.TrimSpace(jti) == "" {
		return false, ErrEmptyTokenID
	}
	n, err := s.redis.Exists(ctx, s.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// Remaining returns how long jti stays denylisted, or 0 when it is not.
func (s *Store) Remaining(ctx context.Context, jti string) (time.Duration, error) {
	ttl, err := s.redis.PTTL(ctx, s.key(jti)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Ping measures one round trip.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
