package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "certauth:rl"

// Config holds limiter tuning parameters.
type Config struct {
	Prefix string
	// MaxIssues is the number of tokens one subject may obtain per Window.
	MaxIssues int
	Window    time.Duration
	// EnableIPThrottle applies the same budget per client address.
	EnableIPThrottle bool
}

// Limiter enforces per-subject and per-IP issuance budgets.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client. An enabled limiter
// (MaxIssues > 0) needs a positive Window.
func New(redisClient redis.UniversalClient, cfg Config) (*Limiter, error) {
	if cfg.MaxIssues > 0 && cfg.Window <= 0 {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidWindow, cfg.Window)
	}
	cfg.Prefix = strings.TrimSuffix(cfg.Prefix, ":")
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}, nil
}

// AllowIssue counts one issuance for subject and ip and reports ErrRateLimited
// once either budget is exceeded. A nil Limiter allows everything.
func (l *Limiter) AllowIssue(ctx context.Context, subject, ip string) error {
	if l == nil || l.config.MaxIssues <= 0 {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, l.subjectKey(subject))
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxIssues) {
		return ErrRateLimited
	}

	if l.config.EnableIPThrottle && ip != "" {
		count, err = l.incrementWithTTL(ctx, l.ipKey(ip))
		if err != nil {
			return err
		}
		if count > int64(l.config.MaxIssues) {
			return ErrRateLimited
		}
	}
	return nil
}

// Issued returns the current window count for subject. Missing keys are zero.
func (l *Limiter) Issued(ctx context.Context, subject string) (int, error) {
	count, err := l.redis.Get(ctx, l.subjectKey(subject)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// Reset clears the subject counter.
func (l *Limiter) Reset(ctx context.Context, subject string) error {
	if err := l.redis.Del(ctx, l.subjectKey(subject)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) subjectKey(subject string) string { return l.config.Prefix + ":sub:" + subject }
func (l *Limiter) ipKey(ip string) string           { return l.config.Prefix + ":ip:" + ip }

// incrementWithTTL bumps key and opens the window in one transaction. EXPIRE NX
// only sets a TTL on a key that has none, so the window stays fixed and a key
// can never be left without one.
func (l *Limiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	var incr *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.config.Window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return incr.Val(), nil
}
