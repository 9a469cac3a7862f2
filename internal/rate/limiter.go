package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	EnableRotateThrottle bool
	MaxRotateAttempts    int
	RotateCooldown       time.Duration
	EnableIssueThrottle  bool
	MaxIssueAttempts     int
	IssueCooldown        time.Duration
}

// Limiter enforces per-family rotate limits and per-subject action-token
// issue limits using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckRotate enforces the rotate limit by incrementing the family counter
// and applying the cooldown TTL.
func (l *Limiter) CheckRotate(ctx context.Context, family string) error {
	if !l.config.EnableRotateThrottle {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, rotateKey(family), l.config.RotateCooldown)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRotateAttempts) {
		return ErrRateLimited
	}

	return nil
}

// CheckIssue enforces the action-token issue limit for a subject+kind pair.
func (l *Limiter) CheckIssue(ctx context.Context, subject string, kind uint8) error {
	if !l.config.EnableIssueThrottle {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, issueKey(subject, kind), l.config.IssueCooldown)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxIssueAttempts) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func rotateKey(family string) string {
	return "tr:" + family
}

func issueKey(subject string, kind uint8) string {
	return fmt.Sprintf("ti:%s:%d", subject, kind)
}
