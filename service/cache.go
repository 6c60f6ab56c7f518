// file: service/cache.go

package service

import (
	"context"
	"errors"
	"fmt"
	"go-trip-api/logger"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ICacheClient is the slice of the Redis client the login limiter needs.
type ICacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// LoginLimiter counts failed logins per email in Redis and blocks further attempts once
// the limit is hit, until the window expires. A nil *LoginLimiter allows everything.
type LoginLimiter struct {
	cache       ICacheClient
	maxAttempts int64
	window      time.Duration
}

func NewLoginLimiter(cache ICacheClient, maxAttempts int, window time.Duration) *LoginLimiter {
	if cache == nil || maxAttempts <= 0 {
		return nil
	}
	return &LoginLimiter{cache: cache, maxAttempts: int64(maxAttempts), window: window}
}

func loginFailureKey(email string) string {
	return "login_failures:" + strings.ToLower(strings.TrimSpace(email))
}

// Check returns ErrTooManyAttempts once the failure count reached the limit. Redis
// errors are returned as storage failures so the login fails closed.
func (l *LoginLimiter) Check(ctx context.Context, email string) error {
	if l == nil {
		return nil
	}
	count, err := l.cache.Get(ctx, loginFailureKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("login limiter: %w: %w", ErrStorageUnavailable, err)
	}
	if count >= l.maxAttempts {
		return ErrTooManyAttempts
	}
	return nil
}

// RecordFailure increments the failure counter and starts the window on the first failure.
func (l *LoginLimiter) RecordFailure(ctx context.Context, email string) {
	if l == nil {
		return
	}
	key := loginFailureKey(email)
	count, err := l.cache.Incr(ctx, key).Result()
	if err != nil {
		logger.Log.WithError(err).Warn("Failed to record login failure")
		return
	}
	if count == 1 {
		if err := l.cache.Expire(ctx, key, l.window).Err(); err != nil {
			logger.Log.WithError(err).Warn("Failed to set login failure window")
		}
	}
}

// Reset clears the counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, email string) {
	if l == nil {
		return
	}
	if err := l.cache.Del(ctx, loginFailureKey(email)).Err(); err != nil {
		logger.Log.WithError(err).Warn("Failed to reset login failures")
	}
}
