package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/erp/consignment/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisSupplierLocker serialises supplier payments across instances with
// SET NX based locks.
type RedisSupplierLocker struct {
	client  *redislock.Client
	backoff time.Duration
	retries int
	logger  *zap.Logger
}

// Option configures a RedisSupplierLocker
type Option func(*RedisSupplierLocker)

// WithRetry makes Acquire poll up to retries times, backoff apart, before
// giving up on a held lock.
func WithRetry(backoff time.Duration, retries int) Option {
	return func(l *RedisSupplierLocker) {
		l.backoff = backoff
		l.retries = retries
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(l *RedisSupplierLocker) {
		l.logger = logger
	}
}

// NewRedisSupplierLocker creates a locker on top of an existing client
func NewRedisSupplierLocker(client redis.UniversalClient, opts ...Option) *RedisSupplierLocker {
	l := &RedisSupplierLocker{
		client:  redislock.New(client),
		backoff: 50 * time.Millisecond,
		retries: 20,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire obtains key for ttl. A lock still held after the retry budget is a
// concurrency conflict.
func (l *RedisSupplierLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	strategy := redislock.NoRetry()
	if l.retries > 0 {
		strategy = redislock.LimitRetry(redislock.LinearBackoff(l.backoff), l.retries)
	}

	lk, err := l.client.Obtain(ctx, key, ttl, &redislock.Options{RetryStrategy: strategy})
	if errors.Is(err, redislock.ErrNotObtained) {
		l.logger.Warn("supplier lock busy", zap.String("key", key))
		return nil, shared.ErrConcurrencyConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %q: %w", key, err)
	}

	return func(ctx context.Context) error {
		err := lk.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			// TTL elapsed before release; another holder may already own the key.
			l.logger.Warn("supplier lock expired before release", zap.String("key", key), zap.Duration("ttl", ttl))
			return nil
		}
		return err
	}, nil
}
