package cache

import (
	"context"

	"github.com/erp/consignment/internal/domain/shared"
	"github.com/erp/consignment/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// IdempotencyStoreFactory picks the idempotency store for the deployment
type IdempotencyStoreFactory struct {
	redisConfig config.RedisConfig
	logger      *zap.Logger
	keyPrefix   string
}

// IdempotencyStoreFactoryOption is a functional option for configuring the factory
type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// WithKeyPrefix namespaces keys written to Redis
func WithKeyPrefix(prefix string) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.keyPrefix = prefix
	}
}

// NewIdempotencyStoreFactory creates a new factory
func NewIdempotencyStoreFactory(cfg config.RedisConfig, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{
		redisConfig: cfg,
		logger:      zap.NewNop(),
		keyPrefix:   "consignment:idempotency:",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore returns a Redis store when a client is available, otherwise an
// in-memory one. The returned client is nil when Redis is disabled or down and
// is owned by the caller.
func (f *IdempotencyStoreFactory) CreateStore(ctx context.Context) (shared.IdempotencyStore, *redis.Client) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(DefaultSweepInterval), nil
	}

	client, err := NewRedisClient(ctx, f.redisConfig)
	if err != nil {
		f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store. "+
			"Sale notifications may be applied twice across instances.",
			zap.Error(err),
		)
		return NewInMemoryIdempotencyStore(DefaultSweepInterval), nil
	}

	f.logger.Info("using Redis idempotency store", zap.String("addr", f.redisConfig.Addr()))
	return NewRedisIdempotencyStore(client, f.keyPrefix), client
}
