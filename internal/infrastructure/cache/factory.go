package cache

import (
	"context"
	"fmt"

	"github.com/lotes/backend/internal/infrastructure/auth"
	"github.com/lotes/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// BlacklistFactory creates token blacklists based on configuration
type BlacklistFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	connect               func(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error)
}

// BlacklistFactoryOption is a functional option for configuring the factory
type BlacklistFactoryOption func(*BlacklistFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) BlacklistFactoryOption {
	return func(f *BlacklistFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory blacklist
// when Redis is unavailable. Default is false.
func WithInMemoryFallback(allow bool) BlacklistFactoryOption {
	return func(f *BlacklistFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewBlacklistFactory creates a new factory
func NewBlacklistFactory(cfg config.RedisConfig, opts ...BlacklistFactoryOption) *BlacklistFactory {
	f := &BlacklistFactory{
		redisConfig: cfg,
		logger:      zap.NewNop(),
		connect:     NewRedisClient,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns a blacklist for the backend ("memory" or "redis"). When
// client is nil a new Redis connection is opened for the redis backend.
// The returned close function releases a connection opened here.
func (f *BlacklistFactory) Create(ctx context.Context, backend string, client *redis.Client) (auth.TokenBlacklist, func() error, error) {
	noop := func() error { return nil }

	switch backend {
	case "", "memory":
		f.logger.Info("Using in-memory token blacklist",
			zap.String("warning", "revocations are not shared across instances"))
		return auth.NewInMemoryTokenBlacklist(), noop, nil
	case "redis":
	default:
		return nil, noop, fmt.Errorf("unknown token blacklist backend %q", backend)
	}

	if client != nil {
		f.logger.Info("Using Redis token blacklist", zap.String("addr", f.redisConfig.Addr()))
		return auth.NewRedisTokenBlacklist(client), noop, nil
	}

	client, err := f.connect(ctx, f.redisConfig)
	if err != nil {
		if !f.allowInMemoryFallback {
			return nil, noop, fmt.Errorf("failed to create Redis token blacklist: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory token blacklist", zap.Error(err))
		return auth.NewInMemoryTokenBlacklist(), noop, nil
	}
	f.logger.Info("Using Redis token blacklist", zap.String("addr", f.redisConfig.Addr()))
	return auth.NewRedisTokenBlacklist(client), client.Close, nil
}
