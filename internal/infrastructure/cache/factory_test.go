package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/lotes/backend/internal/infrastructure/auth"
	"github.com/lotes/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachable(context.Context, config.RedisConfig) (*redis.Client, error) {
	return nil, errors.New("connection refused")
}

func TestBlacklistFactory_Memory(t *testing.T) {
	f := NewBlacklistFactory(config.RedisConfig{})
	bl, closeFn, err := f.Create(context.Background(), "memory", nil)
	require.NoError(t, err)
	assert.IsType(t, &auth.InMemoryTokenBlacklist{}, bl)
	assert.NoError(t, closeFn())
}

func TestBlacklistFactory_UnknownBackend(t *testing.T) {
	f := NewBlacklistFactory(config.RedisConfig{})
	_, _, err := f.Create(context.Background(), "etcd", nil)
	assert.Error(t, err)
}

func TestBlacklistFactory_RedisWithClient(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	f := NewBlacklistFactory(config.RedisConfig{})
	bl, _, err := f.Create(context.Background(), "redis", client)
	require.NoError(t, err)
	assert.IsType(t, &auth.RedisTokenBlacklist{}, bl)
}

func TestBlacklistFactory_RedisUnavailable(t *testing.T) {
	t.Run("fails without fallback", func(t *testing.T) {
		f := NewBlacklistFactory(config.RedisConfig{Host: "localhost", Port: 1})
		f.connect = unreachable
		_, _, err := f.Create(context.Background(), "redis", nil)
		assert.ErrorContains(t, err, "connection refused")
	})

	t.Run("falls back to memory", func(t *testing.T) {
		f := NewBlacklistFactory(config.RedisConfig{Host: "localhost", Port: 1}, WithInMemoryFallback(true))
		f.connect = unreachable
		bl, _, err := f.Create(context.Background(), "redis", nil)
		require.NoError(t, err)
		assert.IsType(t, &auth.InMemoryTokenBlacklist{}, bl)
	})
}
