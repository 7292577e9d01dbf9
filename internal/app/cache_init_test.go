package app

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/cache"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
)

func TestInitCache_Memory(t *testing.T) {
	deps := initCache(context.Background(), Config{CacheDriver: CacheDriverMemory}, log.WithField("test", "cache"))
	require.IsType(t, &cache.Memory{}, deps.cache)
	require.Nil(t, deps.checker)
}

func TestInitCache_Disabled(t *testing.T) {
	deps := initCache(context.Background(), Config{CacheDriver: CacheDriverNone}, log.WithField("test", "cache"))
	require.Nil(t, deps.cache)
	deps.close(log.WithField("test", "cache"))
}

func TestInitCache_UnreachableRedisIsDegraded(t *testing.T) {
	ctx := context.Background()
	logger := log.WithField("test", "cache-redis")

	deps := initCache(ctx, Config{CacheDriver: CacheDriverRedis, RedisAddr: "127.0.0.1:1", RedisNamespace: "test"}, logger)
	defer deps.close(logger)

	require.IsType(t, &cache.Guarded{}, deps.cache)
	require.NotNil(t, deps.checker)
	require.Equal(t, healthcheck.StatusDegraded, deps.checker.Check(ctx).Status)
}
