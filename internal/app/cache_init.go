package app

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/cache"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/retry"
)

const (
	redisStartupPing = 2 * time.Second

	// Параметры breaker для Redis: после серии ошибок кэш пропускается
	// и запросы сразу считаются по ledger.
	redisBreakerFailures = 5
	redisBreakerReset    = 30 * time.Second
)

type cacheDeps struct {
	cache   domain.RankingCache
	checker healthcheck.Checker
	closeFn func() error
}

func (d *cacheDeps) close(logger *log.Entry) {
	if d == nil || d.closeFn == nil {
		return
	}
	if err := d.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close ranking cache")
	}
}

// initCache создаёт кэш ранжирований. Недоступный при старте Redis не
// останавливает сервис: запросы считаются по ledger, health показывает degraded.
func initCache(ctx context.Context, cfg Config, logger *log.Entry) *cacheDeps {
	logger = logger.WithField("cache_driver", cfg.CacheDriver)

	switch cfg.CacheDriver {
	case CacheDriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		rc := cache.NewRedis(client, cfg.RedisNamespace)

		pingCtx, cancel := context.WithTimeout(ctx, redisStartupPing)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			logger.WithError(err).WithField("addr", cfg.RedisAddr).Warn("redis is unavailable, ranking cache degraded")
		} else {
			logger.WithField("addr", cfg.RedisAddr).Info("redis ranking cache initialized")
		}
		breaker := retry.NewCircuitBreaker(redisBreakerFailures, redisBreakerReset, logger)
		return &cacheDeps{
			cache:   cache.NewGuarded(rc, breaker),
			checker: healthcheck.NewOptionalPingChecker("cache", rc),
			closeFn: client.Close,
		}

	case CacheDriverMemory, "":
		logger.Info("using in-memory ranking cache")
		return &cacheDeps{cache: cache.NewMemory()}

	default:
		logger.Info("ranking cache disabled")
		return &cacheDeps{}
	}
}
