package cache

import (
	"context"
	"errors"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/retry"
)

// Guarded пропускает чтение и запись кэша через circuit breaker: при
// недоступном бэкенде запросы сразу уходят на пересчёт по ledger, не
// дожидаясь таймаута. Инвалидация выполняется всегда.
type Guarded struct {
	next    domain.RankingCache
	breaker *retry.CircuitBreaker
}

// NewGuarded оборачивает кэш.
func NewGuarded(next domain.RankingCache, breaker *retry.CircuitBreaker) *Guarded {
	return &Guarded{next: next, breaker: breaker}
}

// Get возвращает ErrCacheMiss как есть; промах не считается отказом бэкенда.
func (g *Guarded) Get(ctx context.Context, key string) ([]string, error) {
	var (
		ids  []string
		miss bool
	)
	err := g.breaker.Execute("cache.get", func() error {
		var err error
		ids, err = g.next.Get(ctx, key)
		if errors.Is(err, domain.ErrCacheMiss) {
			miss = true
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if miss {
		return nil, domain.ErrCacheMiss
	}
	return ids, nil
}

func (g *Guarded) Generation(ctx context.Context, scope domain.Scope) (int64, error) {
	var gen int64
	err := g.breaker.Execute("cache.generation", func() error {
		var err error
		gen, err = g.next.Generation(ctx, scope)
		return err
	})
	return gen, err
}

// Set возвращает ErrStaleRanking как есть; отклонённая запись не считается отказом бэкенда.
func (g *Guarded) Set(ctx context.Context, key string, scope domain.Scope, ids []string, ttl time.Duration, generation int64) error {
	stale := false
	err := g.breaker.Execute("cache.set", func() error {
		err := g.next.Set(ctx, key, scope, ids, ttl, generation)
		if errors.Is(err, domain.ErrStaleRanking) {
			stale = true
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}
	if stale {
		return domain.ErrStaleRanking
	}
	return nil
}

func (g *Guarded) InvalidateProducts(ctx context.Context, productIDs ...string) error {
	return g.next.InvalidateProducts(ctx, productIDs...)
}

// Ping проверяет бэкенд напрямую, минуя breaker.
func (g *Guarded) Ping(ctx context.Context) error {
	if p, ok := g.next.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

var _ domain.RankingCache = (*Guarded)(nil)
