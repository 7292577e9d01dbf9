package app

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/cache"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func productIDs(products []domain.Product) []string {
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestNewDependencies_IngestInvalidatesCachedRanking(t *testing.T) {
	ctx := context.Background()
	rankingCache := cache.NewMemory()
	deps := NewDependencies(
		memory.NewLedger(),
		memory.NewCatalog(),
		rankingCache,
		DefaultConfig(),
		metrics.NewRankingMetricsWithRegisterer(prometheus.NewRegistry()),
		log.WithField("test", "dependencies"),
	)
	require.NotNil(t, deps.Orchestrator)
	require.NotNil(t, deps.Ingest)

	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, deps.Ingest.UpsertProducts(ctx,
		domain.Product{ID: "p1", Name: "Roses", Category: "flowers", CreatedAt: created},
		domain.Product{ID: "p2", Name: "Novel", Category: "books", CreatedAt: created},
	))
	require.NoError(t, deps.Ingest.Record(ctx,
		domain.OrderLine{ProductID: "p1", BuyerID: "u1", Quantity: 2, PurchasedAt: created},
	))

	top, err := deps.Orchestrator.TopSellers(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"p1"}, productIDs(top))
	require.Positive(t, rankingCache.Len())

	require.NoError(t, deps.Ingest.Record(ctx,
		domain.OrderLine{ProductID: "p2", BuyerID: "u2", Quantity: 5, PurchasedAt: created},
	))

	top, err = deps.Orchestrator.TopSellers(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"p2", "p1"}, productIDs(top))
}

func TestNewDependencies_WithoutCache(t *testing.T) {
	ctx := context.Background()
	deps := NewDependencies(memory.NewLedger(), memory.NewCatalog(), nil, DefaultConfig(), nil, nil)

	require.Nil(t, deps.Cache)
	top, err := deps.Orchestrator.TopSellers(ctx, 5)
	require.NoError(t, err)
	require.Empty(t, top)
}
