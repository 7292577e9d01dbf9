package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/ingest"
	"github.com/vladislavdragonenkov/storefront/internal/service/recommend"
	"github.com/vladislavdragonenkov/storefront/internal/service/sales"
)

// Dependencies содержит сервисный граф поверх выбранных хранилищ.
type Dependencies struct {
	Ledger       domain.Ledger
	Catalog      domain.Catalog
	Cache        domain.RankingCache
	Metrics      *metrics.RankingMetrics
	Orchestrator *recommend.Orchestrator
	Ingest       *ingest.Service
	Logger       *log.Entry
}

// NewDependencies собирает сервисы. cache и m могут быть nil.
func NewDependencies(
	ledger domain.Ledger,
	products domain.Catalog,
	rankingCache domain.RankingCache,
	cfg Config,
	m *metrics.RankingMetrics,
	logger *log.Entry,
) *Dependencies {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{
		Ledger:  ledger,
		Catalog: products,
		Cache:   rankingCache,
		Metrics: m,
		Logger:  logger,
	}
	deps.Orchestrator = createOrchestrator(deps, cfg)
	deps.Ingest = ingest.NewService(ledger, products, rankingCache, m, logger.WithField("layer", "ingest"))
	return deps
}

// createOrchestrator создаёт оркестратор рекомендаций с кэшем или без него.
func createOrchestrator(deps *Dependencies, cfg Config) *recommend.Orchestrator {
	options := []recommend.Option{
		recommend.WithMetrics(deps.Metrics),
		recommend.WithLogger(deps.Logger.WithField("layer", "recommend")),
	}
	if deps.Cache != nil {
		options = append(options, recommend.WithCache(deps.Cache, cfg.CacheTTL))
	}

	return recommend.NewOrchestrator(
		sales.NewAggregator(deps.Ledger, deps.Metrics, deps.Logger.WithField("layer", "sales")),
		sales.NewRepeatBuyerFilter(deps.Ledger, deps.Logger.WithField("layer", "sales")),
		catalog.NewQueryService(deps.Catalog, deps.Logger.WithField("layer", "catalog")),
		options...,
	)
}
