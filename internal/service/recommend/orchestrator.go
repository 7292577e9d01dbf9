package recommend

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/storefront/internal/cache"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/sales"
)

const (
	// InterestTopN — размер подборки по интересу пользователя.
	InterestTopN = 3
	// HomeTopSellers — число хитов продаж на главной.
	HomeTopSellers = 8
	// HomeNewest — число новинок на главной.
	HomeNewest = 8
	// BestProductsPool — промежуточный top продаж, из которого строятся «лучшие товары».
	BestProductsPool = 20
	// MaxTopN ограничивает topN во внешних запросах.
	MaxTopN = 100

	defaultCacheTTL = 5 * time.Minute
)

// Имена операций (метки метрик и префиксы ключей кэша).
const (
	OpInterestTop   = "interest_top"
	OpTopSellers    = "top_sellers"
	OpSalesCounts   = "sales_counts"
	OpBestProducts  = "best_products"
	OpBestPool      = "best_pool"
	OpSearchCatalog = "search_catalog"
	OpNewest        = "newest"
	OpHome          = "home"
)

// Home — данные главной страницы.
type Home struct {
	// Interest пуст, если интерес пользователя не задан.
	Interest   []domain.Product
	Newest     []domain.Product
	TopSellers []domain.Product
}

// Options задаёт необязательные зависимости оркестратора.
type Options struct {
	Cache    domain.RankingCache
	CacheTTL time.Duration
	Metrics  *metrics.RankingMetrics
	Logger   *log.Entry
}

// Option настраивает Orchestrator.
type Option func(*Options)

// WithCache включает кэш ранжирований.
func WithCache(c domain.RankingCache, ttl time.Duration) Option {
	return func(opts *Options) {
		opts.Cache = c
		opts.CacheTTL = ttl
	}
}

// WithMetrics задаёт метрики запросов.
func WithMetrics(m *metrics.RankingMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// Orchestrator собирает агрегатор, фильтр повторных покупок и каталог в
// пользовательские сценарии. Все операции только читают ledger и каталог
// и безопасны для параллельного вызова.
type Orchestrator struct {
	aggregator *sales.Aggregator
	repeat     *sales.RepeatBuyerFilter
	catalog    *catalog.QueryService
	cache      domain.RankingCache
	cacheTTL   time.Duration
	metrics    *metrics.RankingMetrics
	logger     *log.Entry
}

// NewOrchestrator создаёт оркестратор рекомендаций.
func NewOrchestrator(
	aggregator *sales.Aggregator,
	repeat *sales.RepeatBuyerFilter,
	catalogQuery *catalog.QueryService,
	options ...Option,
) *Orchestrator {
	opts := Options{CacheTTL: defaultCacheTTL}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "recommend")
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}

	return &Orchestrator{
		aggregator: aggregator,
		repeat:     repeat,
		catalog:    catalogQuery,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		metrics:    opts.Metrics,
		logger:     logger,
	}
}

// InterestTop возвращает до трёх самых продаваемых товаров категории интереса.
func (o *Orchestrator) InterestTop(ctx context.Context, category string) (_ []domain.Product, err error) {
	defer o.observe(OpInterestTop, time.Now(), &err)

	category, err = requireCategory(category)
	if err != nil {
		return nil, err
	}

	scope, err := o.catalog.CategoryScope(ctx, category)
	if err != nil {
		return nil, err
	}
	ids, err := o.rankCached(ctx, OpInterestTop, scope, InterestTopN)
	if err != nil {
		return nil, err
	}
	return o.catalog.Hydrate(ctx, ids)
}

// TopSellers возвращает topN хитов продаж по всему ledger.
func (o *Orchestrator) TopSellers(ctx context.Context, topN int) (_ []domain.Product, err error) {
	defer o.observe(OpTopSellers, time.Now(), &err)

	if err = validateTopN(topN); err != nil {
		return nil, err
	}
	ids, err := o.rankCached(ctx, OpTopSellers, domain.AllProducts(), topN)
	if err != nil {
		return nil, err
	}
	return o.catalog.Hydrate(ctx, ids)
}

// SalesCounts возвращает topN счётчиков продаж без гидрации (для отчётов и отладки).
func (o *Orchestrator) SalesCounts(ctx context.Context, topN int) (_ []domain.SalesCount, err error) {
	defer o.observe(OpSalesCounts, time.Now(), &err)

	if err = validateTopN(topN); err != nil {
		return nil, err
	}
	counts, err := o.aggregator.Counts(ctx, domain.AllProducts())
	if err != nil {
		return nil, err
	}
	if len(counts) > topN {
		counts = counts[:topN]
	}
	return counts, nil
}

// BestProducts строит страницу «лучших товаров»: top-20 продаж, оставшиеся
// после фильтра повторных покупок, с поиском, сортировкой и пагинацией.
func (o *Orchestrator) BestProducts(ctx context.Context, req domain.PageRequest) (_ domain.Page, err error) {
	defer o.observe(OpBestProducts, time.Now(), &err)

	req, err = req.Normalize()
	if err != nil {
		return domain.Page{}, err
	}

	pool, err := o.BestPool(ctx)
	if err != nil {
		return domain.Page{}, err
	}
	return o.catalog.Search(ctx, domain.RestrictTo(pool...), req)
}

// BestPool возвращает ранжированный набор id «лучших товаров» до поиска и пагинации.
func (o *Orchestrator) BestPool(ctx context.Context) ([]string, error) {
	compute := func(ctx context.Context) ([]string, error) {
		top, err := o.aggregator.Rank(ctx, domain.AllProducts(), BestProductsPool)
		if err != nil {
			return nil, err
		}
		return o.repeat.FilterByRepeatPurchase(ctx, top, sales.MinRepeatPurchases)
	}
	return o.cached(ctx, cache.Key(OpBestPool, domain.AllProducts(), BestProductsPool, strconv.Itoa(sales.MinRepeatPurchases)),
		domain.AllProducts(), compute)
}

// SearchCatalog ищет по всему каталогу.
func (o *Orchestrator) SearchCatalog(ctx context.Context, req domain.PageRequest) (_ domain.Page, err error) {
	defer o.observe(OpSearchCatalog, time.Now(), &err)

	return o.catalog.Search(ctx, domain.AllProducts(), req)
}

// NewestProducts возвращает n новинок каталога.
func (o *Orchestrator) NewestProducts(ctx context.Context, n int) (_ []domain.Product, err error) {
	defer o.observe(OpNewest, time.Now(), &err)

	if err = validateTopN(n); err != nil {
		return nil, err
	}
	return o.catalog.Newest(ctx, n)
}

// Home собирает главную страницу. Блоки считаются параллельно;
// ошибка любого блока отменяет остальные.
func (o *Orchestrator) Home(ctx context.Context, interest string) (_ Home, err error) {
	defer o.observe(OpHome, time.Now(), &err)

	if interest, err = domain.NormalizeCategory(interest); err != nil {
		return Home{}, err
	}

	var home Home
	g, gctx := errgroup.WithContext(ctx)

	if interest != "" {
		g.Go(func() error {
			products, err := o.InterestTop(gctx, interest)
			if err != nil {
				return fmt.Errorf("interest top: %w", err)
			}
			home.Interest = products
			return nil
		})
	}
	g.Go(func() error {
		products, err := o.catalog.Newest(gctx, HomeNewest)
		if err != nil {
			return fmt.Errorf("newest: %w", err)
		}
		home.Newest = products
		return nil
	})
	g.Go(func() error {
		products, err := o.TopSellers(gctx, HomeTopSellers)
		if err != nil {
			return fmt.Errorf("top sellers: %w", err)
		}
		home.TopSellers = products
		return nil
	})

	if err := g.Wait(); err != nil {
		return Home{}, err
	}
	if home.Interest == nil {
		home.Interest = []domain.Product{}
	}
	return home, nil
}

// Warm заранее считает ранжирования главной и пул «лучших товаров».
func (o *Orchestrator) Warm(ctx context.Context) error {
	if _, err := o.rankCached(ctx, OpTopSellers, domain.AllProducts(), HomeTopSellers); err != nil {
		return fmt.Errorf("warm top sellers: %w", err)
	}
	if _, err := o.BestPool(ctx); err != nil {
		return fmt.Errorf("warm best products: %w", err)
	}
	return nil
}

func (o *Orchestrator) rankCached(ctx context.Context, operation string, scope domain.Scope, topN int) ([]string, error) {
	compute := func(ctx context.Context) ([]string, error) {
		return o.aggregator.Rank(ctx, scope, topN)
	}
	return o.cached(ctx, cache.Key(operation, scope, topN), scope, compute)
}

// cached читает ранжирование из кэша или вычисляет и сохраняет его.
// Поколение scope читается до вычисления: если ledger пополнился и кэш
// инвалидировали во время вычисления, результат не сохраняется.
// Ошибки кэша только логируются: запрос пересчитывается по ledger.
func (o *Orchestrator) cached(
	ctx context.Context,
	key string,
	scope domain.Scope,
	compute func(context.Context) ([]string, error),
) ([]string, error) {
	if o.cache == nil {
		return compute(ctx)
	}

	ids, err := o.cache.Get(ctx, key)
	switch {
	case err == nil:
		o.metrics.RecordCacheLookup(metrics.ResultHit)
		return ids, nil
	case errors.Is(err, domain.ErrCacheMiss):
		o.metrics.RecordCacheLookup(metrics.ResultMiss)
	default:
		o.metrics.RecordCacheError()
		o.logger.WithError(err).WithField("key", key).Warn("ranking cache read failed")
	}

	generation, genErr := o.cache.Generation(ctx, scope)
	if genErr != nil {
		o.metrics.RecordCacheError()
		o.logger.WithError(genErr).WithField("key", key).Warn("ranking cache generation read failed")
	}

	ids, err = compute(ctx)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		return ids, nil
	}

	err = o.cache.Set(ctx, key, scope, ids, o.cacheTTL, generation)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrStaleRanking):
		o.logger.WithField("key", key).Debug("ranking invalidated while computing, not cached")
	default:
		o.metrics.RecordCacheError()
		o.logger.WithError(err).WithField("key", key).Warn("ranking cache write failed")
	}
	return ids, nil
}

func (o *Orchestrator) observe(operation string, start time.Time, errp *error) {
	result := metrics.ResultOK
	if err := *errp; err != nil {
		result = metrics.ResultError
		if domain.IsValidation(err) {
			result = metrics.ResultInvalid
		} else {
			o.logger.WithError(err).WithField("operation", operation).Error("ranking query failed")
		}
	}
	o.metrics.RecordQuery(operation, result, time.Since(start))
}

func requireCategory(raw string) (string, error) {
	category, err := domain.NormalizeCategory(raw)
	if err != nil {
		return "", err
	}
	if category == "" {
		return "", fmt.Errorf("%w: category is required", domain.ErrMalformedCategory)
	}
	return category, nil
}

func validateTopN(topN int) error {
	if topN <= 0 || topN > MaxTopN {
		return fmt.Errorf("%w: %d", domain.ErrInvalidTopN, topN)
	}
	return nil
}
