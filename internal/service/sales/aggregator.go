package sales

import (
	"context"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Aggregator считает проданные единицы по товарам и строит ранжирование.
//
// Порядок ранжирования: по убыванию TotalUnits, при равенстве по
// возрастанию ProductID. Порядок не зависит от того, в каком порядке
// хранилище отдало позиции, поэтому страницы top-N стабильны.
type Aggregator struct {
	ledger  domain.LedgerReader
	logger  *log.Entry
	metrics *metrics.RankingMetrics
}

// NewAggregator создаёт агрегатор поверх ledger. metrics может быть nil.
func NewAggregator(ledger domain.LedgerReader, m *metrics.RankingMetrics, logger *log.Entry) *Aggregator {
	if logger == nil {
		logger = log.WithField("component", "sales-aggregator")
	}
	return &Aggregator{
		ledger:  ledger,
		logger:  logger,
		metrics: m,
	}
}

// Rank возвращает не более topN идентификаторов товаров из scope по убыванию продаж.
// Пустой ledger или пустой scope дают пустой результат без ошибки.
func (a *Aggregator) Rank(ctx context.Context, scope domain.Scope, topN int) ([]string, error) {
	if topN <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidTopN, topN)
	}

	counts, err := a.Counts(ctx, scope)
	if err != nil {
		return nil, err
	}

	if len(counts) > topN {
		counts = counts[:topN]
	}
	ids := make([]string, 0, len(counts))
	for _, c := range counts {
		ids = append(ids, c.ProductID)
	}
	return ids, nil
}

// Counts возвращает суммарные продажи всех товаров scope в порядке ранжирования.
// Товары без продаж в результат не попадают.
func (a *Aggregator) Counts(ctx context.Context, scope domain.Scope) ([]domain.SalesCount, error) {
	if scope.Empty() {
		return []domain.SalesCount{}, nil
	}

	lines, err := a.ledger.LinesFor(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	a.metrics.RecordLinesScanned(len(lines))

	totals := make(map[string]int64)
	for _, line := range lines {
		if !scope.Contains(line.ProductID) {
			continue
		}
		totals[line.ProductID] += int64(line.Quantity)
	}

	counts := make([]domain.SalesCount, 0, len(totals))
	for productID, units := range totals {
		counts = append(counts, domain.SalesCount{ProductID: productID, TotalUnits: units})
	}
	SortCounts(counts)

	a.logger.WithFields(log.Fields{
		"scope":    scope.Signature(),
		"lines":    len(lines),
		"products": len(counts),
	}).Debug("sales aggregated")

	return counts, nil
}

// SortCounts упорядочивает счётчики: TotalUnits по убыванию, затем ProductID по возрастанию.
func SortCounts(counts []domain.SalesCount) {
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].TotalUnits != counts[j].TotalUnits {
			return counts[i].TotalUnits > counts[j].TotalUnits
		}
		return counts[i].ProductID < counts[j].ProductID
	})
}
