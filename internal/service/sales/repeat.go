package sales

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// MinRepeatPurchases — порог «лучших товаров»: товар проходит фильтр,
// если хотя бы один покупатель купил его не менее 3 раз (>= 3 позиций заказа).
const MinRepeatPurchases = 3

// RepeatBuyerFilter отбирает товары с повторными покупками одним покупателем.
type RepeatBuyerFilter struct {
	ledger domain.LedgerReader
	logger *log.Entry
}

// NewRepeatBuyerFilter создаёт фильтр поверх ledger.
func NewRepeatBuyerFilter(ledger domain.LedgerReader, logger *log.Entry) *RepeatBuyerFilter {
	if logger == nil {
		logger = log.WithField("component", "repeat-buyer-filter")
	}
	return &RepeatBuyerFilter{ledger: ledger, logger: logger}
}

// FilterByRepeatPurchase оставляет кандидатов, у которых есть покупатель с числом
// покупок (позиций заказа) не меньше minTimesBySameBuyer. Относительный порядок
// входа сохраняется, повторы во входе отбрасываются после первого вхождения.
func (f *RepeatBuyerFilter) FilterByRepeatPurchase(ctx context.Context, candidates []string, minTimesBySameBuyer int) ([]string, error) {
	if minTimesBySameBuyer <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidThreshold, minTimesBySameBuyer)
	}

	scope := domain.RestrictTo(candidates...)
	if scope.Empty() {
		return []string{}, nil
	}

	lines, err := f.ledger.LinesFor(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	type purchaseKey struct {
		productID string
		buyerID   string
	}
	purchases := make(map[purchaseKey]int)
	qualified := make(map[string]struct{})
	for _, line := range lines {
		if !scope.Contains(line.ProductID) {
			continue
		}
		key := purchaseKey{productID: line.ProductID, buyerID: line.BuyerID}
		purchases[key]++
		if purchases[key] >= minTimesBySameBuyer {
			qualified[line.ProductID] = struct{}{}
		}
	}

	result := make([]string, 0, len(qualified))
	for _, id := range scope.IDs() {
		if _, ok := qualified[id]; ok {
			result = append(result, id)
		}
	}

	f.logger.WithFields(log.Fields{
		"candidates": scope.Len(),
		"qualified":  len(result),
		"threshold":  minTimesBySameBuyer,
	}).Debug("repeat purchase filter applied")

	return result, nil
}
