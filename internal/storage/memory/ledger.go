package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ledgerInMemory — in-memory реализация ledger позиций заказов.
// Позиции сгруппированы по товару, чтобы ограниченный scope читался без полного прохода.
type ledgerInMemory struct {
	mu        sync.RWMutex
	byProduct map[string][]domain.OrderLine
	seen      map[string]struct{}
	total     int
}

// NewLedger возвращает in-memory ledger для локальной разработки и тестов.
func NewLedger() domain.Ledger {
	return &ledgerInMemory{
		byProduct: make(map[string][]domain.OrderLine),
		seen:      make(map[string]struct{}),
	}
}

// Append дописывает позиции. Позиция с уже известным ID пропускается.
func (l *ledgerInMemory) Append(ctx context.Context, lines ...domain.OrderLine) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, line := range lines {
		if err := line.Validate(); err != nil {
			return err
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, line := range lines {
		if line.ID != "" {
			if _, dup := l.seen[line.ID]; dup {
				continue
			}
			l.seen[line.ID] = struct{}{}
		}
		line.PurchasedAt = line.PurchasedAt.UTC()
		l.byProduct[line.ProductID] = append(l.byProduct[line.ProductID], line)
		l.total++
	}
	return nil
}

// LinesFor возвращает копии позиций scope в хронологическом порядке.
func (l *ledgerInMemory) LinesFor(ctx context.Context, scope domain.Scope) ([]domain.OrderLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if scope.Empty() {
		return []domain.OrderLine{}, nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []domain.OrderLine
	if scope.Restricted() {
		result = make([]domain.OrderLine, 0)
		for _, id := range scope.IDs() {
			result = append(result, l.byProduct[id]...)
		}
	} else {
		result = make([]domain.OrderLine, 0, l.total)
		for _, lines := range l.byProduct {
			result = append(result, lines...)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].PurchasedAt.Equal(result[j].PurchasedAt) {
			return result[i].PurchasedAt.Before(result[j].PurchasedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

var _ domain.Ledger = (*ledgerInMemory)(nil)
