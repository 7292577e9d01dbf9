package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// catalogInMemory хранит карточки товаров в памяти (для разработки/тестов).
type catalogInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Product
}

// NewCatalog создаёт in-memory реализацию каталога.
func NewCatalog() domain.Catalog {
	return &catalogInMemory{items: make(map[string]domain.Product)}
}

// Upsert создаёт или перезаписывает карточки.
func (c *catalogInMemory) Upsert(ctx context.Context, products ...domain.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, p := range products {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range products {
		p.CreatedAt = p.CreatedAt.UTC()
		c.items[p.ID] = p
	}
	return nil
}

// ByIDs возвращает известные товары в порядке ids; неизвестные id пропускаются.
func (c *catalogInMemory) ByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := c.items[id]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}

// ByCategory возвращает товары категории, сравнение без учёта регистра.
func (c *catalogInMemory) ByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]domain.Product, 0)
	for _, p := range c.items {
		if strings.EqualFold(p.Category, category) {
			result = append(result, p)
		}
	}
	sortByID(result)
	return result, nil
}

// List возвращает весь каталог, упорядоченный по ID.
func (c *catalogInMemory) List(ctx context.Context) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]domain.Product, 0, len(c.items))
	for _, p := range c.items {
		result = append(result, p)
	}
	sortByID(result)
	return result, nil
}

func sortByID(products []domain.Product) {
	sort.Slice(products, func(i, j int) bool {
		return products[i].ID < products[j].ID
	})
}

var _ domain.Catalog = (*catalogInMemory)(nil)
