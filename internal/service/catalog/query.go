package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// QueryService отвечает за гидрацию ранжированных id и поиск по каталогу.
type QueryService struct {
	catalog domain.CatalogReader
	logger  *log.Entry
}

// NewQueryService создаёт сервис запросов поверх каталога.
func NewQueryService(catalog domain.CatalogReader, logger *log.Entry) *QueryService {
	if logger == nil {
		logger = log.WithField("component", "catalog-query")
	}
	return &QueryService{catalog: catalog, logger: logger}
}

// Search фильтрует, сортирует и нарезает каталог на страницы.
//
// Ограниченный scope пересекается с каталогом до фильтров по ключевому слову
// и категории; пустой ограниченный scope всегда даёт пустую страницу.
// Ключевое слово ищется подстрокой в названии товара без учёта регистра,
// категория сравнивается целиком без учёта регистра.
func (s *QueryService) Search(ctx context.Context, scope domain.Scope, req domain.PageRequest) (domain.Page, error) {
	req, err := req.Normalize()
	if err != nil {
		return domain.Page{}, err
	}
	if scope.Empty() {
		return domain.NewPage(nil, req), nil
	}

	var candidates []domain.Product
	switch {
	case scope.Restricted():
		candidates, err = s.catalog.ByIDs(ctx, scope.IDs())
	case req.Category != "":
		candidates, err = s.catalog.ByCategory(ctx, req.Category)
	default:
		candidates, err = s.catalog.List(ctx)
	}
	if err != nil {
		return domain.Page{}, fmt.Errorf("read catalog: %w", err)
	}

	filtered := filterProducts(candidates, scope, req.Keyword, req.Category)
	SortProducts(filtered, req.Sort)

	page := domain.NewPage(filtered, req)
	s.logger.WithFields(log.Fields{
		"scope":   scope.Signature(),
		"sort":    req.Sort,
		"total":   page.TotalItems,
		"page":    req.PageIndex,
		"keyword": req.Keyword,
	}).Debug("catalog searched")
	return page, nil
}

// Hydrate превращает ранжированные id в карточки, сохраняя порядок входа.
// Id без карточки молча пропускаются.
func (s *QueryService) Hydrate(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}

	found, err := s.catalog.ByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate products: %w", err)
	}

	byID := make(map[string]domain.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	result := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}

// CategoryScope строит scope из всех товаров категории (сравнение без учёта регистра).
// Категория без товаров даёт пустой ограниченный scope.
func (s *QueryService) CategoryScope(ctx context.Context, category string) (domain.Scope, error) {
	products, err := s.catalog.ByCategory(ctx, category)
	if err != nil {
		return domain.Scope{}, fmt.Errorf("read category %q: %w", category, err)
	}
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return domain.RestrictTo(ids...), nil
}

// Newest возвращает n самых новых товаров каталога.
func (s *QueryService) Newest(ctx context.Context, n int) ([]domain.Product, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidTopN, n)
	}

	products, err := s.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	SortProducts(products, domain.SortNewest)
	if len(products) > n {
		products = products[:n]
	}
	return products, nil
}

func filterProducts(products []domain.Product, scope domain.Scope, keyword, category string) []domain.Product {
	needle := strings.ToLower(keyword)
	result := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if !scope.Contains(p.ID) {
			continue
		}
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		result = append(result, p)
	}
	return result
}

// SortProducts сортирует товары по ключу; последний ключ сравнения: ID по возрастанию.
func SortProducts(products []domain.Product, key domain.SortKey) {
	newer := func(a, b domain.Product) (bool, bool) {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return false, false
		}
		return a.CreatedAt.After(b.CreatedAt), true
	}

	sort.SliceStable(products, func(i, j int) bool {
		a, b := products[i], products[j]
		switch key {
		case domain.SortPriceAsc:
			if a.PriceMinor != b.PriceMinor {
				return a.PriceMinor < b.PriceMinor
			}
		case domain.SortPriceDesc:
			if a.PriceMinor != b.PriceMinor {
				return a.PriceMinor > b.PriceMinor
			}
		case domain.SortCategory:
			ca, cb := strings.ToLower(a.Category), strings.ToLower(b.Category)
			if ca != cb {
				return ca < cb
			}
			if less, decided := newer(a, b); decided {
				return less
			}
		default:
			if less, decided := newer(a, b); decided {
				return less
			}
		}
		return a.ID < b.ID
	})
}
