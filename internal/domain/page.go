package domain

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SortKey задаёт порядок выдачи каталога.
type SortKey string

const (
	// SortNewest — сначала новые товары (по убыванию CreatedAt).
	SortNewest SortKey = "newest"
	// SortPriceAsc — по возрастанию цены.
	SortPriceAsc SortKey = "priceAsc"
	// SortPriceDesc — по убыванию цены.
	SortPriceDesc SortKey = "priceDesc"
	// SortCategory — по названию категории, внутри категории сначала новые.
	SortCategory SortKey = "category"
)

const (
	// DefaultPageSize используется, если размер страницы не задан.
	DefaultPageSize = 12
	// MaxPageSize ограничивает размер страницы сверху.
	MaxPageSize = 100
	// MaxKeywordLength ограничивает длину поискового запроса в рунах.
	MaxKeywordLength = 100
	// MaxCategoryLength ограничивает длину метки категории в рунах.
	MaxCategoryLength = 64
)

// ParseSortKey разбирает ключ сортировки. Пустая строка означает SortNewest.
func ParseSortKey(raw string) (SortKey, error) {
	key := SortKey(strings.TrimSpace(raw))
	if key == "" {
		return SortNewest, nil
	}
	if !key.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSortKey, raw)
	}
	return key, nil
}

// Valid проверяет, что ключ относится к поддерживаемым значениям.
func (k SortKey) Valid() bool {
	switch k {
	case SortNewest, SortPriceAsc, SortPriceDesc, SortCategory:
		return true
	default:
		return false
	}
}

// PageRequest описывает запрос страницы каталога.
type PageRequest struct {
	// PageIndex — номер страницы, начиная с нуля.
	PageIndex int
	// PageSize — размер страницы; 0 означает DefaultPageSize.
	PageSize int
	Sort     SortKey
	Keyword  string
	Category string
}

// Normalize проверяет запрос и возвращает копию с подставленными значениями по умолчанию.
func (r PageRequest) Normalize() (PageRequest, error) {
	if r.PageIndex < 0 {
		return PageRequest{}, fmt.Errorf("%w: %d", ErrInvalidPageIndex, r.PageIndex)
	}
	if r.PageSize < 0 || r.PageSize > MaxPageSize {
		return PageRequest{}, fmt.Errorf("%w: %d", ErrInvalidPageSize, r.PageSize)
	}
	if r.PageSize == 0 {
		r.PageSize = DefaultPageSize
	}

	if r.Sort == "" {
		r.Sort = SortNewest
	}
	if !r.Sort.Valid() {
		return PageRequest{}, fmt.Errorf("%w: %q", ErrInvalidSortKey, r.Sort)
	}

	keyword, err := normalizeLabel(r.Keyword, MaxKeywordLength)
	if err != nil {
		return PageRequest{}, fmt.Errorf("%w: %v", ErrMalformedKeyword, err)
	}
	r.Keyword = keyword

	category, err := NormalizeCategory(r.Category)
	if err != nil {
		return PageRequest{}, err
	}
	r.Category = category

	return r, nil
}

// NormalizeCategory обрезает пробелы и проверяет метку категории.
func NormalizeCategory(raw string) (string, error) {
	category, err := normalizeLabel(raw, MaxCategoryLength)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCategory, err)
	}
	return category, nil
}

func normalizeLabel(raw string, maxLen int) (string, error) {
	value := strings.TrimSpace(raw)
	if !utf8.ValidString(value) {
		return "", fmt.Errorf("invalid utf-8")
	}
	if utf8.RuneCountInString(value) > maxLen {
		return "", fmt.Errorf("longer than %d characters", maxLen)
	}
	for _, r := range value {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("contains control characters")
		}
	}
	return value, nil
}

// Page — страница каталога с метаданными для слоя представления.
type Page struct {
	Items      []Product
	PageIndex  int
	PageSize   int
	TotalItems int
	TotalPages int
	Sort       SortKey
	Keyword    string
	Category   string
}

// NewPage вырезает страницу из полностью отсортированного списка.
// Номер страницы за пределами выдачи даёт пустую страницу без ошибки.
func NewPage(sorted []Product, req PageRequest) Page {
	total := len(sorted)
	page := Page{
		Items:      []Product{},
		PageIndex:  req.PageIndex,
		PageSize:   req.PageSize,
		TotalItems: total,
		Sort:       req.Sort,
		Keyword:    req.Keyword,
		Category:   req.Category,
	}
	if req.PageSize <= 0 {
		return page
	}
	page.TotalPages = (total + req.PageSize - 1) / req.PageSize

	// индекс сравнивается до умножения: PageIndex*PageSize переполняет int
	if req.PageIndex < 0 || req.PageIndex >= page.TotalPages {
		return page
	}
	start := req.PageIndex * req.PageSize
	end := start + req.PageSize
	if end > total {
		end = total
	}
	page.Items = append(page.Items, sorted[start:end]...)
	return page
}
