package httpapi

import (
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Product — карточка товара в ответах API.
type Product struct {
	ID         string    `json:"id"`
	SellerID   string    `json:"seller_id,omitempty"`
	Category   string    `json:"category"`
	Name       string    `json:"name"`
	PriceMinor int64     `json:"price_minor"`
	Currency   string    `json:"currency,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type SalesCount struct {
	ProductID  string `json:"product_id"`
	TotalUnits int64  `json:"total_units"`
}

type ProductsResponse struct {
	Products []Product    `json:"products"`
	Counts   []SalesCount `json:"counts,omitempty"`
}

type HomeResponse struct {
	Interest   []Product `json:"interest"`
	Newest     []Product `json:"newest"`
	TopSellers []Product `json:"top_sellers"`
}

// PageResponse — страница каталога.
type PageResponse struct {
	Items      []Product `json:"items"`
	PageIndex  int       `json:"page"`
	PageSize   int       `json:"size"`
	TotalItems int       `json:"total_items"`
	TotalPages int       `json:"total_pages"`
	Sort       string    `json:"sort"`
	Keyword    string    `json:"q,omitempty"`
	Category   string    `json:"category,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// OrderLine — позиция заказа во входящем запросе.
type OrderLine struct {
	ID          string    `json:"id,omitempty"`
	ProductID   string    `json:"product_id"`
	BuyerID     string    `json:"buyer_id"`
	Quantity    int32     `json:"quantity"`
	PurchasedAt time.Time `json:"purchased_at"`
}

type RecordOrderLinesRequest struct {
	Lines []OrderLine `json:"lines"`
}

type UpsertProductsRequest struct {
	Products []Product `json:"products"`
}

func (l OrderLine) toDomain() domain.OrderLine {
	return domain.OrderLine{
		ID:          l.ID,
		ProductID:   l.ProductID,
		BuyerID:     l.BuyerID,
		Quantity:    l.Quantity,
		PurchasedAt: l.PurchasedAt,
	}
}

func (p Product) toDomain() domain.Product {
	return domain.Product{
		ID:         p.ID,
		SellerID:   p.SellerID,
		Category:   p.Category,
		Name:       p.Name,
		PriceMinor: p.PriceMinor,
		Currency:   p.Currency,
		CreatedAt:  p.CreatedAt,
	}
}

func toProducts(products []domain.Product) []Product {
	out := make([]Product, 0, len(products))
	for _, p := range products {
		out = append(out, Product{
			ID:         p.ID,
			SellerID:   p.SellerID,
			Category:   p.Category,
			Name:       p.Name,
			PriceMinor: p.PriceMinor,
			Currency:   p.Currency,
			CreatedAt:  p.CreatedAt.UTC(),
		})
	}
	return out
}

func toCounts(counts []domain.SalesCount) []SalesCount {
	out := make([]SalesCount, 0, len(counts))
	for _, c := range counts {
		out = append(out, SalesCount{ProductID: c.ProductID, TotalUnits: c.TotalUnits})
	}
	return out
}

func toPage(page domain.Page) PageResponse {
	return PageResponse{
		Items:      toProducts(page.Items),
		PageIndex:  page.PageIndex,
		PageSize:   page.PageSize,
		TotalItems: page.TotalItems,
		TotalPages: page.TotalPages,
		Sort:       string(page.Sort),
		Keyword:    page.Keyword,
		Category:   page.Category,
	}
}
