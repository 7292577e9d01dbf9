package domain

import (
	"fmt"
	"strings"
	"time"
)

// Product — карточка товара каталога. Ядро только читает каталог.
type Product struct {
	ID       string
	SellerID string
	Category string
	Name     string
	// PriceMinor — цена в минимальных денежных единицах.
	PriceMinor int64
	Currency   string
	CreatedAt  time.Time
}

// Validate проверяет базовые инварианты карточки (используется при загрузке каталога).
func (p Product) Validate() error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return fmt.Errorf("%w: product id is required", ErrInvalidProduct)
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: product name is required", ErrInvalidProduct)
	case p.PriceMinor < 0:
		return fmt.Errorf("%w: price must be non-negative", ErrInvalidProduct)
	case p.CreatedAt.IsZero():
		return fmt.Errorf("%w: created_at is required", ErrInvalidProduct)
	}
	return nil
}
