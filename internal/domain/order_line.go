package domain

import (
	"fmt"
	"strings"
	"time"
)

// OrderLine — одна зафиксированная позиция заказа в ledger.
// После записи не изменяется; ядро ранжирования только читает её.
type OrderLine struct {
	// ID позиции нужен для идемпотентной записи и аудита.
	ID string
	// идентификатор проданного товара
	ProductID string
	// идентификатор покупателя
	BuyerID string
	// проданные единицы, > 0
	Quantity int32
	// момент фиксации покупки
	PurchasedAt time.Time
}

// Validate проверяет инварианты позиции перед записью в ledger.
func (l OrderLine) Validate() error {
	switch {
	case strings.TrimSpace(l.ProductID) == "":
		return fmt.Errorf("%w: product_id is required", ErrInvalidOrderLine)
	case strings.TrimSpace(l.BuyerID) == "":
		return fmt.Errorf("%w: buyer_id is required", ErrInvalidOrderLine)
	case l.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be greater than zero", ErrInvalidOrderLine)
	case l.PurchasedAt.IsZero():
		return fmt.Errorf("%w: purchased_at is required", ErrInvalidOrderLine)
	}
	return nil
}

// SalesCount — производное значение: суммарно проданные единицы товара.
// Не хранится, пересчитывается на каждый запрос в пределах заданного scope.
type SalesCount struct {
	ProductID  string
	TotalUnits int64
}
