package kafka

import (
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// EventType определяет тип события
type EventType string

const (
	// EventTypeOrderLineRecorded — позиция заказа зафиксирована в магазине.
	EventTypeOrderLineRecorded EventType = "order_line.recorded"
	// EventTypeProductUpserted — карточка товара создана или изменена.
	EventTypeProductUpserted EventType = "product.upserted"
)

// Topics для Kafka
const (
	TopicOrderLines      = "storefront.order-lines"
	TopicProducts        = "storefront.products"
	TopicDeadLetterQueue = "storefront.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// OrderLineEvent — позиция заказа в том виде, в каком её публикует магазин.
type OrderLineEvent struct {
	EventType   EventType `json:"event_type"`
	LineID      string    `json:"line_id"`
	ProductID   string    `json:"product_id"`
	BuyerID     string    `json:"buyer_id"`
	Quantity    int32     `json:"quantity"`
	PurchasedAt time.Time `json:"purchased_at"`
	Timestamp   time.Time `json:"timestamp"`
}

// ProductEvent — карточка товара.
type ProductEvent struct {
	EventType  EventType `json:"event_type"`
	ProductID  string    `json:"product_id"`
	SellerID   string    `json:"seller_id"`
	Category   string    `json:"category"`
	Name       string    `json:"name"`
	PriceMinor int64     `json:"price_minor"`
	Currency   string    `json:"currency"`
	CreatedAt  time.Time `json:"created_at"`
	Timestamp  time.Time `json:"timestamp"`
}

// DLQMessage — конверт сообщения, не обработанного после всех попыток.
type DLQMessage struct {
	OriginalTopic     string    `json:"original_topic"`
	OriginalPartition int32     `json:"original_partition"`
	OriginalOffset    int64     `json:"original_offset"`
	OriginalKey       string    `json:"original_key"`
	OriginalValue     string    `json:"original_value"`
	ErrorMessage      string    `json:"error_message"`
	FailedAt          time.Time `json:"failed_at"`
	RetryCount        int       `json:"retry_count"`
}

// NewOrderLineEvent создает событие из позиции ledger
func NewOrderLineEvent(line domain.OrderLine) *OrderLineEvent {
	return &OrderLineEvent{
		EventType:   EventTypeOrderLineRecorded,
		LineID:      line.ID,
		ProductID:   line.ProductID,
		BuyerID:     line.BuyerID,
		Quantity:    line.Quantity,
		PurchasedAt: line.PurchasedAt.UTC(),
		Timestamp:   time.Now(),
	}
}

// NewProductEvent создает событие из карточки товара
func NewProductEvent(p domain.Product) *ProductEvent {
	return &ProductEvent{
		EventType:  EventTypeProductUpserted,
		ProductID:  p.ID,
		SellerID:   p.SellerID,
		Category:   p.Category,
		Name:       p.Name,
		PriceMinor: p.PriceMinor,
		Currency:   p.Currency,
		CreatedAt:  p.CreatedAt.UTC(),
		Timestamp:  time.Now(),
	}
}

// OrderLine переводит событие в позицию ledger.
func (e *OrderLineEvent) OrderLine() domain.OrderLine {
	return domain.OrderLine{
		ID:          e.LineID,
		ProductID:   e.ProductID,
		BuyerID:     e.BuyerID,
		Quantity:    e.Quantity,
		PurchasedAt: e.PurchasedAt,
	}
}

// Product переводит событие в карточку каталога.
func (e *ProductEvent) Product() domain.Product {
	return domain.Product{
		ID:         e.ProductID,
		SellerID:   e.SellerID,
		Category:   e.Category,
		Name:       e.Name,
		PriceMinor: e.PriceMinor,
		Currency:   e.Currency,
		CreatedAt:  e.CreatedAt,
	}
}
