package domain

import (
	"context"
	"time"
)

// LedgerReader даёт доступ только на чтение к зафиксированным позициям заказов.
type LedgerReader interface {
	// LinesFor возвращает позиции товаров из scope. Неограниченный scope —
	// весь ledger, ограниченный пустой: пустой результат.
	LinesFor(ctx context.Context, scope Scope) ([]OrderLine, error)
}

// LedgerWriter дописывает позиции в ledger (используется только ingest-путём).
type LedgerWriter interface {
	// Append сохраняет позиции. Повторная запись позиции с тем же ID игнорируется.
	Append(ctx context.Context, lines ...OrderLine) error
}

// Ledger объединяет чтение и запись ledger для хранилищ, поддерживающих оба режима.
type Ledger interface {
	LedgerReader
	LedgerWriter
}

// CatalogReader описывает чтение каталога товаров.
type CatalogReader interface {
	// ByIDs возвращает найденные товары; отсутствующие id пропускаются, порядок не гарантируется.
	ByIDs(ctx context.Context, ids []string) ([]Product, error)
	// ByCategory возвращает товары категории (сравнение без учёта регистра).
	ByCategory(ctx context.Context, category string) ([]Product, error)
	// List возвращает весь каталог.
	List(ctx context.Context) ([]Product, error)
}

// CatalogWriter загружает и обновляет карточки товаров.
type CatalogWriter interface {
	Upsert(ctx context.Context, products ...Product) error
}

// Catalog объединяет чтение и запись каталога.
type Catalog interface {
	CatalogReader
	CatalogWriter
}

// RankingCache хранит ранжированные последовательности id.
// Ключ кэша строится из операции, сигнатуры scope, topN и параметров фильтра.
type RankingCache interface {
	// Get возвращает ErrCacheMiss, если записи нет или она устарела.
	Get(ctx context.Context, key string) ([]string, error)
	// Generation возвращает поколение scope. Оно растёт при каждой инвалидации,
	// затрагивающей scope; читать его нужно до вычисления ранжирования.
	Generation(ctx context.Context, scope Scope) (int64, error)
	// Set сохраняет ранжирование и связывает ключ с товарами scope для инвалидации.
	// Если поколение scope уже не равно generation, запись не сохраняется
	// и возвращается ErrStaleRanking.
	Set(ctx context.Context, key string, scope Scope, ids []string, ttl time.Duration, generation int64) error
	// InvalidateProducts удаляет все записи, на которые влияет новая продажа этих товаров:
	// записи неограниченного scope и записи, чей scope содержит товар.
	InvalidateProducts(ctx context.Context, productIDs ...string) error
}
