// Package pebble хранит ledger и каталог во встроенном LSM-хранилище Pebble.
//
// Схема ключей (разделитель 0x00):
//
//	line\x00<productID>\x00<purchasedAt, 8 байт big-endian>\x00<lineID> -> JSON позиции
//	lineid\x00<lineID>                                                   -> ключ позиции
//	product\x00<productID>                                               -> JSON карточки
//
// Ограниченный scope читается префиксным сканом по каждому товару.
package pebble

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const sep = 0x00

var (
	linePrefix    = []byte("line\x00")
	lineIDPrefix  = []byte("lineid\x00")
	productPrefix = []byte("product\x00")
)

// Store реализует domain.Ledger и domain.Catalog поверх Pebble.
type Store struct {
	db *pebble.DB
	// writeMu сериализует проверку дубликатов и запись пачки.
	writeMu sync.Mutex
}

// Open открывает (или создаёт) базу в каталоге dir.
func Open(dir string) (*Store, error) {
	opts := &pebble.Options{
		MemTableSize:             64 << 20,
		MaxConcurrentCompactions: func() int { return 2 },
		L0CompactionThreshold:    4,
		L0StopWritesThreshold:    12,
	}
	db, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close закрывает базу.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping проверяет, что база открыта и читается.
func (s *Store) Ping(context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("pebble store is not initialized")
	}
	_, closer, err := s.db.Get(productPrefix)
	if err == nil {
		return closer.Close()
	}
	if errors.Is(err, pebble.ErrNotFound) {
		return nil
	}
	return err
}

type lineRecord struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	BuyerID     string    `json:"buyer_id"`
	Quantity    int32     `json:"quantity"`
	PurchasedAt time.Time `json:"purchased_at"`
}

type productRecord struct {
	ID         string    `json:"id"`
	SellerID   string    `json:"seller_id"`
	Category   string    `json:"category"`
	Name       string    `json:"name"`
	PriceMinor int64     `json:"price_minor"`
	Currency   string    `json:"currency"`
	CreatedAt  time.Time `json:"created_at"`
}

// Append записывает позиции одной пачкой. Позиции с уже известным ID пропускаются.
func (s *Store) Append(ctx context.Context, lines ...domain.OrderLine) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, line := range lines {
		if err := line.Validate(); err != nil {
			return err
		}
		if line.ID == "" {
			return fmt.Errorf("%w: id is required", domain.ErrInvalidOrderLine)
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	batch := s.db.NewBatch()
	defer batch.Close()

	inBatch := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if _, dup := inBatch[line.ID]; dup {
			continue
		}
		exists, err := s.has(lineIDKey(line.ID))
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		inBatch[line.ID] = struct{}{}

		value, err := json.Marshal(lineRecord{
			ID:          line.ID,
			ProductID:   line.ProductID,
			BuyerID:     line.BuyerID,
			Quantity:    line.Quantity,
			PurchasedAt: line.PurchasedAt.UTC(),
		})
		if err != nil {
			return fmt.Errorf("encode order line: %w", err)
		}
		key := lineKey(line)
		if err := batch.Set(key, value, nil); err != nil {
			return fmt.Errorf("batch set line: %w", err)
		}
		if err := batch.Set(lineIDKey(line.ID), key, nil); err != nil {
			return fmt.Errorf("batch set line id: %w", err)
		}
	}

	if batch.Empty() {
		return nil
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit order lines: %w", err)
	}
	return nil
}

// LinesFor возвращает позиции scope в хронологическом порядке.
func (s *Store) LinesFor(ctx context.Context, scope domain.Scope) ([]domain.OrderLine, error) {
	if scope.Empty() {
		return []domain.OrderLine{}, nil
	}

	var prefixes [][]byte
	if scope.Restricted() {
		for _, id := range scope.IDs() {
			prefixes = append(prefixes, productLinePrefix(id))
		}
	} else {
		prefixes = [][]byte{linePrefix}
	}

	lines := make([]domain.OrderLine, 0)
	for _, prefix := range prefixes {
		err := s.scan(ctx, prefix, func(value []byte) error {
			var rec lineRecord
			if err := json.Unmarshal(value, &rec); err != nil {
				return fmt.Errorf("decode order line: %w", err)
			}
			lines = append(lines, domain.OrderLine{
				ID:          rec.ID,
				ProductID:   rec.ProductID,
				BuyerID:     rec.BuyerID,
				Quantity:    rec.Quantity,
				PurchasedAt: rec.PurchasedAt,
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(lines, func(i, j int) bool {
		if !lines[i].PurchasedAt.Equal(lines[j].PurchasedAt) {
			return lines[i].PurchasedAt.Before(lines[j].PurchasedAt)
		}
		return lines[i].ID < lines[j].ID
	})
	return lines, nil
}

// Upsert записывает карточки товаров.
func (s *Store) Upsert(ctx context.Context, products ...domain.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	for _, p := range products {
		if err := p.Validate(); err != nil {
			return err
		}
		value, err := json.Marshal(productRecord{
			ID:         p.ID,
			SellerID:   p.SellerID,
			Category:   p.Category,
			Name:       p.Name,
			PriceMinor: p.PriceMinor,
			Currency:   p.Currency,
			CreatedAt:  p.CreatedAt.UTC(),
		})
		if err != nil {
			return fmt.Errorf("encode product: %w", err)
		}
		if err := batch.Set(productKey(p.ID), value, nil); err != nil {
			return fmt.Errorf("batch set product: %w", err)
		}
	}
	if batch.Empty() {
		return nil
	}
	return batch.Commit(pebble.Sync)
}

// ByIDs возвращает найденные карточки в порядке ids.
func (s *Store) ByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	products := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		value, closer, err := s.db.Get(productKey(id))
		if errors.Is(err, pebble.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get product %s: %w", id, err)
		}
		p, decodeErr := decodeProduct(value)
		_ = closer.Close()
		if decodeErr != nil {
			return nil, decodeErr
		}
		products = append(products, p)
	}
	return products, nil
}

// ByCategory фильтрует каталог по категории без учёта регистра.
func (s *Store) ByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Product, 0)
	for _, p := range all {
		if strings.EqualFold(p.Category, category) {
			result = append(result, p)
		}
	}
	return result, nil
}

// List возвращает весь каталог в порядке ID.
func (s *Store) List(ctx context.Context) ([]domain.Product, error) {
	products := make([]domain.Product, 0)
	err := s.scan(ctx, productPrefix, func(value []byte) error {
		p, err := decodeProduct(value)
		if err != nil {
			return err
		}
		products = append(products, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) scan(ctx context.Context, prefix []byte, fn func(value []byte) error) error {
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("pebble iterator: %w", err)
	}
	defer it.Close()

	for it.First(); it.Valid(); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		value := append([]byte(nil), it.Value()...)
		if err := fn(value); err != nil {
			return err
		}
	}
	return it.Error()
}

func (s *Store) has(key []byte) (bool, error) {
	_, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, closer.Close()
}

func decodeProduct(value []byte) (domain.Product, error) {
	var rec productRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return domain.Product{}, fmt.Errorf("decode product: %w", err)
	}
	return domain.Product{
		ID:         rec.ID,
		SellerID:   rec.SellerID,
		Category:   rec.Category,
		Name:       rec.Name,
		PriceMinor: rec.PriceMinor,
		Currency:   rec.Currency,
		CreatedAt:  rec.CreatedAt,
	}, nil
}

func productLinePrefix(productID string) []byte {
	key := make([]byte, 0, len(linePrefix)+len(productID)+1)
	key = append(key, linePrefix...)
	key = append(key, productID...)
	return append(key, sep)
}

func lineKey(line domain.OrderLine) []byte {
	key := productLinePrefix(line.ProductID)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(line.PurchasedAt.UTC().UnixNano()))
	key = append(key, ts[:]...)
	key = append(key, sep)
	return append(key, line.ID...)
}

func lineIDKey(id string) []byte {
	return append(append([]byte(nil), lineIDPrefix...), id...)
}

func productKey(id string) []byte {
	return append(append([]byte(nil), productPrefix...), id...)
}

// prefixUpperBound возвращает наименьший ключ, больший всех ключей с данным префиксом.
func prefixUpperBound(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

var (
	_ domain.Ledger  = (*Store)(nil)
	_ domain.Catalog = (*Store)(nil)
)
