package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const productColumns = `SELECT id, seller_id, category, name, price_minor, currency, created_at FROM products`

// Catalog — каталог товаров в MySQL.
type Catalog struct {
	db *sql.DB
}

// NewCatalog создаёт MySQL-реализацию каталога.
func NewCatalog(store *Store) *Catalog {
	return &Catalog{db: store.DB()}
}

// Upsert создаёт или обновляет карточки.
func (c *Catalog) Upsert(ctx context.Context, products ...domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	for _, p := range products {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, p := range products {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, seller_id, category, name, price_minor, currency, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				seller_id = VALUES(seller_id),
				category = VALUES(category),
				name = VALUES(name),
				price_minor = VALUES(price_minor),
				currency = VALUES(currency),
				created_at = VALUES(created_at)`,
			p.ID, p.SellerID, p.Category, p.Name, p.PriceMinor, p.Currency, p.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// ByIDs возвращает найденные карточки.
func (c *Catalog) ByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}
	in, args := inClause(ids)
	return c.query(ctx, productColumns+` WHERE id IN `+in, args...)
}

// ByCategory сравнивает категорию без учёта регистра (utf8mb4_unicode_ci).
func (c *Catalog) ByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	return c.query(ctx, productColumns+` WHERE category = ? ORDER BY id`, category)
}

// List возвращает весь каталог.
func (c *Catalog) List(ctx context.Context) ([]domain.Product, error) {
	return c.query(ctx, productColumns+` ORDER BY id`)
}

func (c *Catalog) query(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.SellerID, &p.Category, &p.Name, &p.PriceMinor, &p.Currency, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

var _ domain.Catalog = (*Catalog)(nil)
