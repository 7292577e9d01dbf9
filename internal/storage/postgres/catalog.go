package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const productColumns = `SELECT id, seller_id, category, name, price_minor, currency, created_at FROM products`

type catalogRepository struct {
	db *sql.DB
}

// NewCatalog создаёт PostgreSQL-реализацию каталога.
func NewCatalog(store *Store) domain.Catalog {
	return &catalogRepository{db: store.DB()}
}

func (r *catalogRepository) Upsert(ctx context.Context, products ...domain.Product) (err error) {
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

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, p := range products {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO products (id, seller_id, category, name, price_minor, currency, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (id) DO UPDATE SET
				seller_id = EXCLUDED.seller_id,
				category = EXCLUDED.category,
				name = EXCLUDED.name,
				price_minor = EXCLUDED.price_minor,
				currency = EXCLUDED.currency,
				created_at = EXCLUDED.created_at
		`, p.ID, p.SellerID, p.Category, p.Name, p.PriceMinor, p.Currency, p.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit products: %w", err)
	}
	return nil
}

func (r *catalogRepository) ByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}
	return r.query(ctx, productColumns+` WHERE id = ANY($1)`, ids)
}

func (r *catalogRepository) ByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	return r.query(ctx, productColumns+` WHERE LOWER(category) = LOWER($1) ORDER BY id`, category)
}

func (r *catalogRepository) List(ctx context.Context) ([]domain.Product, error) {
	return r.query(ctx, productColumns+` ORDER BY id`)
}

func (r *catalogRepository) query(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
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
		p.CreatedAt = p.CreatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

var _ domain.Catalog = (*catalogRepository)(nil)
