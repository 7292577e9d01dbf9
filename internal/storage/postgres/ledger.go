package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type ledgerRepository struct {
	db *sql.DB
}

// NewLedger создаёт PostgreSQL-реализацию ledger позиций заказов.
func NewLedger(store *Store) domain.Ledger {
	return &ledgerRepository{db: store.DB()}
}

func (r *ledgerRepository) Append(ctx context.Context, lines ...domain.OrderLine) (err error) {
	if len(lines) == 0 {
		return nil
	}
	for _, line := range lines {
		if err := line.Validate(); err != nil {
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

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO order_lines (id, product_id, buyer_id, quantity, purchased_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("prepare insert order line: %w", err)
	}
	defer stmt.Close()

	for _, line := range lines {
		if _, err = stmt.ExecContext(ctx,
			line.ID, line.ProductID, line.BuyerID, line.Quantity, line.PurchasedAt.UTC(),
		); err != nil {
			return fmt.Errorf("insert order line %s: %w", line.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit order lines: %w", err)
	}
	return nil
}

func (r *ledgerRepository) LinesFor(ctx context.Context, scope domain.Scope) ([]domain.OrderLine, error) {
	if scope.Empty() {
		return []domain.OrderLine{}, nil
	}

	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	const columns = `SELECT id, product_id, buyer_id, quantity, purchased_at FROM order_lines`
	var (
		rows *sql.Rows
		err  error
	)
	if scope.Restricted() {
		rows, err = r.db.QueryContext(ctx, columns+`
			WHERE product_id = ANY($1)
			ORDER BY purchased_at, id
		`, scope.IDs())
	} else {
		rows, err = r.db.QueryContext(ctx, columns+` ORDER BY purchased_at, id`)
	}
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ID, &line.ProductID, &line.BuyerID, &line.Quantity, &line.PurchasedAt); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		line.PurchasedAt = line.PurchasedAt.UTC()
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}
	return lines, nil
}

var _ domain.Ledger = (*ledgerRepository)(nil)
