package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Ledger — ledger позиций заказов в MySQL.
type Ledger struct {
	db *sql.DB
}

// NewLedger создаёт MySQL-реализацию ledger.
func NewLedger(store *Store) *Ledger {
	return &Ledger{db: store.DB()}
}

// Append дописывает позиции; дубликаты по ID пропускаются (INSERT IGNORE).
func (l *Ledger) Append(ctx context.Context, lines ...domain.OrderLine) error {
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

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, line := range lines {
		if _, err := tx.ExecContext(ctx, `
			INSERT IGNORE INTO order_lines (id, product_id, buyer_id, quantity, purchased_at)
			VALUES (?, ?, ?, ?, ?)`,
			line.ID, line.ProductID, line.BuyerID, line.Quantity, line.PurchasedAt.UTC(),
		); err != nil {
			return fmt.Errorf("insert order line %s: %w", line.ID, err)
		}
	}

	return tx.Commit()
}

// LinesFor читает позиции scope в хронологическом порядке.
func (l *Ledger) LinesFor(ctx context.Context, scope domain.Scope) ([]domain.OrderLine, error) {
	if scope.Empty() {
		return []domain.OrderLine{}, nil
	}

	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	query := `SELECT id, product_id, buyer_id, quantity, purchased_at FROM order_lines`
	var args []any
	if scope.Restricted() {
		var in string
		in, args = inClause(scope.IDs())
		query += ` WHERE product_id IN ` + in
	}
	query += ` ORDER BY purchased_at, id`

	rows, err := l.db.QueryContext(ctx, query, args...)
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
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}
	return lines, nil
}

var _ domain.Ledger = (*Ledger)(nil)
