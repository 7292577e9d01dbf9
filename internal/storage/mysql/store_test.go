package mysql

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/sqlmigrate"
)

func getMySQLStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/storefront"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	store, err := Open(ctx, dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.MigrateUp(context.Background(), 0); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	if _, err := store.DB().Exec(`DELETE FROM order_lines`); err != nil {
		t.Fatalf("cleanup order_lines: %v", err)
	}
	if _, err := store.DB().Exec(`DELETE FROM products`); err != nil {
		t.Fatalf("cleanup products: %v", err)
	}
	return store
}

func TestInClause(t *testing.T) {
	clause, args := inClause([]string{"a", "b", "c"})
	if clause != "(?,?,?)" {
		t.Fatalf("unexpected clause: %s", clause)
	}
	if len(args) != 3 || args[1] != "b" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestMigrations_EmbeddedFilesAreValid(t *testing.T) {
	migrations, err := sqlmigrate.Load(migrationsFS, migrationsDir)
	if err != nil {
		t.Fatalf("load embedded migrations: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
}

func TestOpen_InvalidDSN(t *testing.T) {
	if _, err := Open(context.Background(), "not a dsn"); err == nil {
		t.Fatal("expected dsn parse error")
	}
}

func TestLedger_MySQL(t *testing.T) {
	store := getMySQLStore(t)
	ledger := NewLedger(store)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	err := ledger.Append(ctx,
		domain.OrderLine{ID: "l1", ProductID: "p1", BuyerID: "u1", Quantity: 1, PurchasedAt: now},
		domain.OrderLine{ID: "l2", ProductID: "p2", BuyerID: "u1", Quantity: 3, PurchasedAt: now.Add(time.Second)},
		domain.OrderLine{ID: "l1", ProductID: "p1", BuyerID: "u1", Quantity: 1, PurchasedAt: now},
	)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	all, err := ledger.LinesFor(ctx, domain.AllProducts())
	if err != nil {
		t.Fatalf("lines for all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(all))
	}
	if !all[0].PurchasedAt.Equal(now) {
		t.Errorf("purchased_at mismatch: %v vs %v", all[0].PurchasedAt, now)
	}

	p2, err := ledger.LinesFor(ctx, domain.RestrictTo("p2"))
	if err != nil {
		t.Fatalf("lines for p2: %v", err)
	}
	if len(p2) != 1 || p2[0].Quantity != 3 {
		t.Fatalf("unexpected p2 lines: %+v", p2)
	}
}

func TestCatalog_MySQL(t *testing.T) {
	store := getMySQLStore(t)
	catalog := NewCatalog(store)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	err := catalog.Upsert(ctx,
		domain.Product{ID: "p1", Category: "Flowers", Name: "Rose", PriceMinor: 100, CreatedAt: now},
		domain.Product{ID: "p2", Category: "books", Name: "Novel", PriceMinor: 200, CreatedAt: now},
	)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	flowers, err := catalog.ByCategory(ctx, "flowers")
	if err != nil {
		t.Fatalf("by category: %v", err)
	}
	if len(flowers) != 1 || flowers[0].ID != "p1" {
		t.Fatalf("unexpected flowers: %+v", flowers)
	}

	byIDs, err := catalog.ByIDs(ctx, []string{"p2", "ghost"})
	if err != nil {
		t.Fatalf("by ids: %v", err)
	}
	if len(byIDs) != 1 {
		t.Fatalf("expected 1 product, got %d", len(byIDs))
	}

	if err := catalog.Upsert(ctx, domain.Product{ID: "bad"}); !errors.Is(err, domain.ErrInvalidProduct) {
		t.Fatalf("expected ErrInvalidProduct, got %v", err)
	}
}
