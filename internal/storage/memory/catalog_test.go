package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func newProduct(id, category string) domain.Product {
	return domain.Product{
		ID:         id,
		Category:   category,
		Name:       "product " + id,
		PriceMinor: 1000,
		Currency:   "USD",
		CreatedAt:  time.Now().UTC(),
	}
}

func TestCatalog_UpsertAndByIDs(t *testing.T) {
	ctx := context.Background()
	catalog := memory.NewCatalog()

	if err := catalog.Upsert(ctx, newProduct("p1", "flowers"), newProduct("p2", "books")); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	products, err := catalog.ByIDs(ctx, []string{"p2", "missing", "p1"})
	if err != nil {
		t.Fatalf("by ids failed: %v", err)
	}
	if len(products) != 2 || products[0].ID != "p2" || products[1].ID != "p1" {
		t.Fatalf("unexpected products: %+v", products)
	}

	updated := newProduct("p1", "flowers")
	updated.Name = "renamed"
	if err := catalog.Upsert(ctx, updated); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	products, _ = catalog.ByIDs(ctx, []string{"p1"})
	if products[0].Name != "renamed" {
		t.Fatalf("expected upsert to overwrite, got %q", products[0].Name)
	}
}

func TestCatalog_ByCategoryIgnoresCase(t *testing.T) {
	ctx := context.Background()
	catalog := memory.NewCatalog()
	_ = catalog.Upsert(ctx, newProduct("p1", "Flowers"), newProduct("p2", "flowers"), newProduct("p3", "books"))

	products, err := catalog.ByCategory(ctx, "FLOWERS")
	if err != nil {
		t.Fatalf("by category failed: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 flowers, got %d", len(products))
	}

	all, _ := catalog.List(ctx)
	if len(all) != 3 {
		t.Fatalf("expected 3 products, got %d", len(all))
	}
}
