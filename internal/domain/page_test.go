package domain_test

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func makeProducts(n int) []domain.Product {
	now := time.Now().UTC()
	out := make([]domain.Product, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Product{
			ID:         string(rune('a' + i)),
			Name:       "product",
			PriceMinor: int64(100 * (i + 1)),
			CreatedAt:  now.Add(-time.Duration(i) * time.Minute),
		})
	}
	return out
}

func TestPageRequestNormalize_Defaults(t *testing.T) {
	req, err := domain.PageRequest{}.Normalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.PageSize != domain.DefaultPageSize {
		t.Fatalf("expected default page size %d, got %d", domain.DefaultPageSize, req.PageSize)
	}
	if req.Sort != domain.SortNewest {
		t.Fatalf("expected default sort newest, got %s", req.Sort)
	}
}

func TestPageRequestNormalize_Errors(t *testing.T) {
	cases := []struct {
		name string
		req  domain.PageRequest
		want error
	}{
		{name: "negative index", req: domain.PageRequest{PageIndex: -1}, want: domain.ErrInvalidPageIndex},
		{name: "negative size", req: domain.PageRequest{PageSize: -5}, want: domain.ErrInvalidPageSize},
		{name: "size too large", req: domain.PageRequest{PageSize: domain.MaxPageSize + 1}, want: domain.ErrInvalidPageSize},
		{name: "unknown sort", req: domain.PageRequest{Sort: "popular"}, want: domain.ErrInvalidSortKey},
		{name: "keyword too long", req: domain.PageRequest{Keyword: strings.Repeat("x", domain.MaxKeywordLength+1)}, want: domain.ErrMalformedKeyword},
		{name: "keyword control chars", req: domain.PageRequest{Keyword: "rose\x00"}, want: domain.ErrMalformedKeyword},
		{name: "category control chars", req: domain.PageRequest{Category: "flo\nwers"}, want: domain.ErrMalformedCategory},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.req.Normalize()
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !domain.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestParseSortKey(t *testing.T) {
	key, err := domain.ParseSortKey("")
	if err != nil || key != domain.SortNewest {
		t.Fatalf("empty sort must default to newest, got %q, %v", key, err)
	}
	key, err = domain.ParseSortKey(" priceDesc ")
	if err != nil || key != domain.SortPriceDesc {
		t.Fatalf("expected priceDesc, got %q, %v", key, err)
	}
	if _, err := domain.ParseSortKey("cheapest"); !errors.Is(err, domain.ErrInvalidSortKey) {
		t.Fatalf("expected ErrInvalidSortKey, got %v", err)
	}
}

func TestNewPage(t *testing.T) {
	products := makeProducts(12)

	first := domain.NewPage(products, domain.PageRequest{PageIndex: 0, PageSize: 10})
	if len(first.Items) != 10 || first.TotalPages != 2 || first.TotalItems != 12 {
		t.Fatalf("unexpected first page: items=%d pages=%d total=%d", len(first.Items), first.TotalPages, first.TotalItems)
	}

	second := domain.NewPage(products, domain.PageRequest{PageIndex: 1, PageSize: 10})
	if len(second.Items) != 2 || second.Items[0].ID != products[10].ID {
		t.Fatalf("unexpected second page: %+v", second.Items)
	}

	beyond := domain.NewPage(products, domain.PageRequest{PageIndex: 5, PageSize: 10})
	if len(beyond.Items) != 0 {
		t.Fatalf("page beyond results must be empty, got %d items", len(beyond.Items))
	}
	if beyond.Items == nil {
		t.Fatal("empty page must carry a non-nil slice")
	}
}

func TestIsValidation(t *testing.T) {
	if domain.IsValidation(domain.ErrProductNotFound) {
		t.Fatal("not found is not a validation error")
	}
	if domain.IsValidation(nil) {
		t.Fatal("nil is not a validation error")
	}
	if !domain.IsValidation(errors.Join(domain.ErrInvalidTopN, errors.New("extra"))) {
		t.Fatal("joined validation error must be detected")
	}
}

func TestNewPage_HugeIndexIsEmpty(t *testing.T) {
	products := makeProducts(12)

	cases := []domain.PageRequest{
		{PageIndex: 1 << 62, PageSize: 4},
		{PageIndex: math.MaxInt/2 + 1, PageSize: 2},
		{PageIndex: math.MaxInt, PageSize: domain.MaxPageSize},
	}
	for _, req := range cases {
		page := domain.NewPage(products, req)
		if len(page.Items) != 0 {
			t.Fatalf("page %d of size %d must be empty, got %d items", req.PageIndex, req.PageSize, len(page.Items))
		}
		if page.TotalItems != 12 || page.PageIndex != req.PageIndex {
			t.Fatalf("unexpected metadata: %+v", page)
		}
	}
}
