package grpcsvc

import (
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/recommend"
)

// Поля запросов и ответов RankingService. Сообщения передаются как
// google.protobuf.Struct, имена полей в snake_case.
const (
	fieldTopN       = "top_n"
	fieldWithCounts = "with_counts"
	fieldCategory   = "category"
	fieldInterest   = "interest"
	fieldLimit      = "limit"
	fieldPageIndex  = "page_index"
	fieldPageSize   = "page_size"
	fieldSort       = "sort"
	fieldKeyword    = "keyword"
	fieldProducts   = "products"
	fieldCounts     = "counts"
	fieldLines      = "lines"
)

func intField(req *structpb.Struct, name string, def int) (int, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return def, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number", domain.ErrValidation, name)
	}
	if n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrValidation, name)
	}
	return int(n.NumberValue), nil
}

func stringField(req *structpb.Struct, name string) (string, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return "", nil
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", domain.ErrValidation, name)
	}
	return s.StringValue, nil
}

func boolField(req *structpb.Struct, name string) (bool, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return false, nil
	}
	b, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a bool", domain.ErrValidation, name)
	}
	return b.BoolValue, nil
}

func pageRequestFrom(req *structpb.Struct) (domain.PageRequest, error) {
	var (
		out domain.PageRequest
		err error
	)
	if out.PageIndex, err = intField(req, fieldPageIndex, 0); err != nil {
		return out, err
	}
	if out.PageSize, err = intField(req, fieldPageSize, 0); err != nil {
		return out, err
	}
	sort, err := stringField(req, fieldSort)
	if err != nil {
		return out, err
	}
	if out.Sort, err = domain.ParseSortKey(sort); err != nil {
		return out, err
	}
	if out.Keyword, err = stringField(req, fieldKeyword); err != nil {
		return out, err
	}
	if out.Category, err = stringField(req, fieldCategory); err != nil {
		return out, err
	}
	return out, nil
}

func productValue(p domain.Product) map[string]any {
	return map[string]any{
		"id":          p.ID,
		"seller_id":   p.SellerID,
		"category":    p.Category,
		"name":        p.Name,
		"price_minor": float64(p.PriceMinor),
		"currency":    p.Currency,
		"created_at":  p.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func productList(products []domain.Product) []any {
	out := make([]any, 0, len(products))
	for _, p := range products {
		out = append(out, productValue(p))
	}
	return out
}

func countList(counts []domain.SalesCount) []any {
	out := make([]any, 0, len(counts))
	for _, c := range counts {
		out = append(out, map[string]any{
			"product_id":  c.ProductID,
			"total_units": float64(c.TotalUnits),
		})
	}
	return out
}

func encodePage(page domain.Page) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"items":        productList(page.Items),
		fieldPageIndex: page.PageIndex,
		fieldPageSize:  page.PageSize,
		"total_items":  page.TotalItems,
		"total_pages":  page.TotalPages,
		fieldSort:      string(page.Sort),
		fieldKeyword:   page.Keyword,
		fieldCategory:  page.Category,
	})
}

func encodeProducts(products []domain.Product) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{fieldProducts: productList(products)})
}

func encodeHome(home recommend.Home) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		fieldInterest: productList(home.Interest),
		"newest":      productList(home.Newest),
		"top_sellers": productList(home.TopSellers),
	})
}

func listField(req *structpb.Struct, name string) ([]*structpb.Struct, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s is required", domain.ErrValidation, name)
	}
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%w: %s must be a list", domain.ErrValidation, name)
	}
	out := make([]*structpb.Struct, 0, len(list.GetValues()))
	for i, item := range list.GetValues() {
		s := item.GetStructValue()
		if s == nil {
			return nil, fmt.Errorf("%w: %s[%d] must be an object", domain.ErrValidation, name, i)
		}
		out = append(out, s)
	}
	return out, nil
}

func timeField(req *structpb.Struct, name string) (time.Time, error) {
	raw, err := stringField(req, name)
	if err != nil || raw == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", domain.ErrValidation, name, err)
	}
	return t, nil
}

func decodeOrderLine(s *structpb.Struct) (domain.OrderLine, error) {
	var (
		line domain.OrderLine
		err  error
	)
	if line.ID, err = stringField(s, "id"); err != nil {
		return line, err
	}
	if line.ProductID, err = stringField(s, "product_id"); err != nil {
		return line, err
	}
	if line.BuyerID, err = stringField(s, "buyer_id"); err != nil {
		return line, err
	}
	qty, err := intField(s, "quantity", 0)
	if err != nil {
		return line, err
	}
	line.Quantity = int32(qty)
	if line.PurchasedAt, err = timeField(s, "purchased_at"); err != nil {
		return line, err
	}
	return line, nil
}

func decodeProduct(s *structpb.Struct) (domain.Product, error) {
	var (
		p   domain.Product
		err error
	)
	fields := []struct {
		name string
		dst  *string
	}{
		{"id", &p.ID},
		{"seller_id", &p.SellerID},
		{"category", &p.Category},
		{"name", &p.Name},
		{"currency", &p.Currency},
	}
	for _, f := range fields {
		if *f.dst, err = stringField(s, f.name); err != nil {
			return p, err
		}
	}
	price, ok := s.GetFields()["price_minor"]
	if ok {
		n, isNum := price.GetKind().(*structpb.Value_NumberValue)
		if !isNum || n.NumberValue != math.Trunc(n.NumberValue) {
			return p, fmt.Errorf("%w: price_minor must be an integer", domain.ErrValidation)
		}
		p.PriceMinor = int64(n.NumberValue)
	}
	if p.CreatedAt, err = timeField(s, "created_at"); err != nil {
		return p, err
	}
	return p, nil
}

// EncodeOrderLine переводит позицию в элемент списка lines запроса RecordOrderLines.
func EncodeOrderLine(line domain.OrderLine) map[string]any {
	return map[string]any{
		"id":           line.ID,
		"product_id":   line.ProductID,
		"buyer_id":     line.BuyerID,
		"quantity":     float64(line.Quantity),
		"purchased_at": line.PurchasedAt.UTC().Format(time.RFC3339Nano),
	}
}

// EncodeProduct переводит карточку в элемент списка products запроса UpsertProducts.
func EncodeProduct(p domain.Product) map[string]any {
	return productValue(p)
}
