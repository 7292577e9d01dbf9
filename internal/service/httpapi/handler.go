package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/recommend"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const (
	defaultTopN   = 10
	maxBodyBytes  = 1 << 20
	defaultNewest = recommend.HomeNewest
)

// Recommender — сценарии чтения, которые обслуживает API.
type Recommender interface {
	TopSellers(ctx context.Context, topN int) ([]domain.Product, error)
	SalesCounts(ctx context.Context, topN int) ([]domain.SalesCount, error)
	InterestTop(ctx context.Context, category string) ([]domain.Product, error)
	BestProducts(ctx context.Context, req domain.PageRequest) (domain.Page, error)
	SearchCatalog(ctx context.Context, req domain.PageRequest) (domain.Page, error)
	NewestProducts(ctx context.Context, n int) ([]domain.Product, error)
	Home(ctx context.Context, interest string) (recommend.Home, error)
}

// Recorder принимает позиции заказов и карточки товаров.
type Recorder interface {
	Record(ctx context.Context, lines ...domain.OrderLine) error
	UpsertProducts(ctx context.Context, products ...domain.Product) error
}

// Handler обрабатывает запросы /api/v1.
type Handler struct {
	recommender Recommender
	recorder    Recorder
	logger      *log.Entry
}

// NewHandler создаёт обработчик. recorder может быть nil (API только на чтение).
func NewHandler(recommender Recommender, recorder Recorder, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	return &Handler{recommender: recommender, recorder: recorder, logger: logger}
}

// Home обслуживает GET /api/v1/home?interest=<category>
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	home, err := h.recommender.Home(r.Context(), r.URL.Query().Get("interest"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, HomeResponse{
		Interest:   toProducts(home.Interest),
		Newest:     toProducts(home.Newest),
		TopSellers: toProducts(home.TopSellers),
	})
}

// TopSellers обслуживает GET /api/v1/products/top?top_n=10&with_counts=true
func (h *Handler) TopSellers(w http.ResponseWriter, r *http.Request) {
	topN, err := queryInt(r, "top_n", defaultTopN)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	withCounts, _ := strconv.ParseBool(r.URL.Query().Get("with_counts"))

	products, err := h.recommender.TopSellers(r.Context(), topN)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	resp := ProductsResponse{Products: toProducts(products)}
	if withCounts {
		counts, err := h.recommender.SalesCounts(r.Context(), topN)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		resp.Counts = toCounts(counts)
	}
	writeJSON(w, http.StatusOK, resp)
}

// InterestTop обслуживает GET /api/v1/products/interest/{category}
func (h *Handler) InterestTop(w http.ResponseWriter, r *http.Request) {
	products, err := h.recommender.InterestTop(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProductsResponse{Products: toProducts(products)})
}

// BestProducts обслуживает GET /api/v1/products/best?page=0&size=12&sort=newest&q=&category=
func (h *Handler) BestProducts(w http.ResponseWriter, r *http.Request) {
	h.servePage(w, r, h.recommender.BestProducts)
}

// Search обслуживает GET /api/v1/products/search с теми же параметрами.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	h.servePage(w, r, h.recommender.SearchCatalog)
}

// Newest обслуживает GET /api/v1/products/newest?limit=8
func (h *Handler) Newest(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultNewest)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	products, err := h.recommender.NewestProducts(r.Context(), limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProductsResponse{Products: toProducts(products)})
}

// RecordOrderLines обслуживает POST /api/v1/order-lines
func (h *Handler) RecordOrderLines(w http.ResponseWriter, r *http.Request) {
	if h.recorder == nil {
		writeError(w, http.StatusNotImplemented, "ingest_disabled", "ingest is disabled")
		return
	}
	var req RecordOrderLinesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	lines := make([]domain.OrderLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, l.toDomain())
	}
	if err := h.recorder.Record(r.Context(), lines...); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"recorded": len(lines)})
}

// UpsertProducts обслуживает POST /api/v1/products
func (h *Handler) UpsertProducts(w http.ResponseWriter, r *http.Request) {
	if h.recorder == nil {
		writeError(w, http.StatusNotImplemented, "ingest_disabled", "ingest is disabled")
		return
	}
	var req UpsertProductsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	products := make([]domain.Product, 0, len(req.Products))
	for _, p := range req.Products {
		products = append(products, p.toDomain())
	}
	if err := h.recorder.UpsertProducts(r.Context(), products...); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"upserted": len(products)})
}

// Version обслуживает GET /api/v1/version
func (h *Handler) Version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, version.Current())
}

func (h *Handler) servePage(w http.ResponseWriter, r *http.Request, fetch func(context.Context, domain.PageRequest) (domain.Page, error)) {
	req, err := pageRequestFrom(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	page, err := fetch(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPage(page))
}

func pageRequestFrom(r *http.Request) (domain.PageRequest, error) {
	var (
		req domain.PageRequest
		err error
	)
	if req.PageIndex, err = queryInt(r, "page", 0); err != nil {
		return req, err
	}
	if req.PageSize, err = queryInt(r, "size", 0); err != nil {
		return req, err
	}
	if req.Sort, err = domain.ParseSortKey(r.URL.Query().Get("sort")); err != nil {
		return req, err
	}
	req.Keyword = r.URL.Query().Get("q")
	req.Category = r.URL.Query().Get("category")
	return req, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrValidation, name)
	}
	return n, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case domain.IsValidation(err):
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", err.Error())
	case errors.Is(err, context.Canceled):
		// клиент ушёл, ответ никто не прочитает
		w.WriteHeader(499)
	default:
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}
