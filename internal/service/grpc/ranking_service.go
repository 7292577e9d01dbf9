// Package grpcsvc публикует запросы ранжирования и ingest по gRPC.
package grpcsvc

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/recommend"
)

const (
	// ServiceName — полное имя gRPC-сервиса.
	ServiceName = "storefront.ranking.v1.RankingService"

	MethodTopSellers       = "TopSellers"
	MethodInterestTop      = "InterestTop"
	MethodBestProducts     = "BestProducts"
	MethodSearchProducts   = "SearchProducts"
	MethodNewestProducts   = "NewestProducts"
	MethodHome             = "Home"
	MethodRecordOrderLines = "RecordOrderLines"
	MethodUpsertProducts   = "UpsertProducts"

	defaultTopN   = 10
	defaultNewest = recommend.HomeNewest
)

// Recommender — сценарии чтения, которые обслуживает сервис.
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

// RankingServer — серверный интерфейс RankingService.
type RankingServer interface {
	TopSellers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	InterestTop(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BestProducts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SearchProducts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	NewestProducts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Home(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecordOrderLines(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpsertProducts(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RankingServiceDesc описывает сервис для grpc.Server.RegisterService.
var RankingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RankingServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(MethodTopSellers, RankingServer.TopSellers),
		unaryMethod(MethodInterestTop, RankingServer.InterestTop),
		unaryMethod(MethodBestProducts, RankingServer.BestProducts),
		unaryMethod(MethodSearchProducts, RankingServer.SearchProducts),
		unaryMethod(MethodNewestProducts, RankingServer.NewestProducts),
		unaryMethod(MethodHome, RankingServer.Home),
		unaryMethod(MethodRecordOrderLines, RankingServer.RecordOrderLines),
		unaryMethod(MethodUpsertProducts, RankingServer.UpsertProducts),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/ranking/v1/ranking.proto",
}

func unaryMethod(name string, call func(RankingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(RankingServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(RankingServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// FullMethod возвращает "/storefront.ranking.v1.RankingService/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// RankingService реализует RankingServer поверх оркестратора рекомендаций.
type RankingService struct {
	recommender Recommender
	recorder    Recorder
	logger      *log.Entry
}

// NewRankingService конструирует сервис. recorder может быть nil: тогда
// методы записи отвечают Unimplemented.
func NewRankingService(recommender Recommender, recorder Recorder, logger *log.Entry) *RankingService {
	if logger == nil {
		logger = log.WithField("component", "ranking-grpc")
	}
	return &RankingService{recommender: recommender, recorder: recorder, logger: logger}
}

// Register регистрирует сервис на gRPC-сервере.
func Register(server grpc.ServiceRegistrar, svc *RankingService) {
	server.RegisterService(&RankingServiceDesc, svc)
}

// TopSellers: {top_n, with_counts} -> {products, counts?}.
func (s *RankingService) TopSellers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	topN, err := intField(req, fieldTopN, defaultTopN)
	if err != nil {
		return nil, s.toStatus(MethodTopSellers, err)
	}
	withCounts, err := boolField(req, fieldWithCounts)
	if err != nil {
		return nil, s.toStatus(MethodTopSellers, err)
	}

	products, err := s.recommender.TopSellers(ctx, topN)
	if err != nil {
		return nil, s.toStatus(MethodTopSellers, err)
	}
	resp := map[string]any{fieldProducts: productList(products)}
	if withCounts {
		counts, err := s.recommender.SalesCounts(ctx, topN)
		if err != nil {
			return nil, s.toStatus(MethodTopSellers, err)
		}
		resp[fieldCounts] = countList(counts)
	}
	return s.encode(MethodTopSellers, resp)
}

// InterestTop: {category} -> {products}.
func (s *RankingService) InterestTop(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	category, err := stringField(req, fieldCategory)
	if err != nil {
		return nil, s.toStatus(MethodInterestTop, err)
	}
	products, err := s.recommender.InterestTop(ctx, category)
	if err != nil {
		return nil, s.toStatus(MethodInterestTop, err)
	}
	out, err := encodeProducts(products)
	return out, s.toStatus(MethodInterestTop, err)
}

// BestProducts: запрос страницы -> страница «лучших товаров».
func (s *RankingService) BestProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pageReq, err := pageRequestFrom(req)
	if err != nil {
		return nil, s.toStatus(MethodBestProducts, err)
	}
	page, err := s.recommender.BestProducts(ctx, pageReq)
	if err != nil {
		return nil, s.toStatus(MethodBestProducts, err)
	}
	out, err := encodePage(page)
	return out, s.toStatus(MethodBestProducts, err)
}

// SearchProducts ищет по всему каталогу.
func (s *RankingService) SearchProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pageReq, err := pageRequestFrom(req)
	if err != nil {
		return nil, s.toStatus(MethodSearchProducts, err)
	}
	page, err := s.recommender.SearchCatalog(ctx, pageReq)
	if err != nil {
		return nil, s.toStatus(MethodSearchProducts, err)
	}
	out, err := encodePage(page)
	return out, s.toStatus(MethodSearchProducts, err)
}

func (s *RankingService) NewestProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit, err := intField(req, fieldLimit, defaultNewest)
	if err != nil {
		return nil, s.toStatus(MethodNewestProducts, err)
	}
	products, err := s.recommender.NewestProducts(ctx, limit)
	if err != nil {
		return nil, s.toStatus(MethodNewestProducts, err)
	}
	out, err := encodeProducts(products)
	return out, s.toStatus(MethodNewestProducts, err)
}

// Home: {interest?} -> {interest, newest, top_sellers}.
func (s *RankingService) Home(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	interest, err := stringField(req, fieldInterest)
	if err != nil {
		return nil, s.toStatus(MethodHome, err)
	}
	home, err := s.recommender.Home(ctx, interest)
	if err != nil {
		return nil, s.toStatus(MethodHome, err)
	}
	out, err := encodeHome(home)
	return out, s.toStatus(MethodHome, err)
}

// RecordOrderLines: {lines: [...]} -> {recorded}.
func (s *RankingService) RecordOrderLines(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.recorder == nil {
		return nil, status.Error(codes.Unimplemented, "ingest is disabled")
	}
	items, err := listField(req, fieldLines)
	if err != nil {
		return nil, s.toStatus(MethodRecordOrderLines, err)
	}
	lines := make([]domain.OrderLine, 0, len(items))
	for _, item := range items {
		line, err := decodeOrderLine(item)
		if err != nil {
			return nil, s.toStatus(MethodRecordOrderLines, err)
		}
		lines = append(lines, line)
	}
	if err := s.recorder.Record(ctx, lines...); err != nil {
		return nil, s.toStatus(MethodRecordOrderLines, err)
	}
	return s.encode(MethodRecordOrderLines, map[string]any{"recorded": len(lines)})
}

// UpsertProducts: {products: [...]} -> {upserted}.
func (s *RankingService) UpsertProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.recorder == nil {
		return nil, status.Error(codes.Unimplemented, "ingest is disabled")
	}
	items, err := listField(req, fieldProducts)
	if err != nil {
		return nil, s.toStatus(MethodUpsertProducts, err)
	}
	products := make([]domain.Product, 0, len(items))
	for _, item := range items {
		p, err := decodeProduct(item)
		if err != nil {
			return nil, s.toStatus(MethodUpsertProducts, err)
		}
		products = append(products, p)
	}
	if err := s.recorder.UpsertProducts(ctx, products...); err != nil {
		return nil, s.toStatus(MethodUpsertProducts, err)
	}
	return s.encode(MethodUpsertProducts, map[string]any{"upserted": len(products)})
}

func (s *RankingService) encode(method string, fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, s.toStatus(method, err)
	}
	return out, nil
}

// toStatus переводит доменные ошибки в gRPC-статусы. nil остаётся nil.
func (s *RankingService) toStatus(method string, err error) error {
	switch {
	case err == nil:
		return nil
	case domain.IsValidation(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	s.logger.WithError(err).WithField("method", method).Error("ranking request failed")
	return status.Error(codes.Internal, "internal error")
}

var _ RankingServer = (*RankingService)(nil)
