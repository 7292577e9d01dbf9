package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Service — единственная точка записи в ledger и каталог.
// После записи позиций инвалидирует затронутые ранжирования в кэше.
type Service struct {
	ledger  domain.LedgerWriter
	catalog domain.CatalogWriter
	cache   domain.RankingCache
	metrics *metrics.RankingMetrics
	logger  *log.Entry
	now     func() time.Time
}

// NewService создаёт ingest-сервис. cache и m могут быть nil.
func NewService(
	ledger domain.LedgerWriter,
	catalog domain.CatalogWriter,
	cache domain.RankingCache,
	m *metrics.RankingMetrics,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.WithField("component", "ingest")
	}
	return &Service{
		ledger:  ledger,
		catalog: catalog,
		cache:   cache,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Record проверяет и дописывает позиции в ledger. Пачка с хотя бы одной
// некорректной позицией отклоняется целиком. Пустой ID заменяется на UUID.
func (s *Service) Record(ctx context.Context, lines ...domain.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}

	prepared := make([]domain.OrderLine, 0, len(lines))
	for _, line := range lines {
		if line.ID == "" {
			line.ID = uuid.NewString()
		}
		if err := line.Validate(); err != nil {
			s.metrics.RecordIngest(metrics.ResultInvalid, len(lines))
			return fmt.Errorf("line %s: %w", line.ID, err)
		}
		prepared = append(prepared, line)
	}

	if err := s.ledger.Append(ctx, prepared...); err != nil {
		s.metrics.RecordIngest(metrics.ResultError, len(prepared))
		return fmt.Errorf("append to ledger: %w", err)
	}
	s.metrics.RecordIngest(metrics.ResultOK, len(prepared))

	s.invalidate(ctx, prepared)
	return nil
}

// UpsertProducts загружает карточки товаров в каталог.
func (s *Service) UpsertProducts(ctx context.Context, products ...domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	for i := range products {
		if products[i].CreatedAt.IsZero() {
			products[i].CreatedAt = s.now().UTC()
		}
		if err := products[i].Validate(); err != nil {
			return fmt.Errorf("product %s: %w", products[i].ID, err)
		}
	}
	if err := s.catalog.Upsert(ctx, products...); err != nil {
		return fmt.Errorf("upsert catalog: %w", err)
	}
	s.logger.WithField("products", len(products)).Debug("catalog updated")
	return nil
}

func (s *Service) invalidate(ctx context.Context, lines []domain.OrderLine) {
	if s.cache == nil {
		return
	}

	seen := make(map[string]struct{}, len(lines))
	productIDs := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		productIDs = append(productIDs, line.ProductID)
	}

	if err := s.cache.InvalidateProducts(ctx, productIDs...); err != nil {
		s.metrics.RecordCacheError()
		s.logger.WithError(err).WithField("products", len(productIDs)).Warn("ranking cache invalidation failed")
	}
}
