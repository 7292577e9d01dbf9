package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
)

const (
	viaGRPC  = "grpc"
	viaKafka = "kafka"
)

type config struct {
	via        string
	addr       string
	brokers    []string
	products   int
	buyers     int
	lines      int
	categories []string
	seed       uint64
	batch      int
	timeout    time.Duration
}

// sink принимает сгенерированный каталог и позиции заказов.
type sink interface {
	UpsertProducts(ctx context.Context, products ...domain.Product) error
	RecordLines(ctx context.Context, lines ...domain.OrderLine) error
}

type grpcSink struct {
	client *grpcsvc.Client
}

func (s grpcSink) UpsertProducts(ctx context.Context, products ...domain.Product) error {
	items := make([]any, 0, len(products))
	for _, p := range products {
		items = append(items, grpcsvc.EncodeProduct(p))
	}
	_, err := s.client.Call(ctx, grpcsvc.MethodUpsertProducts, map[string]any{"products": items})
	return err
}

func (s grpcSink) RecordLines(ctx context.Context, lines ...domain.OrderLine) error {
	items := make([]any, 0, len(lines))
	for _, line := range lines {
		items = append(items, grpcsvc.EncodeOrderLine(line))
	}
	_, err := s.client.Call(ctx, grpcsvc.MethodRecordOrderLines, map[string]any{"lines": items})
	return err
}

type kafkaSink struct {
	producer *kafka.Producer
}

func (s kafkaSink) UpsertProducts(_ context.Context, products ...domain.Product) error {
	return s.producer.PublishProducts(products...)
}

func (s kafkaSink) RecordLines(_ context.Context, lines ...domain.OrderLine) error {
	return s.producer.PublishOrderLines(lines...)
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := readConfig()
	if err != nil {
		fail("%v", err)
	}

	target, closeFn, err := openSink(cfg)
	if err != nil {
		fail("%v", err)
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	products, lines := generate(cfg, time.Now().UTC())
	if err := seed(ctx, target, products, lines, cfg.batch); err != nil {
		fail("seed failed: %v", err)
	}

	log.WithFields(log.Fields{
		"via":      cfg.via,
		"products": len(products),
		"lines":    len(lines),
		"seed":     cfg.seed,
	}).Info("ledger seeded")
}

func readConfig() (config, error) {
	var (
		cfg           config
		brokersRaw    string
		categoriesRaw string
	)

	flag.StringVar(&cfg.via, "via", viaGRPC, "delivery path: grpc|kafka")
	flag.StringVar(&cfg.addr, "addr", "localhost:50051", "RankingService gRPC address")
	flag.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: STOREFRONT_KAFKA_BROKERS)")
	flag.IntVar(&cfg.products, "products", 40, "number of products")
	flag.IntVar(&cfg.buyers, "buyers", 20, "number of distinct buyers")
	flag.IntVar(&cfg.lines, "lines", 500, "number of order lines")
	flag.StringVar(&categoriesRaw, "categories", "flowers,books,toys,garden", "comma-separated categories")
	flag.Uint64Var(&cfg.seed, "seed", 1, "random seed; the same seed produces the same line ids")
	flag.IntVar(&cfg.batch, "batch", 100, "items per request")
	flag.DurationVar(&cfg.timeout, "timeout", time.Minute, "overall timeout")
	flag.Parse()

	cfg.via = strings.ToLower(strings.TrimSpace(cfg.via))
	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = os.Getenv("STOREFRONT_KAFKA_BROKERS")
	}
	cfg.brokers = splitList(brokersRaw)
	cfg.categories = splitList(categoriesRaw)

	switch cfg.via {
	case viaGRPC:
	case viaKafka:
		if len(cfg.brokers) == 0 {
			return config{}, errors.New("kafka brokers are required (-brokers or STOREFRONT_KAFKA_BROKERS)")
		}
	default:
		return config{}, fmt.Errorf("unsupported via: %s (use grpc|kafka)", cfg.via)
	}
	if cfg.products <= 0 || cfg.buyers <= 0 || cfg.lines < 0 {
		return config{}, errors.New("products and buyers must be > 0, lines must be >= 0")
	}
	if len(cfg.categories) == 0 {
		return config{}, errors.New("at least one category is required")
	}
	if cfg.batch <= 0 {
		return config{}, errors.New("batch must be > 0")
	}
	if cfg.timeout <= 0 {
		return config{}, errors.New("timeout must be > 0")
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func openSink(cfg config) (sink, func(), error) {
	switch cfg.via {
	case viaKafka:
		producer, err := kafka.NewProducer(cfg.brokers)
		if err != nil {
			return nil, nil, fmt.Errorf("create kafka producer: %w", err)
		}
		return kafkaSink{producer: producer}, func() { _ = producer.Close() }, nil
	default:
		conn, err := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, nil, fmt.Errorf("create grpc client: %w", err)
		}
		return grpcSink{client: grpcsvc.NewClient(conn)}, func() { _ = conn.Close() }, nil
	}
}

// generate строит детерминированный по seed каталог и историю покупок за
// последние 30 дней до now. Популярность товаров убывает с номером, часть
// покупателей покупает один и тот же товар повторно.
func generate(cfg config, now time.Time) ([]domain.Product, []domain.OrderLine) {
	rng := rand.New(rand.NewPCG(cfg.seed, cfg.seed^0x9e3779b97f4a7c15))

	products := make([]domain.Product, 0, cfg.products)
	for i := 0; i < cfg.products; i++ {
		category := cfg.categories[i%len(cfg.categories)]
		products = append(products, domain.Product{
			ID:         fmt.Sprintf("p-%d", i),
			SellerID:   fmt.Sprintf("s-%d", i%5),
			Category:   category,
			Name:       fmt.Sprintf("%s item %d", category, i),
			PriceMinor: int64(100 + rng.IntN(9900)),
			Currency:   "USD",
			CreatedAt:  now.Add(-time.Duration(cfg.products-i) * time.Hour),
		})
	}

	lines := make([]domain.OrderLine, 0, cfg.lines)
	for i := 0; i < cfg.lines; i++ {
		// квадрат равномерного числа смещает продажи к первым товарам
		u := rng.Float64()
		product := int(u * u * float64(cfg.products))
		lines = append(lines, domain.OrderLine{
			ID:          fmt.Sprintf("seed-%d-%d", cfg.seed, i),
			ProductID:   products[product].ID,
			BuyerID:     fmt.Sprintf("u-%d", rng.IntN(cfg.buyers)),
			Quantity:    int32(1 + rng.IntN(3)),
			PurchasedAt: now.Add(-time.Duration(rng.IntN(30*24)) * time.Hour),
		})
	}
	return products, lines
}

// seed отправляет сначала каталог, затем позиции, пачками по batch.
func seed(ctx context.Context, target sink, products []domain.Product, lines []domain.OrderLine, batch int) error {
	for start := 0; start < len(products); start += batch {
		end := min(start+batch, len(products))
		if err := target.UpsertProducts(ctx, products[start:end]...); err != nil {
			return fmt.Errorf("upsert products %d..%d: %w", start, end, err)
		}
	}
	for start := 0; start < len(lines); start += batch {
		end := min(start+batch, len(lines))
		if err := target.RecordLines(ctx, lines[start:end]...); err != nil {
			return fmt.Errorf("record lines %d..%d: %w", start, end, err)
		}
	}
	return nil
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
