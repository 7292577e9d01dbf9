package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Драйверы хранилища ledger и каталога.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
	StorageDriverMySQL    = "mysql"
	StorageDriverPebble   = "pebble"
)

// Драйверы кэша ранжирований.
const (
	CacheDriverNone   = "none"
	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"
)

// Config описывает настройки запуска сервиса ранжирования.
type Config struct {
	GRPCAddr    string
	HTTPAddr    string
	MetricsAddr string
	LogLevel    string

	StorageDriver string
	PostgresDSN   string
	MySQLDSN      string
	PebbleDir     string
	// AutoMigrate применяет миграции SQL-хранилищ при старте.
	AutoMigrate bool

	CacheDriver    string
	CacheTTL       time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisNamespace string

	// KafkaBrokers пуст: ingest только через gRPC/HTTP.
	KafkaBrokers    []string
	KafkaGroupID    string
	KafkaMaxRetries int

	WarmupInterval time.Duration
	WarmupTimeout  time.Duration
	// QueryTimeout ограничивает один запрос ранжирования на транспорте.
	QueryTimeout time.Duration
}

// DefaultConfig возвращает конфигурацию для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:        ":50051",
		HTTPAddr:        ":8080",
		MetricsAddr:     ":9090",
		LogLevel:        "info",
		StorageDriver:   StorageDriverMemory,
		PebbleDir:       "data/pebble",
		AutoMigrate:     true,
		CacheDriver:     CacheDriverMemory,
		CacheTTL:        5 * time.Minute,
		RedisAddr:       "localhost:6379",
		RedisNamespace:  "storefront",
		KafkaGroupID:    "storefront-ranking",
		KafkaMaxRetries: 3,
		WarmupInterval:  time.Minute,
		WarmupTimeout:   30 * time.Second,
		QueryTimeout:    5 * time.Second,
	}
}

// LoadConfig накладывает переменные окружения STOREFRONT_* на DefaultConfig.
// getenv подменяется в тестах; nil означает os.Getenv.
func LoadConfig(getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := DefaultConfig()
	env := envReader{getenv: getenv}

	env.str("STOREFRONT_GRPC_ADDR", &cfg.GRPCAddr)
	env.str("STOREFRONT_HTTP_ADDR", &cfg.HTTPAddr)
	env.str("STOREFRONT_METRICS_ADDR", &cfg.MetricsAddr)
	env.str("STOREFRONT_LOG_LEVEL", &cfg.LogLevel)
	env.str("STOREFRONT_STORAGE_DRIVER", &cfg.StorageDriver)
	env.str("STOREFRONT_POSTGRES_DSN", &cfg.PostgresDSN)
	env.str("STOREFRONT_MYSQL_DSN", &cfg.MySQLDSN)
	env.str("STOREFRONT_PEBBLE_DIR", &cfg.PebbleDir)
	env.boolean("STOREFRONT_AUTO_MIGRATE", &cfg.AutoMigrate)
	env.str("STOREFRONT_CACHE_DRIVER", &cfg.CacheDriver)
	env.duration("STOREFRONT_CACHE_TTL", &cfg.CacheTTL)
	env.str("STOREFRONT_REDIS_ADDR", &cfg.RedisAddr)
	env.str("STOREFRONT_REDIS_PASSWORD", &cfg.RedisPassword)
	env.integer("STOREFRONT_REDIS_DB", &cfg.RedisDB)
	env.str("STOREFRONT_REDIS_NAMESPACE", &cfg.RedisNamespace)
	env.list("STOREFRONT_KAFKA_BROKERS", &cfg.KafkaBrokers)
	env.str("STOREFRONT_KAFKA_GROUP_ID", &cfg.KafkaGroupID)
	env.integer("STOREFRONT_KAFKA_MAX_RETRIES", &cfg.KafkaMaxRetries)
	env.duration("STOREFRONT_WARMUP_INTERVAL", &cfg.WarmupInterval)
	env.duration("STOREFRONT_WARMUP_TIMEOUT", &cfg.WarmupTimeout)
	env.duration("STOREFRONT_QUERY_TIMEOUT", &cfg.QueryTimeout)

	if env.err != nil {
		return Config{}, env.err
	}
	return cfg, cfg.Validate()
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory, StorageDriverPebble:
	case StorageDriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres storage requires STOREFRONT_POSTGRES_DSN")
		}
	case StorageDriverMySQL:
		if c.MySQLDSN == "" {
			return fmt.Errorf("mysql storage requires STOREFRONT_MYSQL_DSN")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}

	switch c.CacheDriver {
	case CacheDriverNone, CacheDriverMemory, CacheDriverRedis:
	default:
		return fmt.Errorf("unsupported cache driver %q", c.CacheDriver)
	}
	if c.CacheDriver != CacheDriverNone && c.CacheTTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", c.CacheTTL)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaGroupID == "" {
		return fmt.Errorf("kafka group id is required when brokers are set")
	}
	return nil
}

type envReader struct {
	getenv func(string) string
	err    error
}

func (e *envReader) lookup(name string) (string, bool) {
	v := strings.TrimSpace(e.getenv(name))
	return v, v != ""
}

func (e *envReader) fail(name, raw string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s=%q: %w", name, raw, err)
	}
}

func (e *envReader) str(name string, dst *string) {
	if v, ok := e.lookup(name); ok {
		*dst = v
	}
}

func (e *envReader) boolean(name string, dst *bool) {
	if v, ok := e.lookup(name); ok {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = parsed
	}
}

func (e *envReader) integer(name string, dst *int) {
	if v, ok := e.lookup(name); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = parsed
	}
}

func (e *envReader) duration(name string, dst *time.Duration) {
	if v, ok := e.lookup(name); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = parsed
	}
}

func (e *envReader) list(name string, dst *[]string) {
	v, ok := e.lookup(name)
	if !ok {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}
