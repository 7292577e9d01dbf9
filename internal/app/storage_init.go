package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/retry"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/mysql"
	"github.com/vladislavdragonenkov/storefront/internal/storage/pebble"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

// storageDeps — ledger и каталог выбранного драйвера.
type storageDeps struct {
	ledger  domain.Ledger
	catalog domain.Catalog
	// checker nil для in-memory хранилища.
	checker healthcheck.Checker
	closeFn func() error
}

func (d *storageDeps) close(logger *log.Entry) {
	if d == nil || d.closeFn == nil {
		return
	}
	if err := d.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
}

func initStorage(ctx context.Context, cfg Config, logger *log.Entry) (*storageDeps, error) {
	logger = logger.WithField("storage_driver", cfg.StorageDriver)

	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		logger.Info("using in-memory ledger and catalog")
		return &storageDeps{ledger: memory.NewLedger(), catalog: memory.NewCatalog()}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage requires dsn")
		}
		var store *postgres.Store
		err := retry.Do(ctx, "open postgres", retry.DefaultConfig(), logger, func(ctx context.Context) error {
			var err error
			store, err = postgres.Open(ctx, cfg.PostgresDSN)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.AutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		logger.Info("postgres storage initialized")
		return &storageDeps{
			ledger:  postgres.NewLedger(store),
			catalog: postgres.NewCatalog(store),
			checker: healthcheck.NewPingChecker("storage", store),
			closeFn: store.Close,
		}, nil

	case StorageDriverMySQL:
		if cfg.MySQLDSN == "" {
			return nil, fmt.Errorf("mysql storage requires dsn")
		}
		var store *mysql.Store
		err := retry.Do(ctx, "open mysql", retry.DefaultConfig(), logger, func(ctx context.Context) error {
			var err error
			store, err = mysql.Open(ctx, cfg.MySQLDSN)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		if cfg.AutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("migrate mysql: %w", err)
			}
		}
		logger.Info("mysql storage initialized")
		return &storageDeps{
			ledger:  mysql.NewLedger(store),
			catalog: mysql.NewCatalog(store),
			checker: healthcheck.NewPingChecker("storage", store),
			closeFn: store.Close,
		}, nil

	case StorageDriverPebble:
		store, err := pebble.Open(cfg.PebbleDir)
		if err != nil {
			return nil, err
		}
		logger.WithField("dir", cfg.PebbleDir).Info("pebble storage initialized")
		return &storageDeps{
			ledger:  store,
			catalog: store,
			checker: healthcheck.NewPingChecker("storage", store),
			closeFn: store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
