package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/storage/mysql"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
	"github.com/vladislavdragonenkov/storefront/internal/storage/sqlmigrate"
)

const (
	defaultTimeout = 30 * time.Second
)

// migrator — общее для postgres и mysql хранилищ управление схемой.
type migrator interface {
	MigrateUp(ctx context.Context, steps int) error
	MigrateDown(ctx context.Context, steps int) error
	MigrationStatus(ctx context.Context) (sqlmigrate.Status, error)
	Close() error
}

func main() {
	var (
		driver    string
		direction string
		steps     int
		dsn       string
	)

	flag.StringVar(&driver, "driver", "postgres", "storage driver: postgres|mysql")
	flag.StringVar(&direction, "direction", "up", "migration direction: up|down|status")
	flag.IntVar(&steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	flag.StringVar(&dsn, "dsn", "", "database DSN (fallback: STOREFRONT_POSTGRES_DSN / STOREFRONT_MYSQL_DSN)")
	flag.Parse()

	driver = strings.ToLower(strings.TrimSpace(driver))
	if strings.TrimSpace(dsn) == "" {
		dsn = strings.TrimSpace(os.Getenv(dsnEnv(driver)))
	}
	if dsn == "" {
		fail("%s (or -dsn) is required", dsnEnv(driver))
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := openStore(ctx, driver, dsn)
	if err != nil {
		fail("open %s store: %v", driver, err)
	}
	defer store.Close()

	if err := execute(ctx, store, direction, steps, os.Stdout); err != nil {
		fail("%v", err)
	}
}

func dsnEnv(driver string) string {
	if driver == "mysql" {
		return "STOREFRONT_MYSQL_DSN"
	}
	return "STOREFRONT_POSTGRES_DSN"
}

func openStore(ctx context.Context, driver, dsn string) (migrator, error) {
	switch driver {
	case "postgres":
		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "mysql":
		store, err := mysql.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s (use postgres|mysql)", driver)
	}
}

// execute выполняет миграцию в направлении direction и печатает итоговый статус.
func execute(ctx context.Context, m migrator, direction string, steps int, out io.Writer) error {
	var label string
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "up":
		if err := m.MigrateUp(ctx, steps); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
		label = "migrate up ok"
	case "down":
		if steps <= 0 {
			steps = 1
		}
		if err := m.MigrateDown(ctx, steps); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
		label = "migrate down ok"
	case "status":
		label = "migration status"
	default:
		return fmt.Errorf("unsupported direction: %s (use up|down|status)", direction)
	}

	status, err := m.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, _ = fmt.Fprintf(out, "%s: version=%d applied=%d pending=%d\n", label, status.Version, status.Applied, status.Pending)
	return nil
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
