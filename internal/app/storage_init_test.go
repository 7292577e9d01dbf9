package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
)

func TestInitStorage_Memory(t *testing.T) {
	t.Parallel()

	deps, err := initStorage(context.Background(), Config{StorageDriver: StorageDriverMemory}, log.WithField("test", "memory-storage"))
	require.NoError(t, err)
	require.NotNil(t, deps.ledger)
	require.NotNil(t, deps.catalog)
	require.Nil(t, deps.checker)
	deps.close(log.WithField("test", "memory-storage"))
}

func TestInitStorage_Pebble(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	logger := log.WithField("test", "pebble-storage")

	cfg := Config{StorageDriver: StorageDriverPebble, PebbleDir: filepath.Join(t.TempDir(), "ledger")}
	deps, err := initStorage(ctx, cfg, logger)
	require.NoError(t, err)
	defer deps.close(logger)

	require.NoError(t, deps.ledger.Append(ctx, domain.OrderLine{
		ID: "l1", ProductID: "p1", BuyerID: "u1", Quantity: 1, PurchasedAt: time.Now(),
	}))
	lines, err := deps.ledger.LinesFor(ctx, domain.AllProducts())
	require.NoError(t, err)
	require.Len(t, lines, 1)

	require.Equal(t, healthcheck.StatusHealthy, deps.checker.Check(ctx).Status)
}

func TestInitStorage_SQLRequiresDSN(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{StorageDriverPostgres, StorageDriverMySQL} {
		_, err := initStorage(context.Background(), Config{StorageDriver: driver}, log.WithField("test", driver))
		require.Error(t, err, driver)
	}
}

func TestInitStorage_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	_, err := initStorage(context.Background(), Config{StorageDriver: "sqlite"}, log.WithField("test", "unsupported"))
	require.ErrorContains(t, err, "unsupported storage driver")
}
