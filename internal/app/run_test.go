package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func localConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.MetricsAddr = fmt.Sprintf("127.0.0.1:%d", findFreePort(t))
	cfg.WarmupInterval = 50 * time.Millisecond
	return cfg
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Run(ctx, localConfig(t)) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop after context cancel")
	}
}

func TestRun_WithPebbleStorage(t *testing.T) {
	cfg := localConfig(t)
	cfg.StorageDriver = StorageDriverPebble
	cfg.PebbleDir = t.TempDir()
	cfg.CacheDriver = CacheDriverNone

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, Run(ctx, cfg), context.DeadlineExceeded)
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := localConfig(t)
	cfg.StorageDriver = "sqlite"

	err := Run(context.Background(), cfg)
	require.ErrorContains(t, err, "unsupported storage driver")
}
