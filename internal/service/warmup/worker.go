package warmup

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	defaultWarmupInterval = time.Minute
	defaultWarmupTimeout  = 30 * time.Second
)

// Warmer заранее считает популярные ранжирования.
type Warmer interface {
	Warm(ctx context.Context) error
}

// WorkerOptions задает параметры воркера прогрева кэша.
type WorkerOptions struct {
	Logger   *log.Entry
	Metrics  *metrics.RankingMetrics
	Interval time.Duration
	Timeout  time.Duration
}

// WorkerOption настраивает Worker.
type WorkerOption func(*WorkerOptions)

// WithLogger задает logger для воркера.
func WithLogger(logger *log.Entry) WorkerOption {
	return func(opts *WorkerOptions) {
		opts.Logger = logger
	}
}

// WithMetrics задает метрики.
func WithMetrics(m *metrics.RankingMetrics) WorkerOption {
	return func(opts *WorkerOptions) {
		opts.Metrics = m
	}
}

// WithInterval задает интервал между прогревами.
func WithInterval(interval time.Duration) WorkerOption {
	return func(opts *WorkerOptions) {
		opts.Interval = interval
	}
}

// WithTimeout ограничивает длительность одного прогрева.
func WithTimeout(timeout time.Duration) WorkerOption {
	return func(opts *WorkerOptions) {
		opts.Timeout = timeout
	}
}

// Worker периодически прогревает кэш ранжирований.
type Worker struct {
	warmer   Warmer
	logger   *log.Entry
	metrics  *metrics.RankingMetrics
	interval time.Duration
	timeout  time.Duration
}

// NewWorker создает воркер прогрева.
func NewWorker(warmer Warmer, options ...WorkerOption) *Worker {
	opts := WorkerOptions{
		Interval: defaultWarmupInterval,
		Timeout:  defaultWarmupTimeout,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "ranking-warmup-worker")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultWarmupInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultWarmupTimeout
	}

	return &Worker{
		warmer:   warmer,
		logger:   logger,
		metrics:  opts.Metrics,
		interval: opts.Interval,
		timeout:  opts.Timeout,
	}
}

// Run прогревает кэш сразу и затем по таймеру до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.warmer == nil {
		w.logger.Warn("ranking warmup worker is disabled: warmer is nil")
		return
	}

	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один прогрев и возвращает его ошибку (отмена ctx ошибкой не считается).
func (w *Worker) RunOnce(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	started := time.Now()
	err := w.warmer.Warm(runCtx)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil
		}
		w.metrics.RecordWarmup(metrics.ResultError, started)
		w.logger.WithError(err).Warn("ranking warmup run failed")
		return err
	}

	w.metrics.RecordWarmup(metrics.ResultOK, time.Now())
	w.logger.WithField("duration", time.Since(started)).Debug("ranking warmup completed")
	return nil
}
