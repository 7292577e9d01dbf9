package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Значения метки result.
const (
	ResultOK      = "ok"
	ResultInvalid = "invalid"
	ResultError   = "error"
	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultSkipped = "skipped"
)

// RankingMetrics содержит метрики запросов ранжирования, кэша и ingest-пути.
type RankingMetrics struct {
	// Счётчики запросов по операциям
	queries       *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec

	// Кэш ранжирования
	cacheLookups *prometheus.CounterVec
	cacheErrors  prometheus.Counter

	// Размер просканированного ledger за один запрос
	linesScanned prometheus.Histogram

	// Ingest и прогрев
	ingestLines *prometheus.CounterVec
	warmupRuns  *prometheus.CounterVec
	lastWarmup  prometheus.Gauge
}

// NewRankingMetrics создаёт метрики в DefaultRegisterer.
func NewRankingMetrics() *RankingMetrics {
	return NewRankingMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewRankingMetricsWithRegisterer создаёт метрики в переданном registerer
// (в тестах удобно передавать prometheus.NewRegistry()).
func NewRankingMetricsWithRegisterer(registerer prometheus.Registerer) *RankingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &RankingMetrics{
		queries: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_ranking_queries_total",
			Help: "Total number of ranking queries grouped by operation and result",
		}, []string{"operation", "result"}),
		queryDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_ranking_query_duration_seconds",
			Help:    "Duration of ranking queries in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"operation"}),
		cacheLookups: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_ranking_cache_lookups_total",
			Help: "Total number of ranking cache lookups grouped by result",
		}, []string{"result"}),
		cacheErrors: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_ranking_cache_errors_total",
			Help: "Total number of ranking cache failures (queries fall back to recomputation)",
		}),
		linesScanned: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_ranking_ledger_lines_scanned",
			Help:    "Number of ledger lines scanned by a single aggregation",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		ingestLines: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_ingest_lines_total",
			Help: "Total number of ingested order lines grouped by result",
		}, []string{"result"}),
		warmupRuns: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_ranking_warmup_runs_total",
			Help: "Total number of ranking cache warmup runs grouped by result",
		}, []string{"result"}),
		lastWarmup: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_ranking_last_warmup_timestamp_seconds",
			Help: "Unix time of the last successful ranking cache warmup",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordQuery фиксирует результат и длительность запроса ранжирования.
// Методы безопасно вызывать на nil (метрики отключены).
func (m *RankingMetrics) RecordQuery(operation, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(operation, result).Inc()
	m.queryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCacheLookup увеличивает счётчик обращений к кэшу (hit/miss).
func (m *RankingMetrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// RecordCacheError увеличивает счётчик ошибок кэша.
func (m *RankingMetrics) RecordCacheError() {
	if m == nil {
		return
	}
	m.cacheErrors.Inc()
}

// RecordLinesScanned записывает число позиций ledger, прочитанных агрегатором.
func (m *RankingMetrics) RecordLinesScanned(lines int) {
	if m == nil {
		return
	}
	m.linesScanned.Observe(float64(lines))
}

// RecordIngest добавляет count позиций к счётчику ingest с указанным результатом.
func (m *RankingMetrics) RecordIngest(result string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.ingestLines.WithLabelValues(result).Add(float64(count))
}

// RecordWarmup фиксирует результат прогрева кэша.
func (m *RankingMetrics) RecordWarmup(result string, at time.Time) {
	if m == nil {
		return
	}
	m.warmupRuns.WithLabelValues(result).Inc()
	if result == ResultOK {
		m.lastWarmup.Set(float64(at.Unix()))
	}
}
