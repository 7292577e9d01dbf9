package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	if err := c.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.Counter.GetValue()
}

func TestNewRankingMetrics(t *testing.T) {
	metrics := NewRankingMetricsWithRegisterer(prometheus.NewRegistry())

	if metrics == nil {
		t.Fatal("NewRankingMetricsWithRegisterer should not return nil")
	}
	if metrics.queries == nil {
		t.Error("queries counter vec should not be nil")
	}
	if metrics.queryDuration == nil {
		t.Error("queryDuration histogram vec should not be nil")
	}
	if metrics.cacheLookups == nil {
		t.Error("cacheLookups counter vec should not be nil")
	}
	if metrics.linesScanned == nil {
		t.Error("linesScanned histogram should not be nil")
	}
	if metrics.ingestLines == nil {
		t.Error("ingestLines counter vec should not be nil")
	}
	if metrics.warmupRuns == nil {
		t.Error("warmupRuns counter vec should not be nil")
	}
}

func TestNewRankingMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := NewRankingMetricsWithRegisterer(reg)
	second := NewRankingMetricsWithRegisterer(reg)

	first.RecordQuery("top_sellers", ResultOK, time.Millisecond)
	second.RecordQuery("top_sellers", ResultOK, time.Millisecond)

	if got := counterValue(t, first.queries.WithLabelValues("top_sellers", ResultOK)); got != 2.0 {
		t.Errorf("expected shared counter value 2.0, got %f", got)
	}
}

func TestRecordQuery(t *testing.T) {
	metrics := NewRankingMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordQuery("best_products", ResultOK, 10*time.Millisecond)
	metrics.RecordQuery("best_products", ResultInvalid, time.Millisecond)
	metrics.RecordQuery("best_products", ResultOK, 5*time.Millisecond)

	if got := counterValue(t, metrics.queries.WithLabelValues("best_products", ResultOK)); got != 2.0 {
		t.Errorf("expected ok counter 2.0, got %f", got)
	}
	if got := counterValue(t, metrics.queries.WithLabelValues("best_products", ResultInvalid)); got != 1.0 {
		t.Errorf("expected invalid counter 1.0, got %f", got)
	}

	metric := &dto.Metric{}
	observer := metrics.queryDuration.WithLabelValues("best_products").(prometheus.Histogram)
	if err := observer.Write(metric); err != nil {
		t.Fatalf("failed to write histogram: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 3 {
		t.Errorf("expected 3 observations, got %d", metric.Histogram.GetSampleCount())
	}
}

func TestRecordCacheLookupAndErrors(t *testing.T) {
	metrics := NewRankingMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordCacheLookup(ResultHit)
	metrics.RecordCacheLookup(ResultMiss)
	metrics.RecordCacheLookup(ResultMiss)
	metrics.RecordCacheError()

	if got := counterValue(t, metrics.cacheLookups.WithLabelValues(ResultMiss)); got != 2.0 {
		t.Errorf("expected miss counter 2.0, got %f", got)
	}
	if got := counterValue(t, metrics.cacheErrors); got != 1.0 {
		t.Errorf("expected cache errors 1.0, got %f", got)
	}
}

func TestRecordIngest(t *testing.T) {
	metrics := NewRankingMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordIngest(ResultOK, 5)
	metrics.RecordIngest(ResultInvalid, 1)
	metrics.RecordIngest(ResultOK, 0)

	if got := counterValue(t, metrics.ingestLines.WithLabelValues(ResultOK)); got != 5.0 {
		t.Errorf("expected ingest ok 5.0, got %f", got)
	}
	if got := counterValue(t, metrics.ingestLines.WithLabelValues(ResultInvalid)); got != 1.0 {
		t.Errorf("expected ingest invalid 1.0, got %f", got)
	}
}

func TestRecordWarmup(t *testing.T) {
	metrics := NewRankingMetricsWithRegisterer(prometheus.NewRegistry())
	at := time.Unix(1_700_000_000, 0)

	metrics.RecordWarmup(ResultError, at.Add(time.Hour))
	metrics.RecordWarmup(ResultOK, at)

	gauge := &dto.Metric{}
	if err := metrics.lastWarmup.Write(gauge); err != nil {
		t.Fatalf("failed to write gauge: %v", err)
	}
	if gauge.Gauge.GetValue() != float64(at.Unix()) {
		t.Errorf("expected last warmup %d, got %f", at.Unix(), gauge.Gauge.GetValue())
	}
}

func TestNilRankingMetrics(t *testing.T) {
	var metrics *RankingMetrics

	// Не должно паниковать
	metrics.RecordQuery("top_sellers", ResultOK, time.Second)
	metrics.RecordCacheLookup(ResultHit)
	metrics.RecordCacheError()
	metrics.RecordLinesScanned(10)
	metrics.RecordIngest(ResultOK, 1)
	metrics.RecordWarmup(ResultOK, time.Now())
}
