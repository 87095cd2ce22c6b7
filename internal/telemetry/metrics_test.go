package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	if m.VerdictTotal == nil {
		t.Error("VerdictTotal should not be nil")
	}
	if m.StageDurationMs == nil {
		t.Error("StageDurationMs should not be nil")
	}
	if m.PipelineLatencyMs == nil {
		t.Error("PipelineLatencyMs should not be nil")
	}
	if m.TaskStateTotal == nil {
		t.Error("TaskStateTotal should not be nil")
	}
	if m.QueueDepth == nil {
		t.Error("QueueDepth should not be nil")
	}
	if m.CacheLookupTotal == nil {
		t.Error("CacheLookupTotal should not be nil")
	}
}

func TestRecordVerdict(t *testing.T) {
	// Use a fresh registry to avoid polluting the default one
	reg := prometheus.NewRegistry()

	verdictTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_foodguard_verdict_total",
		Help: "Test counter",
	}, []string{"kind", "decision", "stage"})

	latencyMs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "test_foodguard_pipeline_latency_ms",
		Help:    "Test histogram",
		Buckets: []float64{10, 100, 1000},
	}, []string{"kind"})

	reg.MustRegister(verdictTotal, latencyMs)

	m := &Metrics{
		VerdictTotal:      verdictTotal,
		PipelineLatencyMs: latencyMs,
	}

	m.RecordVerdict("text", "deny", "keyword", 3.5)
	m.RecordVerdict("text", "deny", "keyword", 1.2)

	counter, err := verdictTotal.GetMetricWithLabelValues("text", "deny", "keyword")
	if err != nil {
		t.Fatalf("failed to get metric: %v", err)
	}
	var metric dto.Metric
	counter.Write(&metric)
	if *metric.Counter.Value != 2 {
		t.Errorf("expected verdict count 2, got %v", *metric.Counter.Value)
	}
}

func TestRecordTaskState(t *testing.T) {
	taskTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_task_state",
		Help: "Test",
	}, []string{"state"})

	m := &Metrics{TaskStateTotal: taskTotal}
	m.RecordTaskState("succeeded")

	counter, _ := taskTotal.GetMetricWithLabelValues("succeeded")
	var metric dto.Metric
	counter.Write(&metric)
	if *metric.Counter.Value != 1 {
		t.Errorf("expected task state count 1, got %v", *metric.Counter.Value)
	}
}

func TestRecordCacheLookup(t *testing.T) {
	lookupTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_cache_lookup",
		Help: "Test",
	}, []string{"result"})

	m := &Metrics{CacheLookupTotal: lookupTotal}
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordCacheLookup(false)

	counter, _ := lookupTotal.GetMetricWithLabelValues("miss")
	var metric dto.Metric
	counter.Write(&metric)
	if *metric.Counter.Value != 2 {
		t.Errorf("expected 2 misses, got %v", *metric.Counter.Value)
	}
}
