package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the foodguard gateway.
type Metrics struct {
	VerdictTotal      *prometheus.CounterVec
	StageDurationMs   *prometheus.HistogramVec
	PipelineLatencyMs *prometheus.HistogramVec
	TaskStateTotal    *prometheus.CounterVec
	QueueDepth        prometheus.Gauge
	CacheLookupTotal  *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		VerdictTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "foodguard_verdict_total",
			Help: "Total number of guard verdicts by request kind, decision and deciding stage.",
		}, []string{"kind", "decision", "stage"}),

		StageDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "foodguard_stage_duration_ms",
			Help:    "Per-stage evaluation duration in milliseconds.",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"stage"}),

		PipelineLatencyMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "foodguard_pipeline_latency_ms",
			Help:    "End-to-end guard pipeline latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"kind"}),

		TaskStateTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "foodguard_task_state_total",
			Help: "Total task state transitions.",
		}, []string{"state"}),

		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "foodguard_queue_depth",
			Help: "Number of tasks currently waiting in the work queue.",
		}),

		CacheLookupTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "foodguard_verdict_cache_lookup_total",
			Help: "Verdict cache lookups by result.",
		}, []string{"result"}),
	}
}

// RecordVerdict records a completed pipeline evaluation.
func (m *Metrics) RecordVerdict(kind, decision, stage string, latencyMs float64) {
	m.VerdictTotal.WithLabelValues(kind, decision, stage).Inc()
	m.PipelineLatencyMs.WithLabelValues(kind).Observe(latencyMs)
}

// RecordStage records the duration of a single pipeline stage.
func (m *Metrics) RecordStage(stage string, durationMs float64) {
	m.StageDurationMs.WithLabelValues(stage).Observe(durationMs)
}

// RecordTaskState records a task entering the given state.
func (m *Metrics) RecordTaskState(state string) {
	m.TaskStateTotal.WithLabelValues(state).Inc()
}

// RecordCacheLookup records a verdict cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupTotal.WithLabelValues(result).Inc()
}
