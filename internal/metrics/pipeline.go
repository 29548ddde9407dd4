package metrics

import "github.com/prometheus/client_golang/prometheus"

// Conversion pipeline Prometheus metrics.
var (
	ConversionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outliner",
			Name:      "conversions_total",
			Help:      "Total number of conversion pipeline runs",
		},
		[]string{"kind", "status"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "outliner",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"stage"}, // "normalize" / "rasterize" / "trace" / "decompose"
	)

	PathsPerConversion = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "outliner",
			Name:      "paths_per_conversion",
			Help:      "Path records emitted per successful conversion",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 200, 300},
		},
	)

	TraceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outliner",
			Name:      "trace_requests_total",
			Help:      "Total requests to the contour-tracing engine",
		},
		[]string{"status"},
	)

	TraceRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "outliner",
			Name:      "trace_request_duration_seconds",
			Help:      "Contour-tracing engine request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	OutlineCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outliner",
			Name:      "outline_cache_total",
			Help:      "Outline cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers the pipeline metrics. Must be called
// once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(ConversionsTotal)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(PathsPerConversion)
	prometheus.MustRegister(TraceRequestsTotal)
	prometheus.MustRegister(TraceRequestDuration)
	prometheus.MustRegister(OutlineCacheTotal)
	pipelineMetricsRegistered = true
}
