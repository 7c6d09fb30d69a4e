package metrics

import "github.com/prometheus/client_golang/prometheus"

// Engine Prometheus metrics.
var (
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "matdex",
			Name:      "stage_duration_seconds",
			Help:      "Per-stage query latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"stage"},
	)

	BranchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matdex",
			Name:      "branch_total",
			Help:      "Branch executions by outcome",
		},
		[]string{"branch", "outcome"}, // outcome: "ok" / "error" / "timeout" / "skipped"
	)

	SearchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matdex",
			Name:      "search_total",
			Help:      "Search requests by routed strategy and degradation",
		},
		[]string{"strategy", "degraded"},
	)

	ScoreClampTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matdex",
			Name:      "score_clamp_total",
			Help:      "Out-of-range scores clamped per source adapter",
		},
		[]string{"source"},
	)
)

var engineMetricsRegistered bool

// RegisterEngineMetrics registers engine metrics. Must be called once from main.
func RegisterEngineMetrics() {
	if engineMetricsRegistered {
		return
	}
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(BranchTotal)
	prometheus.MustRegister(SearchTotal)
	prometheus.MustRegister(ScoreClampTotal)
	engineMetricsRegistered = true
}
