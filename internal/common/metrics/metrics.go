// internal/common/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StageCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "change_order_stage_completed_total",
			Help: "Total number of pipeline stages completed",
		},
		[]string{"stage"},
	)

	StageFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "change_order_stage_failed_total",
			Help: "Total number of pipeline stages failed",
		},
		[]string{"stage", "error_code"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "change_order_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{0.005, 0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	RunsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "change_order_runs_active",
			Help: "Number of pipeline runs in flight",
		},
		[]string{"source"},
	)

	LineItemsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "change_order_line_items_dropped_total",
			Help: "Line items dropped by the breakdown validator",
		},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "change_order_requests_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)

// ObserveStage records one stage outcome. An empty errorCode means success.
func ObserveStage(stage string, started time.Time, errorCode string) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
	if errorCode == "" {
		StageCompleted.WithLabelValues(stage).Inc()
		return
	}
	StageFailed.WithLabelValues(stage, errorCode).Inc()
}
