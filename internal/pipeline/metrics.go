package pipeline

import (
	"time"

	"github.com/feedops/courier/internal/queue"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "courier"

var (
	// pushesTotal counts processed queue items by final result.
	pushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "items_total",
			Help:      "Processed queue items by rule and result",
		},
		[]string{"rule", "result"},
	)

	// pushDuration tracks end-to-end item processing latency.
	pushDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "duration_seconds",
			Help:      "End-to-end item processing duration in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"rule"},
	)

	// exportFailures counts export-stage failures by status name.
	exportFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "failures_total",
			Help:      "Export stage failures by rule and status",
		},
		[]string{"rule", "status"},
	)

	// queueItems mirrors the per-status queue depth.
	queueItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "items",
			Help:      "Queue items by status group",
		},
		[]string{"status"},
	)
)

func recordPush(rule, result string, duration time.Duration) {
	pushesTotal.WithLabelValues(rule, result).Inc()
	pushDuration.WithLabelValues(rule).Observe(duration.Seconds())
}

func recordExportFailure(rule string, status queue.Status) {
	exportFailures.WithLabelValues(rule, status.String()).Inc()
}

// RecordQueueStats publishes queue depth gauges.
func RecordQueueStats(stats *queue.Stats) {
	queueItems.WithLabelValues("new").Set(float64(stats.New))
	queueItems.WithLabelValues("in_progress").Set(float64(stats.InProgress))
	queueItems.WithLabelValues("pushed").Set(float64(stats.Pushed))
	queueItems.WithLabelValues("failed").Set(float64(stats.Failed))
}
