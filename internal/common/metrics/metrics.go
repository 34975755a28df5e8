package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	Namespace = "dealwatch"

	TrackerSubsystem = "tracker"
)

var (
	ScrapeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: TrackerSubsystem,
			Name:      "scrape_requests_total",
			Help:      "Total number of scrape requests by source",
		},
		[]string{"source", "status"},
	)

	ScrapeRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: TrackerSubsystem,
			Name:      "scrape_request_duration_seconds",
			Help:      "Scrape request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		},
		[]string{"source"},
	)

	TrackedItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: TrackerSubsystem,
			Name:      "tracked_items",
			Help:      "Number of items in the baseline snapshot",
		},
		[]string{"pipeline"},
	)

	ItemsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: TrackerSubsystem,
			Name:      "items_classified_total",
			Help:      "Reconcile outcomes by class",
		},
		[]string{"pipeline", "class"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: TrackerSubsystem,
			Name:      "notifications_total",
			Help:      "Dispatch outcomes per pipeline",
		},
		[]string{"pipeline", "status"},
	)

	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: TrackerSubsystem,
			Name:      "cycle_duration_seconds",
			Help:      "Full cycle duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
		[]string{"pipeline"},
	)
)

// RecordScrape tracks one adapter fetch.
func RecordScrape(source string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	ScrapeRequestsTotal.WithLabelValues(source, status).Inc()
	ScrapeRequestDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
}
