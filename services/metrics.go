package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	passCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cart_recovery",
		Subsystem: "monitor",
		Name:      "passes_total",
		Help:      "Number of snapshots evaluated by the monitor.",
	})

	sessionsGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "cart_recovery",
		Subsystem: "monitor",
		Name:      "sessions",
		Help:      "Sessions in the latest snapshot grouped by classification.",
	}, []string{"state"})

	notificationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cart_recovery",
		Subsystem: "alerts",
		Name:      "notifications_total",
		Help:      "Abandoned-cart alert attempts grouped by outcome.",
	}, []string{"status"})

	markerFailureCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cart_recovery",
		Subsystem: "alerts",
		Name:      "marker_write_failures_total",
		Help:      "Marker writes that failed after a successful alert.",
	})

	alertLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cart_recovery",
		Subsystem: "alerts",
		Name:      "dispatch_seconds",
		Help:      "Time spent posting one alert to the sink.",
		Buckets:   prometheus.DefBuckets,
	})

	lastPassGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cart_recovery",
		Subsystem: "monitor",
		Name:      "last_pass_timestamp_seconds",
		Help:      "Unix timestamp of the most recent monitor pass.",
	})
)

func init() {
	prometheus.MustRegister(passCounter, sessionsGauge, notificationCounter, markerFailureCounter, alertLatency, lastPassGauge)
}

func recordPass(r PassReport) {
	passCounter.Inc()
	sessionsGauge.WithLabelValues("total").Set(float64(r.Total))
	sessionsGauge.WithLabelValues("with_contact").Set(float64(r.WithContact))
	sessionsGauge.WithLabelValues("active").Set(float64(r.Active))
	sessionsGauge.WithLabelValues("converted").Set(float64(r.Converted))
	sessionsGauge.WithLabelValues("waiting").Set(float64(r.Waiting))
	sessionsGauge.WithLabelValues("abandoned").Set(float64(r.Abandoned))
	if !r.At.IsZero() {
		lastPassGauge.Set(float64(r.At.Unix()))
	}
}

func recordNotification(status string, took time.Duration) {
	notificationCounter.WithLabelValues(status).Inc()
	alertLatency.Observe(took.Seconds())
}

func recordMarkerFailure() {
	markerFailureCounter.Inc()
}
