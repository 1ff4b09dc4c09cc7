// Package metrics
package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChecksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "termin_checks_total",
			Help: "Total number of appointment check runs.",
		},
	)
	FetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "termin_fetch_errors_total",
			Help: "Total number of failed page fetches, labeled by page kind.",
		},
		[]string{"page"},
	)
	FindingsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "termin_findings_total",
			Help: "Total number of availability findings across all runs.",
		},
	)
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "termin_notifications_total",
			Help: "Notification attempts, labeled by channel and outcome.",
		},
		[]string{"channel", "outcome"},
	)
	CheckDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "termin_check_duration_seconds",
			Help:    "Duration of one full check run in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(ChecksTotal)
	prometheus.MustRegister(FetchErrorsTotal)
	prometheus.MustRegister(FindingsTotal)
	prometheus.MustRegister(NotificationsTotal)
	prometheus.MustRegister(CheckDuration)
}

func ExposeMetrics(addr string) {
	slog.Info("Exposing Prometheus metrics", "address", addr)
	http.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("Failed to start Prometheus metrics server", "error", err)
	}
}
