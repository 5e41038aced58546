// Package metrics holds the Prometheus collectors shared by the daily quiz packages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DailyAttempts counts attempt submissions by outcome:
	// not_playable, already_solved, exhausted, solved, missed, conflict.
	DailyAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ruesquiz_daily_attempts_total",
		Help: "Daily attempt submissions by outcome",
	}, []string{"outcome"})

	// DatasetLoads counts dataset fetches by dataset and result.
	DatasetLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ruesquiz_dataset_loads_total",
		Help: "GeoJSON dataset loads by dataset and result",
	}, []string{"dataset", "result"})

	// HTTPDuration tracks handler latency.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ruesquiz_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	}, []string{"route", "method", "status"})
)
