package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "taskboard_api_request_duration_seconds",
		Help:    "REST request latency by method, route and status",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)

func observeRequest(method, route, status string, start time.Time) {
	requestDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
}
