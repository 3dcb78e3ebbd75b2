package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for the voting pipeline
var (
	VoteOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vote_outcomes_total",
			Help: "Vote submissions by outcome and the layer that decided it",
		},
		[]string{"outcome", "layer"},
	)

	RateLimitRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	DeviceBootstrapsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_bootstraps_total",
			Help: "Device bootstrap requests by whether a new token was minted",
		},
		[]string{"new"},
	)

	AdminOverridesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_overrides_total",
			Help: "Administrative overrides by action",
		},
		[]string{"action"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

var registerOnce sync.Once

// Register registers all Prometheus metrics with the default registry.
// Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(VoteOutcomesTotal)
		prometheus.MustRegister(RateLimitRejectionsTotal)
		prometheus.MustRegister(DeviceBootstrapsTotal)
		prometheus.MustRegister(AdminOverridesTotal)
		prometheus.MustRegister(HTTPRequestDuration)
	})
}
