// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the einlass authentication layer.
package observability

import "github.com/prometheus/client_golang/prometheus"

// AuthBuckets defines histogram buckets suited for request latencies
// dominated by a single store lookup, ranging from 1ms to 10s.
var AuthBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "einlass_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "einlass_request_duration_seconds",
			Help:    "Request duration",
			Buckets: AuthBuckets,
		},
		[]string{"method"},
	)

	// ResolutionsTotal counts chain resolutions by outcome
	// (bound/failed/anonymous) and the strategy that decided it.
	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "einlass_resolutions_total",
			Help: "Chain resolutions",
		},
		[]string{"outcome", "strategy"},
	)

	// DenialsTotal counts denied requests by response class (401/403).
	DenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "einlass_denials_total",
			Help: "Denied requests",
		},
		[]string{"status"},
	)

	// TokensIssuedTotal counts tokens created by the obtain endpoint.
	TokensIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "einlass_tokens_issued_total",
			Help: "Tokens issued",
		},
	)

	// SessionsActive tracks the number of live server-side sessions.
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "einlass_sessions_active",
			Help: "Active sessions",
		},
	)

	// CSRFRejectedTotal counts requests rejected by the anti-forgery check.
	CSRFRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "einlass_csrf_rejected_total",
			Help: "CSRF rejections",
		},
	)

	// ThrottledTotal counts requests rejected by the rate limiter.
	ThrottledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "einlass_throttled_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		ResolutionsTotal,
		DenialsTotal,
		TokensIssuedTotal,
		SessionsActive,
		CSRFRejectedTotal,
		ThrottledTotal,
	)
}
