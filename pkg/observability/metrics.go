// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the voxgate gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// SynthesisBuckets defines histogram buckets suited for TTS synthesis
// latencies, ranging from 100ms to 300s.
var SynthesisBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300}

var (
	// RequestsTotal counts all gateway requests by action and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxgate_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voxgate_request_duration_seconds",
			Help:    "Request duration",
			Buckets: SynthesisBuckets,
		},
		[]string{"method"},
	)

	// EngineRequestsTotal counts backend calls by engine and outcome.
	EngineRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxgate_engine_requests_total",
			Help: "Backend engine calls",
		},
		[]string{"engine", "status"},
	)

	// EngineLatency records backend engine latency in seconds.
	EngineLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voxgate_engine_latency_seconds",
			Help:    "Backend engine latency",
			Buckets: SynthesisBuckets,
		},
		[]string{"engine"},
	)

	// EngineRetriesTotal counts retried backend calls per engine.
	EngineRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxgate_engine_retries_total",
			Help: "Backend engine retries",
		},
		[]string{"engine"},
	)

	// TokensIssuedTotal counts tokens minted by generate_token.
	TokensIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voxgate_tokens_issued_total",
			Help: "Issued tokens",
		},
	)

	// TokenValidationFailuresTotal counts rejected tokens by failure kind.
	TokenValidationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxgate_token_validation_failures_total",
			Help: "Token validation failures",
		},
		[]string{"reason"},
	)

	// RateLimitRejectedTotal counts requests rejected by the per-user limiter.
	RateLimitRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voxgate_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		EngineRequestsTotal,
		EngineLatency,
		EngineRetriesTotal,
		TokensIssuedTotal,
		TokenValidationFailuresTotal,
		RateLimitRejectedTotal,
	)
}
