// Package metrics holds the prometheus collectors for the decision core.
// Collectors register into the default registry at load; exposure is opt-in
// via Serve.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glance_requests_total",
			Help: "Orchestrated requests by provider, template and outcome",
		},
		[]string{"provider", "template", "outcome"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "glance_request_duration_seconds",
			Help: "End-to-end request duration in seconds",
		},
		[]string{"provider"},
	)

	DispatchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "glance_dispatch_latency_seconds",
			Help: "Single backend dispatch latency in seconds",
		},
		[]string{"provider"},
	)

	FallbackCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "glance_fallbacks_total",
			Help: "Fallback transitions between backends",
		},
	)

	ProviderSuccessRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "glance_provider_success_rate",
			Help: "Decayed success rate per backend",
		},
		[]string{"provider"},
	)

	ProviderAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "glance_provider_available",
			Help: "Backend availability, 0 while blacklisted",
		},
		[]string{"provider"},
	)

	BlacklistCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glance_blacklists_total",
			Help: "Health blacklist transitions per backend",
		},
		[]string{"provider"},
	)

	NetworkOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "glance_network_online",
			Help: "Connectivity probe verdict, 1 when online",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "glance_active_sessions",
			Help: "Conversation sessions currently held in memory",
		},
	)

	MessagesStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "glance_messages_stored_total",
			Help: "Conversation messages written to memory",
		},
	)
)

// Handler returns the exposition endpoint for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr. Blocks; run it in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}
