package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "jan"
	subsystem = "dispatch_api"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Outcome of each provider call, labelled by outcome kind ("ok" on success).
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "provider_calls_total",
			Help:      "Provider calls by outcome",
		},
		[]string{"provider", "outcome"},
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "provider_call_duration_seconds",
			Help:      "Provider call duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "model"},
	)

	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tokens_total",
			Help:      "Total tokens reported by providers",
		},
		[]string{"provider", "model"},
	)

	KeySelectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "key_selections_total",
			Help:      "Key claims by result",
		},
		[]string{"provider", "result"},
	)

	KeyPoolSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "key_pool_size",
			Help:      "Keys per provider and status as of the last pool report",
		},
		[]string{"provider", "status"},
	)

	// State machine transitions: parked, recovered_lazy, short_circuited.
	SessionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "session_transitions_total",
			Help:      "Rate-limit state transitions driven by message dispatch",
		},
		[]string{"provider", "transition"},
	)

	SweepRecoveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sweep_recovered_total",
			Help:      "Keys and sessions recovered by the recovery sweep",
		},
		[]string{"entity"},
	)

	SweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sweep_runs_total",
			Help:      "Recovery sweep runs by result",
		},
		[]string{"result"},
	)
)

func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint, status).Observe(durationSec)
}

func RecordProviderCall(provider, model, outcome string, durationSec float64) {
	ProviderCallsTotal.WithLabelValues(provider, outcome).Inc()
	ProviderCallDuration.WithLabelValues(provider, model).Observe(durationSec)
}

func RecordTokens(provider, model string, tokens int) {
	if tokens <= 0 {
		return
	}
	TokensTotal.WithLabelValues(provider, model).Add(float64(tokens))
}

func RecordKeySelection(provider, result string) {
	KeySelectionsTotal.WithLabelValues(provider, result).Inc()
}

func SetKeyPoolSize(provider, status string, n int) {
	KeyPoolSize.WithLabelValues(provider, status).Set(float64(n))
}

func RecordSessionTransition(provider, transition string) {
	SessionTransitionsTotal.WithLabelValues(provider, transition).Inc()
}

// RecordSweep records one sweep run; failed runs pass err != nil and zero counts.
func RecordSweep(keys, sessions int64, err error) {
	if err != nil {
		SweepRunsTotal.WithLabelValues("error").Inc()
		return
	}
	SweepRunsTotal.WithLabelValues("ok").Inc()
	SweepRecoveredTotal.WithLabelValues("keys").Add(float64(keys))
	SweepRecoveredTotal.WithLabelValues("sessions").Add(float64(sessions))
}
