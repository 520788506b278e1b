package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful runs and lookups.
	OutcomeSuccess = "success"
	// OutcomeError labels failed runs (fetch, shape or persistence issues).
	OutcomeError = "error"
	// OutcomeFallback labels label lookups that degraded to an "Unknown" sentinel.
	OutcomeFallback = "fallback"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "instana_sre",
			Name:      "runs_total",
			Help:      "Total number of command runs, partitioned by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	runDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "instana_sre",
			Name:      "run_seconds",
			Help:      "Run latency in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60, 120},
		},
		[]string{"operation"},
	)

	labelLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "instana_sre",
			Name:      "label_lookups_total",
			Help:      "Entity label lookups, partitioned by entity kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	actionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "instana_sre",
			Name:      "action_requests_total",
			Help:      "Requests sent to the AI action endpoints, partitioned by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)
)

// Register attaches instana-sre collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		runsTotal,
		runDurationSeconds,
		labelLookupsTotal,
		actionRequestsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRun records a run duration and outcome label for operation.
func ObserveRun(operation string, duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	runsTotal.WithLabelValues(operation, label).Inc()
	if duration < 0 {
		duration = 0
	}
	runDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveLabelLookup counts one resolver call for kind (endpoint, service, infrastructure).
func ObserveLabelLookup(kind, outcome string) {
	labelLookupsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveActionRequest counts one call to an AI action endpoint.
func ObserveActionRequest(endpoint, outcome string) {
	actionRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
}
