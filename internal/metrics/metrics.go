package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess     = "success"
	OutcomeNotFound    = "not_found"
	OutcomeOutOfStock  = "out_of_stock"
	OutcomeDuplicate   = "duplicate"
	OutcomeInvalid     = "invalid"
	OutcomePersistence = "persistence_error"
)

type Metrics struct {
	Transitions       *prometheus.CounterVec
	TransitionLatency *prometheus.HistogramVec
	CommitConflicts   prometheus.Counter
}

// New registers the ledger collectors on reg. Pass a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stockledger_transitions_total",
			Help: "Assign and return requests by outcome",
		}, []string{"action", "outcome"}),
		TransitionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stockledger_transition_duration_seconds",
			Help:    "Time spent in assign and return, including lock wait",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		CommitConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "stockledger_commit_conflicts_total",
			Help: "Optimistic lock conflicts seen while committing a transition",
		}),
	}
}

// ObserveTransition is a no-op on a nil receiver.
func (m *Metrics) ObserveTransition(action, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(action, outcome).Inc()
	m.TransitionLatency.WithLabelValues(action).Observe(elapsed.Seconds())
}

func (m *Metrics) IncrementCommitConflicts() {
	if m == nil {
		return
	}
	m.CommitConflicts.Inc()
}
