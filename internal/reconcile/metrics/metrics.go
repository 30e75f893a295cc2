package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the reconciliation engine.
type Metrics struct {
	EventsTotal        *prometheus.CounterVec
	Duplicates         prometheus.Counter
	OutOfOrder         prometheus.Counter
	Unmatched          prometheus.Counter
	TransitionDuration prometheus.Histogram
}

// New registers all engine metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		EventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dataspace_reconcile_events_total",
			Help: "Normalized events processed, by kind and outcome",
		}, []string{"kind", "outcome"}),
		Duplicates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dataspace_reconcile_duplicate_events_total",
			Help: "Events discarded because the ledger already recorded them",
		}),
		OutOfOrder: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dataspace_reconcile_out_of_order_events_total",
			Help: "Events rejected because they arrived ahead of the record state",
		}),
		Unmatched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dataspace_reconcile_unmatched_events_total",
			Help: "Events dropped because no record correlates to them",
		}),
		TransitionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dataspace_reconcile_transition_duration_seconds",
			Help:    "Duration of one applied transition including persistence",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveTransition records the duration of one applied transition. Call with
// time.Now() at the start of the transition.
func (m *Metrics) ObserveTransition(start time.Time) {
	m.TransitionDuration.Observe(time.Since(start).Seconds())
}
