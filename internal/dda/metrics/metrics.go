package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the template module.
type Metrics struct {
	TemplatesCreated prometheus.Counter
	VersionsCreated  prometheus.Counter
	StatusChanges    *prometheus.CounterVec
	ArchiveConflicts prometheus.Counter
	ListDuration     prometheus.Histogram
}

// New registers all template module metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		TemplatesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dataspace_dda_templates_created_total",
			Help: "Total number of template lineages created",
		}),
		VersionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dataspace_dda_versions_created_total",
			Help: "Total number of new template versions appended",
		}),
		StatusChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dataspace_dda_status_changes_total",
			Help: "Template status transitions by target status",
		}, []string{"status"}),
		ArchiveConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dataspace_dda_archive_conflicts_total",
			Help: "Archive attempts rejected because active agreement records exist",
		}),
		ListDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dataspace_dda_list_duration_seconds",
			Help:    "Duration of template listing operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveList records the duration of a listing operation. Call with
// time.Now() at the start of the operation.
func (m *Metrics) ObserveList(start time.Time) {
	m.ListDuration.Observe(time.Since(start).Seconds())
}
