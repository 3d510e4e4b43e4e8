package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the aggregation module.
type Metrics struct {
	Recomputations    prometheus.Counter
	RecomputeDuration prometheus.Histogram
	RecordsScanned    prometheus.Counter
}

// New registers the aggregation collectors on the default registerer.
func New() *Metrics {
	return &Metrics{
		Recomputations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sealedger_metric_recomputations_total",
			Help: "Total number of category metric recomputations",
		}),
		RecomputeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sealedger_metric_recompute_duration_seconds",
			Help:    "Duration of full-ledger category scans",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
		RecordsScanned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sealedger_metric_records_scanned_total",
			Help: "Total records visited by category scans",
		}),
	}
}

// ObserveRecompute records the duration of one recomputation.
func (m *Metrics) ObserveRecompute(start time.Time) {
	m.RecomputeDuration.Observe(time.Since(start).Seconds())
}
