package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the inspection module.
type Metrics struct {
	InspectionsRecorded prometheus.Counter
	InspectionsVerified prometheus.Counter
	RejectedSubmissions prometheus.Counter
	RecordDuration      prometheus.Histogram
}

// New registers the inspection collectors on the default registerer.
func New() *Metrics {
	return &Metrics{
		InspectionsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sealedger_inspections_recorded_total",
			Help: "Total number of inspection records appended",
		}),
		InspectionsVerified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sealedger_inspections_verified_total",
			Help: "Total number of inspections verified",
		}),
		RejectedSubmissions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sealedger_rejected_submissions_total",
			Help: "Total number of submissions rejected by a precondition",
		}),
		RecordDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sealedger_record_inspection_duration_seconds",
			Help:    "Duration of recordInspection, including value sealing",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveRecord records the duration of a recordInspection call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveRecord(start time.Time) {
	m.RecordDuration.Observe(time.Since(start).Seconds())
}
