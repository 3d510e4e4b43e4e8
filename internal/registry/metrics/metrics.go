package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registry module.
type Metrics struct {
	InspectorsAuthorized prometheus.Counter
	InspectorsRevoked    prometheus.Counter
	PauseToggles         prometheus.Counter
}

// New registers the registry collectors on the default registerer.
func New() *Metrics {
	return &Metrics{
		InspectorsAuthorized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sealedger_inspectors_authorized_total",
			Help: "Total number of inspector authorizations",
		}),
		InspectorsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sealedger_inspectors_revoked_total",
			Help: "Total number of inspector revocations",
		}),
		PauseToggles: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sealedger_pause_toggles_total",
			Help: "Total number of pause/unpause transitions",
		}),
	}
}
