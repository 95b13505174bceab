package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification registry.
type Metrics struct {
	Issued  prometheus.Counter
	Lookups *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Issued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_verification_records_issued_total",
			Help: "Verification records created for new evidence instances",
		}),
		Lookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_verification_lookups_total",
			Help: "Public verification lookups by outcome",
		}, []string{"outcome"}), // outcome: "found", "not_found"
	}
}

func (m *Metrics) IncrementIssued() {
	if m != nil {
		m.Issued.Inc()
	}
}

func (m *Metrics) IncrementLookup(outcome string) {
	if m != nil {
		m.Lookups.WithLabelValues(outcome).Inc()
	}
}
