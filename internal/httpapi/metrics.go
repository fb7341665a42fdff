package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics are the live process-level counters, complementing the durable
// operation_metrics family with something scrapeable.
type metrics struct {
	verifications *prometheus.CounterVec
	revocations   prometheus.Counter
	unavailable   prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "veriledger_verifications_total",
			Help: "Verifications resolved, by decision method.",
		}, []string{"method"}),
		revocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "veriledger_revocations_recorded_total",
			Help: "Revocation facts recorded on the ledger.",
		}),
		unavailable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "veriledger_ledger_unavailable_total",
			Help: "Verifications the ledger could not resolve.",
		}),
	}

	reg.MustRegister(m.verifications, m.revocations, m.unavailable)
	return m
}
