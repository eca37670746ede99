package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for consent lifecycle activity.
type Metrics struct {
	Granted       *prometheus.CounterVec
	Withdrawn     *prometheus.CounterVec
	Verifications *prometheus.CounterVec
}

// New registers and returns consent metrics collectors.
func New() *Metrics {
	return &Metrics{
		Granted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_consent_granted_total",
			Help: "Total consent grants recorded, labeled by consent type",
		}, []string{"consent_type"}),
		Withdrawn: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_consent_withdrawn_total",
			Help: "Total consent withdrawals recorded, labeled by consent type",
		}, []string{"consent_type"}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_consent_verifications_total",
			Help: "Total consent verification checks, labeled by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) RecordGrant(consentType string) {
	if m == nil {
		return
	}
	m.Granted.WithLabelValues(consentType).Inc()
}

func (m *Metrics) RecordWithdrawal(consentType string) {
	if m == nil {
		return
	}
	m.Withdrawn.WithLabelValues(consentType).Inc()
}

func (m *Metrics) RecordVerification(valid bool) {
	if m == nil {
		return
	}
	outcome := "valid"
	if !valid {
		outcome = "invalid"
	}
	m.Verifications.WithLabelValues(outcome).Inc()
}
