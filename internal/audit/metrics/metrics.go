package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for audit logging operations.
type Metrics struct {
	EntriesLogged       *prometheus.CounterVec
	PersistenceFailures prometheus.Counter
	EntriesArchived     prometheus.Counter
	EntriesPurged       prometheus.Counter
	IntegrityIssues     prometheus.Gauge
	LogLatency          prometheus.Histogram
}

// New registers and returns audit metrics collectors.
func New() *Metrics {
	return &Metrics{
		EntriesLogged: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_audit_entries_logged_total",
			Help: "Total audit entries persisted, labeled by event type and severity",
		}, []string{"event_type", "severity"}),
		PersistenceFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_audit_persistence_failures_total",
			Help: "Total audit entries that failed to persist",
		}),
		EntriesArchived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_audit_entries_archived_total",
			Help: "Total audit entries moved to the archived tier",
		}),
		EntriesPurged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_audit_entries_purged_total",
			Help: "Total audit entries permanently removed by retention cleanup",
		}),
		IntegrityIssues: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "custodia_audit_integrity_issues",
			Help: "Issues found by the most recent integrity verification",
		}),
		LogLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "custodia_audit_log_latency_seconds",
			Help:    "Latency of audit log writes in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementEntriesLogged(eventType, severity string) {
	m.EntriesLogged.WithLabelValues(eventType, severity).Inc()
}

func (m *Metrics) IncrementPersistenceFailures() {
	m.PersistenceFailures.Inc()
}

func (m *Metrics) AddEntriesArchived(count float64) {
	m.EntriesArchived.Add(count)
}

func (m *Metrics) AddEntriesPurged(count float64) {
	m.EntriesPurged.Add(count)
}

func (m *Metrics) SetIntegrityIssues(count float64) {
	m.IntegrityIssues.Set(count)
}

func (m *Metrics) ObserveLogLatency(seconds float64) {
	m.LogLatency.Observe(seconds)
}
