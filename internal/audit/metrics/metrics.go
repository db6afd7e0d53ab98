package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit subsystem. Write failures
// are surfaced here instead of failing the business operation that triggered
// the audit call.
type Metrics struct {
	RecordsWritten        *prometheus.CounterVec
	WriteFailures         prometheus.Counter
	SerializationFailures prometheus.Counter
	RelayPublished        prometheus.Counter
	RelayFailures         prometheus.Counter
}

// New creates and registers all audit metrics.
func New() *Metrics {
	return &Metrics{
		RecordsWritten: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "metis_audit_records_written_total",
			Help: "Audit records appended to the store, by operation",
		}, []string{"operation"}),
		WriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "metis_audit_write_failures_total",
			Help: "Audit append attempts that failed at the storage level",
		}),
		SerializationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "metis_audit_serialization_failures_total",
			Help: "Entity snapshots that could not be serialized",
		}),
		RelayPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "metis_audit_relay_published_total",
			Help: "Audit records published to Kafka by the relay",
		}),
		RelayFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "metis_audit_relay_failures_total",
			Help: "Audit records the relay failed to publish",
		}),
	}
}
