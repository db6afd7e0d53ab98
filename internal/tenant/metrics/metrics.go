package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for tenant lifecycle operations.
type Metrics struct {
	TenantsCreated     prometheus.Counter
	TenantsDeleted     prometheus.Counter
	CascadeRowsDeleted *prometheus.CounterVec
	CascadeFailures    prometheus.Counter
}

// New creates and registers all tenant metrics.
func New() *Metrics {
	return &Metrics{
		TenantsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "metis_tenants_created_total",
			Help: "Total number of tenants created",
		}),
		TenantsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "metis_tenants_deleted_total",
			Help: "Total number of tenants removed via cascade deletion",
		}),
		CascadeRowsDeleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "metis_tenant_cascade_rows_deleted_total",
			Help: "Dependent rows removed during cascade deletions, by entity",
		}, []string{"entity"}),
		CascadeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "metis_tenant_cascade_failures_total",
			Help: "Cascade deletions that rolled back",
		}),
	}
}
