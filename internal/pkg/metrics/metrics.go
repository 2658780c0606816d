// Package metrics provides Prometheus metrics definitions shared across the
// application, plus collectors for infrastructure state.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "courier"

// DBPoolConnections tracks database connection pool state.
var DBPoolConnections = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "db",
		Name:      "pool_connections",
		Help:      "Number of database connections by state",
	},
	[]string{"state"},
)
