package metrics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RecordDBPoolMetrics publishes a snapshot of the pool state.
func RecordDBPoolMetrics(pool *pgxpool.Pool) {
	stats := pool.Stat()

	DBPoolConnections.WithLabelValues("in_use").Set(float64(stats.AcquiredConns()))
	DBPoolConnections.WithLabelValues("idle").Set(float64(stats.IdleConns()))
	DBPoolConnections.WithLabelValues("max").Set(float64(stats.MaxConns()))
}

// CollectDBPoolMetrics samples the pool on an interval until the context is
// cancelled.
func CollectDBPoolMetrics(ctx context.Context, pool *pgxpool.Pool, interval time.Duration) {
	RecordDBPoolMetrics(pool)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			RecordDBPoolMetrics(pool)
		case <-ctx.Done():
			return
		}
	}
}
