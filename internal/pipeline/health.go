package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/feedops/courier/internal/queue"
)

// Health check exit codes, in the usual monitoring convention.
const (
	HealthOK       = 0
	HealthWarning  = 1
	HealthCritical = 2
)

// HealthThresholds holds the queue-age thresholds for the health check.
type HealthThresholds struct {
	// Warning is the age past which a NEW item degrades health.
	Warning time.Duration

	// Critical is the age past which a NEW item is an outage signal.
	Critical time.Duration
}

// DefaultHealthThresholds returns the default thresholds.
func DefaultHealthThresholds() HealthThresholds {
	return HealthThresholds{
		Warning:  10 * time.Minute,
		Critical: 30 * time.Minute,
	}
}

// CheckHealth inspects the age of undispatched queue items and returns a
// monitoring exit code with a one-line summary. Critical wins over warning.
func CheckHealth(ctx context.Context, repo queue.Repository, thresholds HealthThresholds) (int, string, error) {
	critical, err := repo.CountNewOlderThan(ctx, thresholds.Critical)
	if err != nil {
		return HealthCritical, "", fmt.Errorf("count stale items: %w", err)
	}
	if critical > 0 {
		return HealthCritical, fmt.Sprintf("CRITICAL: %d items queued for more than %s", critical, thresholds.Critical), nil
	}

	warning, err := repo.CountNewOlderThan(ctx, thresholds.Warning)
	if err != nil {
		return HealthCritical, "", fmt.Errorf("count stale items: %w", err)
	}
	if warning > 0 {
		return HealthWarning, fmt.Sprintf("WARNING: %d items queued for more than %s", warning, thresholds.Warning), nil
	}

	return HealthOK, "OK: queue is current", nil
}
