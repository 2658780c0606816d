package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/feedops/courier/internal/queue"
)

// CleanQueue removes PUSHED items whose last delivery is older than age.
// With dryRun set it only reports the ids that would be removed. Failed items
// are never swept: they are the audit trail for operators.
func CleanQueue(ctx context.Context, repo queue.Repository, age time.Duration, dryRun bool) (int64, []string, error) {
	if dryRun {
		ids, err := repo.ListPushedOlderThan(ctx, age)
		if err != nil {
			return 0, nil, fmt.Errorf("list expired items: %w", err)
		}
		slog.Info("retention dry run", "age", age, "candidates", len(ids))
		return int64(len(ids)), ids, nil
	}

	deleted, err := repo.DeletePushedOlderThan(ctx, age)
	if err != nil {
		return 0, nil, fmt.Errorf("delete expired items: %w", err)
	}

	slog.Info("retention sweep finished", "age", age, "deleted", deleted)
	return deleted, nil, nil
}
