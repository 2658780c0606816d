package queue

import (
	"context"
	"errors"
	"time"

	"github.com/feedops/courier/internal/domain"
)

// Repository errors.
var (
	ErrItemNotFound = errors.New("queue item not found")
)

// Stats holds per-status queue counts.
type Stats struct {
	New        int64
	InProgress int64
	Pushed     int64
	Failed     int64
}

// Repository is the persistence contract for the push queue.
type Repository interface {
	// Create inserts a new item. The store assigns CreatedAt; the caller
	// assigns the ID.
	Create(ctx context.Context, item *Item) error

	// HasNew reports whether a NEW item already exists for the given
	// (rule, entity) pair. Backs duplicate suppression at enqueue time.
	HasNew(ctx context.Context, ruleName string, ref domain.ContentRef) (bool, error)

	// FetchNew returns up to limit NEW items ordered by creation time.
	FetchNew(ctx context.Context, limit int) ([]*Item, error)

	// Claim transitions one item NEW -> IN_PROGRESS. The update is atomic:
	// it only applies while the item is still NEW, so two concurrent runs
	// never claim the same item. Returns false when the claim was lost.
	Claim(ctx context.Context, id string) (bool, error)

	// RecordAttempt increments the attempt counter and stamps the attempt
	// time. Called before each delivery attempt so a crash mid-attempt
	// still reflects that the attempt was made.
	RecordAttempt(ctx context.Context, id string) error

	// MarkPushed finalizes an item as delivered, replacing its message.
	MarkPushed(ctx context.Context, id, message string) error

	// MarkFailed moves an item to an error status. The message is appended
	// to any previous diagnostics, newline-separated, so partial failures
	// within one pass accumulate.
	MarkFailed(ctx context.Context, id string, status Status, message string) error

	// CountNewOlderThan counts NEW items created before now-age. Backs the
	// health check.
	CountNewOlderThan(ctx context.Context, age time.Duration) (int64, error)

	// ListPushedOlderThan returns ids of PUSHED items whose last attempt is
	// older than age. Used by retention dry runs.
	ListPushedOlderThan(ctx context.Context, age time.Duration) ([]string, error)

	// DeletePushedOlderThan removes PUSHED items whose last attempt is
	// older than age and returns the number deleted.
	DeletePushedOlderThan(ctx context.Context, age time.Duration) (int64, error)

	// GetStats returns per-status counts for metrics.
	GetStats(ctx context.Context) (*Stats, error)
}
