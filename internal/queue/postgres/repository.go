// Package postgres provides the PostgreSQL implementation of the push queue
// repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/feedops/courier/internal/domain"
	"github.com/feedops/courier/internal/queue"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements queue.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const itemColumns = `id, rule_name, push_url, status, attempt_count, last_attempt_at, message, content_type, content_id, created_at, updated_at`

func scanItem(row pgx.Row) (*queue.Item, error) {
	var item queue.Item
	err := row.Scan(
		&item.ID,
		&item.RuleName,
		&item.PushURL,
		&item.Status,
		&item.AttemptCount,
		&item.LastAttemptAt,
		&item.Message,
		&item.ContentRef.Type,
		&item.ContentRef.ID,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Create inserts a new queue item.
func (r *Repository) Create(ctx context.Context, item *queue.Item) error {
	query := `
		INSERT INTO push_queue (id, rule_name, push_url, status, attempt_count, message, content_type, content_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		item.ID,
		item.RuleName,
		item.PushURL,
		item.Status,
		item.AttemptCount,
		item.Message,
		item.ContentRef.Type,
		item.ContentRef.ID,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create queue item: %w", err)
	}
	return nil
}

// HasNew reports whether a NEW item exists for the (rule, entity) pair.
func (r *Repository) HasNew(ctx context.Context, ruleName string, ref domain.ContentRef) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM push_queue
			WHERE rule_name = $1 AND status = $2 AND content_type = $3 AND content_id = $4
		)
	`
	var exists bool
	err := r.db.QueryRow(ctx, query, ruleName, queue.StatusNew, ref.Type, ref.ID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check duplicate: %w", err)
	}
	return exists, nil
}

// FetchNew returns up to limit NEW items, oldest first.
func (r *Repository) FetchNew(ctx context.Context, limit int) ([]*queue.Item, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM push_queue
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2
	`, itemColumns)

	rows, err := r.db.Query(ctx, query, queue.StatusNew, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch new items: %w", err)
	}
	defer rows.Close()

	items := make([]*queue.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Claim transitions an item NEW -> IN_PROGRESS. The status predicate makes
// the claim atomic across concurrent pipeline runs.
func (r *Repository) Claim(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE push_queue
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`
	result, err := r.db.Exec(ctx, query, id, queue.StatusInProgress, queue.StatusNew)
	if err != nil {
		return false, fmt.Errorf("claim item: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// RecordAttempt increments the attempt counter and stamps the attempt time.
func (r *Repository) RecordAttempt(ctx context.Context, id string) error {
	query := `
		UPDATE push_queue
		SET attempt_count = attempt_count + 1, last_attempt_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	if result.RowsAffected() == 0 {
		return queue.ErrItemNotFound
	}
	return nil
}

// MarkPushed finalizes an item as delivered.
func (r *Repository) MarkPushed(ctx context.Context, id, message string) error {
	query := `
		UPDATE push_queue
		SET status = $2, message = $3, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query, id, queue.StatusPushed, message)
	if err != nil {
		return fmt.Errorf("mark pushed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return queue.ErrItemNotFound
	}
	return nil
}

// MarkFailed moves an item to an error status, appending the message to any
// previous diagnostics.
func (r *Repository) MarkFailed(ctx context.Context, id string, status queue.Status, message string) error {
	query := `
		UPDATE push_queue
		SET status = $2,
		    message = CASE WHEN message = '' THEN $3 ELSE message || E'\n' || $3 END,
		    updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query, id, status, message)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return queue.ErrItemNotFound
	}
	return nil
}

// CountNewOlderThan counts NEW items created before now-age.
func (r *Repository) CountNewOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	query := `
		SELECT COUNT(*) FROM push_queue
		WHERE status = $1 AND created_at < NOW() - $2::interval
	`
	var count int64
	err := r.db.QueryRow(ctx, query, queue.StatusNew, interval(age)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count new items: %w", err)
	}
	return count, nil
}

// ListPushedOlderThan returns ids of PUSHED items eligible for retention.
func (r *Repository) ListPushedOlderThan(ctx context.Context, age time.Duration) ([]string, error) {
	query := `
		SELECT id FROM push_queue
		WHERE status = $1 AND last_attempt_at <= NOW() - $2::interval
		ORDER BY last_attempt_at
	`
	rows, err := r.db.Query(ctx, query, queue.StatusPushed, interval(age))
	if err != nil {
		return nil, fmt.Errorf("list pushed items: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan item id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeletePushedOlderThan removes old PUSHED items and returns the count.
func (r *Repository) DeletePushedOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	query := `
		DELETE FROM push_queue
		WHERE status = $1 AND last_attempt_at <= NOW() - $2::interval
	`
	result, err := r.db.Exec(ctx, query, queue.StatusPushed, interval(age))
	if err != nil {
		return 0, fmt.Errorf("delete pushed items: %w", err)
	}
	return result.RowsAffected(), nil
}

// GetStats returns per-status counts.
func (r *Repository) GetStats(ctx context.Context) (*queue.Stats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = $1),
			COUNT(*) FILTER (WHERE status = $2),
			COUNT(*) FILTER (WHERE status = $3),
			COUNT(*) FILTER (WHERE status >= 100)
		FROM push_queue
	`
	var stats queue.Stats
	err := r.db.QueryRow(ctx, query, queue.StatusNew, queue.StatusInProgress, queue.StatusPushed).
		Scan(&stats.New, &stats.InProgress, &stats.Pushed, &stats.Failed)
	if err != nil {
		return nil, fmt.Errorf("get queue stats: %w", err)
	}
	return &stats, nil
}

// GetByID retrieves one item. Used by tests and diagnostics.
func (r *Repository) GetByID(ctx context.Context, id string) (*queue.Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM push_queue WHERE id = $1`, itemColumns)
	item, err := scanItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, queue.ErrItemNotFound
		}
		return nil, fmt.Errorf("get queue item: %w", err)
	}
	return item, nil
}

// interval renders a duration as a postgres interval literal.
func interval(d time.Duration) string {
	return fmt.Sprintf("%d seconds", int64(d.Seconds()))
}
