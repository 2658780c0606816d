package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/feedops/courier/internal/domain"
	"github.com/feedops/courier/internal/queue"
)

// QueueRepository is an in-memory queue.Repository for unit tests. It mirrors
// the transition semantics of the postgres implementation, including the
// atomic NEW -> IN_PROGRESS claim and message accumulation on failures.
type QueueRepository struct {
	mu    sync.Mutex
	items map[string]*queue.Item
}

// NewQueueRepository creates an empty in-memory repository.
func NewQueueRepository() *QueueRepository {
	return &QueueRepository{items: make(map[string]*queue.Item)}
}

// Create implements queue.Repository.
func (r *QueueRepository) Create(_ context.Context, item *queue.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *item
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.UpdatedAt = stored.CreatedAt
	r.items[stored.ID] = &stored
	return nil
}

// HasNew implements queue.Repository.
func (r *QueueRepository) HasNew(_ context.Context, ruleName string, ref domain.ContentRef) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range r.items {
		if item.Status == queue.StatusNew && item.RuleName == ruleName && item.ContentRef == ref {
			return true, nil
		}
	}
	return false, nil
}

// FetchNew implements queue.Repository.
func (r *QueueRepository) FetchNew(_ context.Context, limit int) ([]*queue.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*queue.Item
	for _, item := range r.items {
		if item.Status == queue.StatusNew {
			copied := *item
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Claim implements queue.Repository.
func (r *QueueRepository) Claim(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok || item.Status != queue.StatusNew {
		return false, nil
	}
	item.Status = queue.StatusInProgress
	item.UpdatedAt = time.Now()
	return true, nil
}

// RecordAttempt implements queue.Repository.
func (r *QueueRepository) RecordAttempt(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return queue.ErrItemNotFound
	}
	now := time.Now()
	item.AttemptCount++
	item.LastAttemptAt = &now
	item.UpdatedAt = now
	return nil
}

// MarkPushed implements queue.Repository.
func (r *QueueRepository) MarkPushed(_ context.Context, id, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return queue.ErrItemNotFound
	}
	item.Status = queue.StatusPushed
	item.Message = message
	item.UpdatedAt = time.Now()
	return nil
}

// MarkFailed implements queue.Repository.
func (r *QueueRepository) MarkFailed(_ context.Context, id string, status queue.Status, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return queue.ErrItemNotFound
	}
	item.Status = status
	if item.Message == "" {
		item.Message = message
	} else {
		item.Message = item.Message + "\n" + message
	}
	item.UpdatedAt = time.Now()
	return nil
}

// CountNewOlderThan implements queue.Repository.
func (r *QueueRepository) CountNewOlderThan(_ context.Context, age time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-age)
	var count int64
	for _, item := range r.items {
		if item.Status == queue.StatusNew && item.CreatedAt.Before(cutoff) {
			count++
		}
	}
	return count, nil
}

// ListPushedOlderThan implements queue.Repository.
func (r *QueueRepository) ListPushedOlderThan(_ context.Context, age time.Duration) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-age)
	var ids []string
	for _, item := range r.items {
		if item.Status == queue.StatusPushed && item.LastAttemptAt != nil && item.LastAttemptAt.Before(cutoff) {
			ids = append(ids, item.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// DeletePushedOlderThan implements queue.Repository.
func (r *QueueRepository) DeletePushedOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	ids, err := r.ListPushedOlderThan(ctx, age)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.items, id)
	}
	return int64(len(ids)), nil
}

// GetStats implements queue.Repository.
func (r *QueueRepository) GetStats(_ context.Context) (*queue.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &queue.Stats{}
	for _, item := range r.items {
		switch {
		case item.Status == queue.StatusNew:
			stats.New++
		case item.Status == queue.StatusInProgress:
			stats.InProgress++
		case item.Status == queue.StatusPushed:
			stats.Pushed++
		case item.Status.Failed():
			stats.Failed++
		}
	}
	return stats, nil
}

// Get returns a copy of the stored item, or nil.
func (r *QueueRepository) Get(id string) *queue.Item {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return nil
	}
	copied := *item
	return &copied
}

// All returns copies of every stored item, ordered by creation time.
func (r *QueueRepository) All() []*queue.Item {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*queue.Item, 0, len(r.items))
	for _, item := range r.items {
		copied := *item
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return strings.Compare(out[i].ID, out[j].ID) < 0
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Backdate rewrites an item's creation time, for staleness tests.
func (r *QueueRepository) Backdate(id string, createdAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if item, ok := r.items[id]; ok {
		item.CreatedAt = createdAt
	}
}

// BackdateAttempt rewrites an item's last attempt time, for retention tests.
func (r *QueueRepository) BackdateAttempt(id string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if item, ok := r.items[id]; ok {
		item.LastAttemptAt = &at
	}
}
