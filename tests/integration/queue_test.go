//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/feedops/courier/internal/domain"
	"github.com/feedops/courier/internal/queue"
	queuepostgres "github.com/feedops/courier/internal/queue/postgres"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newItem(rule string, ref domain.ContentRef) *queue.Item {
	return &queue.Item{
		ID:         uuid.NewString(),
		RuleName:   rule,
		PushURL:    "ftp://partner.example.com/incoming",
		Status:     queue.StatusNew,
		ContentRef: ref,
	}
}

func TestQueueRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := queuepostgres.NewRepository(testDB)

	ref := domain.ContentRef{Type: "story", ID: 101}
	item := newItem("lifecycle-feed", ref)

	require.NoError(t, repo.Create(ctx, item))
	assert.False(t, item.CreatedAt.IsZero(), "create should backfill timestamps")

	exists, err := repo.HasNew(ctx, "lifecycle-feed", ref)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.HasNew(ctx, "another-feed", ref)
	require.NoError(t, err)
	assert.False(t, exists, "duplicate check is scoped per rule")

	items, err := repo.FetchNew(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, items)

	claimed, err := repo.Claim(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.Claim(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, claimed, "second claim must lose")

	require.NoError(t, repo.RecordAttempt(ctx, item.ID))
	require.NoError(t, repo.RecordAttempt(ctx, item.ID))
	require.NoError(t, repo.MarkPushed(ctx, item.ID, "delivered"))

	got, err := repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPushed, got.Status)
	assert.Equal(t, 2, got.AttemptCount)
	require.NotNil(t, got.LastAttemptAt)
	assert.Equal(t, "delivered", got.Message)
}

func TestQueueRepository_MarkFailedAccumulatesMessages(t *testing.T) {
	ctx := context.Background()
	repo := queuepostgres.NewRepository(testDB)

	item := newItem("failure-feed", domain.ContentRef{Type: "story", ID: 102})
	require.NoError(t, repo.Create(ctx, item))

	require.NoError(t, repo.MarkFailed(ctx, item.ID, queue.StatusSendError, "first attempt failed"))
	require.NoError(t, repo.MarkFailed(ctx, item.ID, queue.StatusSendError, "second attempt failed"))

	got, err := repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusSendError, got.Status)
	assert.True(t, got.Status.Failed())
	assert.Equal(t, "first attempt failed\nsecond attempt failed", got.Message)
}

func TestQueueRepository_DuplicateSuppression(t *testing.T) {
	ctx := context.Background()
	repo := queuepostgres.NewRepository(testDB)

	ref := domain.ContentRef{Type: "story", ID: 103}
	first := newItem("dup-feed", ref)
	require.NoError(t, repo.Create(ctx, first))

	exists, err := repo.HasNew(ctx, "dup-feed", ref)
	require.NoError(t, err)
	assert.True(t, exists, "the pending pair must suppress re-enqueueing")

	// Once the item leaves NEW the pair is eligible again.
	claimed, err := repo.Claim(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	exists, err = repo.HasNew(ctx, "dup-feed", ref)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestQueueRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := queuepostgres.NewRepository(testDB)

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, queue.ErrItemNotFound)

	err = repo.RecordAttempt(ctx, uuid.NewString())
	assert.ErrorIs(t, err, queue.ErrItemNotFound)

	err = repo.MarkPushed(ctx, uuid.NewString(), "nope")
	assert.ErrorIs(t, err, queue.ErrItemNotFound)
}

func TestQueueRepository_StatsAndRetention(t *testing.T) {
	ctx := context.Background()
	repo := queuepostgres.NewRepository(testDB)

	pushed := newItem("retention-feed", domain.ContentRef{Type: "story", ID: 104})
	require.NoError(t, repo.Create(ctx, pushed))
	_, err := repo.Claim(ctx, pushed.ID)
	require.NoError(t, err)
	require.NoError(t, repo.RecordAttempt(ctx, pushed.ID))
	require.NoError(t, repo.MarkPushed(ctx, pushed.ID, "delivered"))

	stats, err := repo.GetStats(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.Pushed, int64(1))

	// Fresh items are not eligible yet.
	ids, err := repo.ListPushedOlderThan(ctx, time.Hour)
	require.NoError(t, err)
	assert.NotContains(t, ids, pushed.ID)

	// With a zero age every pushed item is eligible.
	ids, err = repo.ListPushedOlderThan(ctx, 0)
	require.NoError(t, err)
	assert.Contains(t, ids, pushed.ID)

	deleted, err := repo.DeletePushedOlderThan(ctx, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deleted, int64(1))

	_, err = repo.GetByID(ctx, pushed.ID)
	assert.ErrorIs(t, err, queue.ErrItemNotFound)
}

func TestQueueRepository_CountNewOlderThan(t *testing.T) {
	ctx := context.Background()
	repo := queuepostgres.NewRepository(testDB)

	item := newItem("staleness-feed", domain.ContentRef{Type: "story", ID: 105})
	require.NoError(t, repo.Create(ctx, item))

	count, err := repo.CountNewOlderThan(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, count, "a fresh item is not stale")

	// Backdate the row to simulate a stuck queue.
	_, err = testDB.Exec(ctx,
		`UPDATE push_queue SET created_at = NOW() - INTERVAL '2 hours' WHERE id = $1`, item.ID)
	require.NoError(t, err)

	count, err = repo.CountNewOlderThan(ctx, time.Hour)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, int64(1))
}
