package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/feedops/courier/internal/domain"
	"github.com/feedops/courier/internal/queue"
	"github.com/feedops/courier/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queueItemAgedBy(t *testing.T, repo *testutil.QueueRepository, age time.Duration) {
	t.Helper()

	item := &queue.Item{
		ID:         uuid.NewString(),
		RuleName:   "feed",
		Status:     queue.StatusNew,
		ContentRef: domain.ContentRef{Type: "story", ID: 1},
	}
	require.NoError(t, repo.Create(context.Background(), item))
	repo.Backdate(item.ID, time.Now().Add(-age))
}

func TestCheckHealth(t *testing.T) {
	thresholds := HealthThresholds{
		Warning:  10 * time.Minute,
		Critical: 30 * time.Minute,
	}

	tests := []struct {
		name string
		age  time.Duration
		code int
	}{
		{"empty queue is healthy", 0, HealthOK},
		{"fresh item is healthy", time.Minute, HealthOK},
		{"item just past warning", 10*time.Minute + time.Second, HealthWarning},
		{"item just past critical", 30*time.Minute + time.Second, HealthCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := testutil.NewQueueRepository()
			if tt.age > 0 {
				queueItemAgedBy(t, repo, tt.age)
			}

			code, summary, err := CheckHealth(context.Background(), repo, thresholds)
			require.NoError(t, err)
			assert.Equal(t, tt.code, code)
			assert.NotEmpty(t, summary)
		})
	}
}

func TestCheckHealth_CriticalWinsOverWarning(t *testing.T) {
	repo := testutil.NewQueueRepository()
	queueItemAgedBy(t, repo, 15*time.Minute)
	queueItemAgedBy(t, repo, time.Hour)

	code, summary, err := CheckHealth(context.Background(), repo, DefaultHealthThresholds())
	require.NoError(t, err)
	assert.Equal(t, HealthCritical, code)
	assert.Contains(t, summary, "CRITICAL")
}

func TestCheckHealth_DeliveredItemsDoNotCount(t *testing.T) {
	repo := testutil.NewQueueRepository()

	item := &queue.Item{
		ID:         uuid.NewString(),
		RuleName:   "feed",
		Status:     queue.StatusNew,
		ContentRef: domain.ContentRef{Type: "story", ID: 2},
	}
	require.NoError(t, repo.Create(context.Background(), item))
	repo.Backdate(item.ID, time.Now().Add(-time.Hour))

	_, err := repo.Claim(context.Background(), item.ID)
	require.NoError(t, err)
	require.NoError(t, repo.MarkPushed(context.Background(), item.ID, "done"))

	code, _, err := CheckHealth(context.Background(), repo, DefaultHealthThresholds())
	require.NoError(t, err)
	assert.Equal(t, HealthOK, code)
}

func TestCleanQueue(t *testing.T) {
	ctx := context.Background()
	repo := testutil.NewQueueRepository()

	old := &queue.Item{
		ID:         uuid.NewString(),
		RuleName:   "feed",
		Status:     queue.StatusNew,
		ContentRef: domain.ContentRef{Type: "story", ID: 3},
	}
	require.NoError(t, repo.Create(ctx, old))
	_, err := repo.Claim(ctx, old.ID)
	require.NoError(t, err)
	require.NoError(t, repo.MarkPushed(ctx, old.ID, "done"))
	repo.BackdateAttempt(old.ID, time.Now().Add(-48*time.Hour))

	failed := &queue.Item{
		ID:         uuid.NewString(),
		RuleName:   "feed",
		Status:     queue.StatusSendError,
		ContentRef: domain.ContentRef{Type: "story", ID: 4},
	}
	require.NoError(t, repo.Create(ctx, failed))
	repo.BackdateAttempt(failed.ID, time.Now().Add(-48*time.Hour))

	// Dry run reports without deleting.
	count, ids, err := CleanQueue(ctx, repo, 24*time.Hour, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, []string{old.ID}, ids)
	assert.NotNil(t, repo.Get(old.ID))

	// The real sweep removes only delivered items.
	count, _, err = CleanQueue(ctx, repo, 24*time.Hour, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Nil(t, repo.Get(old.ID))
	assert.NotNil(t, repo.Get(failed.ID), "failed items stay as the audit trail")
}
