package newsfeed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/feedops/courier/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Resolve(t *testing.T) {
	store := NewStore()
	story := &Story{ID: 1, Title: "one"}
	photo := &Photo{ID: 2, Title: "two"}
	store.PutStory(story)
	store.PutPhoto(photo)

	got, err := store.Resolve(context.Background(), domain.ContentRef{Type: "story", ID: 1})
	require.NoError(t, err)
	assert.Same(t, story, got)

	got, err = store.Resolve(context.Background(), domain.ContentRef{Type: "photo", ID: 2})
	require.NoError(t, err)
	assert.Same(t, photo, got)

	_, err = store.Resolve(context.Background(), domain.ContentRef{Type: "story", ID: 99})
	assert.Error(t, err)

	_, err = store.Resolve(context.Background(), domain.ContentRef{Type: "widget", ID: 1})
	assert.Error(t, err)
}

func TestStore_StoriesUpdatedSince(t *testing.T) {
	store := NewStore()
	now := time.Now()
	store.PutStory(&Story{ID: 1, UpdatedAt: now.Add(-time.Hour)})
	store.PutStory(&Story{ID: 2, UpdatedAt: now.Add(-48 * time.Hour)})
	store.PutStory(&Story{ID: 3, UpdatedAt: now.Add(-10 * time.Minute)})

	got := store.StoriesUpdatedSince(now.Add(-24 * time.Hour))
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].ID, "newest first")
	assert.Equal(t, int64(1), got[1].ID)

	assert.Empty(t, store.StoriesUpdatedSince(now))
}

func TestStore_LatestStories(t *testing.T) {
	store := NewStore()
	now := time.Now()
	for i := int64(1); i <= 5; i++ {
		store.PutStory(&Story{ID: i, UpdatedAt: now.Add(-time.Duration(i) * time.Hour)})
	}

	got := store.LatestStories(3)
	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(2), got[1].ID)
	assert.Equal(t, int64(3), got[2].ID)

	assert.Len(t, store.LatestStories(10), 5)
}

func TestLoadFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
photos:
  - id: 5
    title: harbor
    credits: jane
    caption: the harbor at dawn
    original_file: "5/original.jpg"

stories:
  - id: 7
    title: Harbor reopens
    state: 20
    content: After two years of works.
    photo_id: 5
    updated_at: "2026-08-20T09:30:00Z"
  - id: 8
    title: Ferry schedule
    state: 10
    content: Departures every hour.
    updated_at: "2026-08-21T12:00:00Z"
`), 0o644))

	store := NewStore()
	require.NoError(t, LoadFixtures(store, path))

	entity, err := store.Resolve(context.Background(), domain.ContentRef{Type: "story", ID: 7})
	require.NoError(t, err)
	story := entity.(*Story)
	assert.Equal(t, "Harbor reopens", story.Title)
	assert.Equal(t, StateOnline, story.State)
	require.NotNil(t, story.Photo)
	assert.Equal(t, int64(5), story.Photo.ID)
	assert.Equal(t, "5/original.jpg", story.Photo.OriginalFile)
	assert.Equal(t, time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC), story.UpdatedAt.UTC())

	entity, err = store.Resolve(context.Background(), domain.ContentRef{Type: "story", ID: 8})
	require.NoError(t, err)
	assert.Nil(t, entity.(*Story).Photo)
}

func TestLoadFixtures_UnknownPhotoReference(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
stories:
  - id: 1
    title: orphan
    photo_id: 42
`), 0o644))

	err := LoadFixtures(NewStore(), path)
	assert.ErrorContains(t, err, "unknown photo 42")
}

func TestLoadFixtures_MissingFile(t *testing.T) {
	err := LoadFixtures(NewStore(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
