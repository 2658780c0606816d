package newsfeed

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/feedops/courier/internal/export"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(t *testing.T) Options {
	t.Helper()

	renderer, err := NewRenderer()
	require.NoError(t, err)

	return Options{
		Store:       NewStore(),
		Renderer:    renderer,
		WorkRoot:    t.TempDir(),
		ContentRoot: t.TempDir(),
	}
}

func TestRules_BuildsOnlyConfiguredRules(t *testing.T) {
	opts := testOptions(t)
	opts.PartnerURLs = []string{"ftp://h/incoming"}
	opts.DigestURLs = []string{"sftp://h/drop"}

	rules, err := Rules(opts)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	names := []string{rules[0].Name, rules[1].Name}
	assert.Contains(t, names, PartnerFeedRule)
	assert.Contains(t, names, WeeklyDigestRule)
	assert.NotContains(t, names, PartnerFeedPhotoRule)
}

func TestRules_ValidateAgainstTheRegistry(t *testing.T) {
	opts := testOptions(t)
	opts.PartnerURLs = []string{"ftp://h/incoming"}
	opts.PhotoURLs = []string{"ftp://h/incoming"}
	opts.DigestURLs = []string{"ftp://h/incoming"}

	rules, err := Rules(opts)
	require.NoError(t, err)

	_, err = export.NewRegistry(rules...)
	assert.NoError(t, err)
}

func TestRules_RequireStoreAndRenderer(t *testing.T) {
	opts := testOptions(t)
	opts.Store = nil
	_, err := Rules(opts)
	assert.Error(t, err)

	opts = testOptions(t)
	opts.Renderer = nil
	_, err = Rules(opts)
	assert.Error(t, err)
}

func TestStoryFilter(t *testing.T) {
	longBody := strings.Repeat("x", 500)
	filter := &storyFilter{}

	t.Run("instance type", func(t *testing.T) {
		ok, err := filter.FilterByInstanceType(&Story{ID: 1})
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = filter.FilterByInstanceType(&Photo{ID: 1})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("updates", func(t *testing.T) {
		tests := []struct {
			name    string
			changed []string
			want    bool
		}{
			{"state changed", []string{"state"}, true},
			{"timestamp changed", []string{"updated_at"}, true},
			{"both changed", []string{"title", "state", "updated_at"}, true},
			{"irrelevant change", []string{"title"}, false},
			{"nothing changed", nil, false},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ok, err := filter.FilterByUpdates(&Story{ID: 1}, tt.changed)
				require.NoError(t, err)
				assert.Equal(t, tt.want, ok)
			})
		}
	})

	t.Run("state", func(t *testing.T) {
		tests := []struct {
			name  string
			story *Story
			want  bool
		}{
			{"online with enough body", &Story{State: StateOnline, Content: longBody}, true},
			{"online but too short", &Story{State: StateOnline, Content: "brief"}, false},
			{"offline", &Story{State: StateOffline, Content: longBody}, false},
			{"deleted", &Story{State: StateDeleted, Content: longBody}, false},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ok, err := filter.FilterByState(tt.story)
				require.NoError(t, err)
				assert.Equal(t, tt.want, ok)
			})
		}
	})

	t.Run("state rejects non-stories", func(t *testing.T) {
		_, err := filter.FilterByState(&Photo{ID: 1})
		assert.Error(t, err)
	})
}

func TestPhotoFilter_AcceptsEveryPhoto(t *testing.T) {
	filter := &photoFilter{}

	ok, err := filter.FilterByInstanceType(&Photo{ID: 1})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = filter.FilterByInstanceType(&Story{ID: 1})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = filter.FilterByUpdates(&Photo{ID: 1}, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = filter.FilterByState(&Photo{ID: 1})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWeeklyDigest_ItemsToPushSelectsOnlineAndRecent(t *testing.T) {
	opts := testOptions(t)
	opts.DigestURLs = []string{"ftp://h/incoming"}

	now := time.Now()
	opts.Store.PutStory(&Story{ID: 1, State: StateOnline, UpdatedAt: now.Add(-time.Hour)})
	opts.Store.PutStory(&Story{ID: 2, State: StateOffline, UpdatedAt: now.Add(-time.Hour)})
	opts.Store.PutStory(&Story{ID: 3, State: StateDeleted, UpdatedAt: now.Add(-time.Hour)})
	opts.Store.PutStory(&Story{ID: 4, State: StateOnline, UpdatedAt: now.Add(-8 * 24 * time.Hour)})

	rules, err := Rules(opts)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	require.Equal(t, WeeklyDigestRule, rules[0].Name)

	entities, err := rules[0].ItemsToPush(context.Background())
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, int64(1), entities[0].EntityID())
}

func TestPartnerTemplate_RendersStoryWithReadAlso(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)

	story := &Story{
		ID:        7,
		Title:     "Harbor reopens",
		Content:   "After two years of works.",
		UpdatedAt: time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC),
	}
	readAlso := []*Story{{ID: 8, Title: "Ferry schedule"}}

	out, err := renderer.Render("partner-feed/story.xml", map[string]any{
		"object":    story,
		"read_also": readAlso,
	})
	require.NoError(t, err)

	rendered := string(out)
	assert.Contains(t, rendered, `<story id="7">`)
	assert.Contains(t, rendered, "<title>Harbor reopens</title>")
	assert.Contains(t, rendered, "<updated>2026-08-20T09:30:00Z</updated>")
	assert.Contains(t, rendered, `<story id="8">Ferry schedule</story>`)
	assert.NoError(t, export.WellFormedXML(out))
}

func TestDigestTemplate_PhotoBlockIsOptional(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)

	bare := &Story{ID: 1, Title: "plain", UpdatedAt: time.Now()}
	out, err := renderer.Render("weekly-digest/story.xml", map[string]any{"object": bare})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<photo")

	illustrated := &Story{
		ID:        2,
		Title:     "with art",
		Photo:     &Photo{ID: 31, Caption: "skyline", Credits: "jane"},
		UpdatedAt: time.Now(),
	}
	out, err = renderer.Render("weekly-digest/story.xml", map[string]any{"object": illustrated})
	require.NoError(t, err)
	assert.Contains(t, string(out), `<photo href="photos/31.jpg">`)
	assert.Contains(t, string(out), "<credits>jane</credits>")
	assert.NoError(t, export.WellFormedXML(out))
}
