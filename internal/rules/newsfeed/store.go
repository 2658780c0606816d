// Package newsfeed is the reference rule set shipped with the pipeline: a
// sequential partner feed with a photo cascade, and a mass weekly digest
// packed as a zip archive.
package newsfeed

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/feedops/courier/internal/domain"
)

// Workflow states of a story.
type WorkflowState int

const (
	StateOffline WorkflowState = 10
	StateOnline  WorkflowState = 20
	StateDeleted WorkflowState = 99
)

// Photo is one content illustration.
type Photo struct {
	ID      int64
	Title   string
	Credits string
	Caption string

	// OriginalFile is the stored file path, relative to the content root.
	OriginalFile string
}

func (p *Photo) EntityType() string { return "photo" }
func (p *Photo) EntityID() int64    { return p.ID }

// Story is one content object of a news site.
type Story struct {
	ID        int64
	Title     string
	State     WorkflowState
	Content   string
	Photo     *Photo
	UpdatedAt time.Time
}

func (s *Story) EntityType() string { return "story" }
func (s *Story) EntityID() int64    { return s.ID }

// Store is an in-memory content store backing the reference rules. It stands
// in for the application's real storage layer and satisfies domain.Resolver.
type Store struct {
	mu      sync.RWMutex
	stories map[int64]*Story
	photos  map[int64]*Photo
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		stories: make(map[int64]*Story),
		photos:  make(map[int64]*Photo),
	}
}

// PutStory upserts a story.
func (s *Store) PutStory(story *Story) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stories[story.ID] = story
}

// PutPhoto upserts a photo.
func (s *Store) PutPhoto(photo *Photo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos[photo.ID] = photo
}

// Resolve implements domain.Resolver.
func (s *Store) Resolve(_ context.Context, ref domain.ContentRef) (domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch ref.Type {
	case "story":
		if story, ok := s.stories[ref.ID]; ok {
			return story, nil
		}
	case "photo":
		if photo, ok := s.photos[ref.ID]; ok {
			return photo, nil
		}
	default:
		return nil, fmt.Errorf("unknown entity type %q", ref.Type)
	}
	return nil, fmt.Errorf("%s does not exist", ref)
}

// StoriesUpdatedSince returns stories updated after the cutoff, newest first.
func (s *Store) StoriesUpdatedSince(cutoff time.Time) []*Story {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Story
	for _, story := range s.stories {
		if story.UpdatedAt.After(cutoff) {
			out = append(out, story)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// LatestStories returns up to limit stories, newest first. Feeds the
// read-also block of the partner template.
func (s *Store) LatestStories(limit int) []*Story {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Story, 0, len(s.stories))
	for _, story := range s.stories {
		out = append(out, story)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
