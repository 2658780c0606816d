package newsfeed

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/feedops/courier/internal/domain"
	"github.com/feedops/courier/internal/export"
	"github.com/feedops/courier/internal/pack"
	"github.com/feedops/courier/internal/render"
)

// Rule names.
const (
	PartnerFeedRule      = "partner-feed"
	PartnerFeedPhotoRule = "partner-feed-photo"
	WeeklyDigestRule     = "weekly-digest"
)

//go:embed templates
var templateFS embed.FS

// NewRenderer loads the embedded newsfeed templates.
func NewRenderer() (render.Renderer, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("embedded templates: %w", err)
	}
	return render.NewRenderer(sub)
}

// Options wires the rule set into a deployment.
type Options struct {
	Store    *Store
	Renderer render.Renderer

	// WorkRoot is the base directory for per-rule working trees.
	WorkRoot string

	// ContentRoot is where photo file paths resolve from.
	ContentRoot string

	// Destination urls per rule. A rule with no urls is omitted.
	PartnerURLs []string
	PhotoURLs   []string
	DigestURLs  []string
}

// Rules builds the newsfeed rule set.
func Rules(opts Options) ([]*export.Rule, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("newsfeed rules need a store")
	}
	if opts.Renderer == nil {
		return nil, fmt.Errorf("newsfeed rules need a renderer")
	}

	var rules []*export.Rule
	if len(opts.PartnerURLs) > 0 {
		rules = append(rules, partnerFeedRule(opts))
	}
	if len(opts.PhotoURLs) > 0 {
		rules = append(rules, partnerFeedPhotoRule(opts))
	}
	if len(opts.DigestURLs) > 0 {
		rules = append(rules, weeklyDigestRule(opts))
	}
	return rules, nil
}

// partnerFeedRule pushes online stories with enough body text, one file per
// save, and cascades the story's photo into the photo rule.
func partnerFeedRule(opts Options) *export.Rule {
	return &export.Rule{
		Name:       PartnerFeedRule,
		Mode:       export.ModeSequential,
		PushURLs:   opts.PartnerURLs,
		WorkRoot:   opts.WorkRoot,
		Filter:     &storyFilter{},
		Validators: []export.Validator{export.WellFormedXML},
		SupervisorFor: func(rule *export.Rule, e domain.Entity) (export.Supervisor, error) {
			story, ok := e.(*Story)
			if !ok {
				return nil, fmt.Errorf("no supervisor for %s", domain.Ref(e))
			}
			return &storySupervisor{rule: rule, story: story, store: opts.Store, renderer: opts.Renderer}, nil
		},
		PostSelect: func(ctx context.Context, e domain.Entity, enq export.Enqueuer) error {
			story, ok := e.(*Story)
			if !ok || story.Photo == nil {
				return nil
			}
			return enq.AddItemToPush(ctx, story.Photo, PartnerFeedPhotoRule)
		},
	}
}

// partnerFeedPhotoRule mirrors every queued photo verbatim into the partner's
// medias directory. It has no filter of its own: photos only arrive through
// the partner-feed cascade.
func partnerFeedPhotoRule(opts Options) *export.Rule {
	return &export.Rule{
		Name:     PartnerFeedPhotoRule,
		Mode:     export.ModeSequential,
		PushURLs: opts.PhotoURLs,
		WorkRoot: opts.WorkRoot,
		Filter:   &photoFilter{},
		SupervisorFor: func(rule *export.Rule, e domain.Entity) (export.Supervisor, error) {
			photo, ok := e.(*Photo)
			if !ok {
				return nil, fmt.Errorf("no supervisor for %s", domain.Ref(e))
			}
			return &photoSupervisor{photo: photo, contentRoot: opts.ContentRoot}, nil
		},
	}
}

// weeklyDigestRule archives the last week of online stories, with their
// photos, into one zip per run.
func weeklyDigestRule(opts Options) *export.Rule {
	return &export.Rule{
		Name:         WeeklyDigestRule,
		Mode:         export.ModeMass,
		PushURLs:     opts.DigestURLs,
		WorkRoot:     opts.WorkRoot,
		Packer:       pack.KindArchive,
		ArchiveName:  "weekly-digest.zip",
		RelatedDepth: 1,
		SupervisorFor: func(rule *export.Rule, e domain.Entity) (export.Supervisor, error) {
			switch entity := e.(type) {
			case *Story:
				return &digestStorySupervisor{rule: rule, story: entity, renderer: opts.Renderer}, nil
			case *Photo:
				return &photoSupervisor{photo: entity, contentRoot: opts.ContentRoot, dir: "photos"}, nil
			default:
				return nil, fmt.Errorf("no supervisor for %s", domain.Ref(e))
			}
		},
		ItemsToPush: func(_ context.Context) ([]domain.Entity, error) {
			stories := opts.Store.StoriesUpdatedSince(time.Now().AddDate(0, 0, -7))
			entities := make([]domain.Entity, 0, len(stories))
			for _, story := range stories {
				if story.State != StateOnline {
					continue
				}
				entities = append(entities, story)
			}
			return entities, nil
		},
	}
}

// storyFilter selects online stories whose state or timestamp changed and
// whose body is long enough to be worth a partner's bandwidth.
type storyFilter struct{}

func (storyFilter) FilterByInstanceType(e domain.Entity) (bool, error) {
	return e.EntityType() == "story", nil
}

func (storyFilter) FilterByUpdates(_ domain.Entity, changedFields []string) (bool, error) {
	return domain.Change{ChangedFields: changedFields}.Changed("state", "updated_at"), nil
}

func (storyFilter) FilterByState(e domain.Entity) (bool, error) {
	story, ok := e.(*Story)
	if !ok {
		return false, fmt.Errorf("expected a story, got %s", domain.Ref(e))
	}
	if story.State != StateOnline {
		return false, nil
	}
	return len(story.Content) >= 500, nil
}

// photoFilter accepts every photo.
type photoFilter struct{}

func (photoFilter) FilterByInstanceType(e domain.Entity) (bool, error) {
	return e.EntityType() == "photo", nil
}

func (photoFilter) FilterByUpdates(domain.Entity, []string) (bool, error) { return true, nil }
func (photoFilter) FilterByState(domain.Entity) (bool, error)            { return true, nil }

// storySupervisor renders one story into the partner's NEWS xml file.
type storySupervisor struct {
	rule     *export.Rule
	story    *Story
	store    *Store
	renderer render.Renderer
}

func (s *storySupervisor) OutputMakers() ([]export.OutputMaker, error) {
	return []export.OutputMaker{
		&export.TemplateOutputMaker{
			Renderer:     s.renderer,
			RuleName:     s.rule.Name,
			Entity:       s.story,
			Name:         fmt.Sprintf("NEWS_newsfeed_%d.xml", s.story.ID),
			ExtraContext: map[string]any{"read_also": s.store.LatestStories(3)},
			Checks:       []export.Validator{export.NotEmpty},
		},
	}, nil
}

func (s *storySupervisor) RelatedItems() []domain.Entity { return nil }

// digestStorySupervisor renders the digest variant of a story and pulls its
// photo in as a related item.
type digestStorySupervisor struct {
	rule     *export.Rule
	story    *Story
	renderer render.Renderer
}

func (s *digestStorySupervisor) OutputMakers() ([]export.OutputMaker, error) {
	return []export.OutputMaker{
		&export.TemplateOutputMaker{
			Renderer: s.renderer,
			RuleName: s.rule.Name,
			Entity:   s.story,
		},
	}, nil
}

func (s *digestStorySupervisor) RelatedItems() []domain.Entity {
	if s.story.Photo == nil {
		return nil
	}
	return []domain.Entity{s.story.Photo}
}

// photoSupervisor copies the photo's stored file verbatim.
type photoSupervisor struct {
	photo       *Photo
	contentRoot string
	dir         string
}

func (s *photoSupervisor) OutputMakers() ([]export.OutputMaker, error) {
	dir := s.dir
	if dir == "" {
		dir = "medias"
	}
	return []export.OutputMaker{
		&export.BinaryOutputMaker{
			Entity: s.photo,
			Source: photoFile(s.contentRoot),
			Dir:    dir,
			Name:   fmt.Sprintf("%d.jpg", s.photo.ID),
		},
	}, nil
}

func (s *photoSupervisor) RelatedItems() []domain.Entity { return nil }

// photoFile resolves a photo's stored file against the content root.
func photoFile(contentRoot string) export.FileAccessor {
	return func(e domain.Entity) (string, error) {
		photo, ok := e.(*Photo)
		if !ok {
			return "", fmt.Errorf("expected a photo, got %s", domain.Ref(e))
		}
		if photo.OriginalFile == "" {
			return "", fmt.Errorf("photo %d has no stored file", photo.ID)
		}
		return filepath.Join(contentRoot, photo.OriginalFile), nil
	}
}
