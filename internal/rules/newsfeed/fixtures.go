package newsfeed

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type photoFixture struct {
	ID           int64  `koanf:"id"`
	Title        string `koanf:"title"`
	Credits      string `koanf:"credits"`
	Caption      string `koanf:"caption"`
	OriginalFile string `koanf:"original_file"`
}

type storyFixture struct {
	ID        int64     `koanf:"id"`
	Title     string    `koanf:"title"`
	State     int       `koanf:"state"`
	Content   string    `koanf:"content"`
	PhotoID   int64     `koanf:"photo_id"`
	UpdatedAt time.Time `koanf:"updated_at"`
}

type fixtureFile struct {
	Photos  []photoFixture `koanf:"photos"`
	Stories []storyFixture `koanf:"stories"`
}

// LoadFixtures populates the store from a YAML fixture file. Stories may
// reference photos by id; the photo must appear in the same file.
func LoadFixtures(store *Store, path string) error {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load fixtures %s: %w", path, err)
	}

	var f fixtureFile
	if err := k.Unmarshal("", &f); err != nil {
		return fmt.Errorf("unmarshal fixtures %s: %w", path, err)
	}

	photos := make(map[int64]*Photo, len(f.Photos))
	for _, p := range f.Photos {
		photo := &Photo{
			ID:           p.ID,
			Title:        p.Title,
			Credits:      p.Credits,
			Caption:      p.Caption,
			OriginalFile: p.OriginalFile,
		}
		photos[photo.ID] = photo
		store.PutPhoto(photo)
	}

	for _, s := range f.Stories {
		story := &Story{
			ID:        s.ID,
			Title:     s.Title,
			State:     WorkflowState(s.State),
			Content:   s.Content,
			UpdatedAt: s.UpdatedAt,
		}
		if s.PhotoID != 0 {
			photo, ok := photos[s.PhotoID]
			if !ok {
				return fmt.Errorf("story %d references unknown photo %d", s.ID, s.PhotoID)
			}
			story.Photo = photo
		}
		store.PutStory(story)
	}

	return nil
}
