package render

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_Render(t *testing.T) {
	fsys := fstest.MapFS{
		"feed/story.xml.tmpl": &fstest.MapFile{
			Data: []byte(`<story><title>{{ title .object }}</title></story>`),
		},
		"feed/photo.xml.tmpl": &fstest.MapFile{
			Data: []byte(`<photo>{{ upper .name }}</photo>`),
		},
		"feed/notes.txt": &fstest.MapFile{
			Data: []byte(`not a template`),
		},
	}

	r, err := NewRenderer(fsys)
	require.NoError(t, err)

	out, err := r.Render("feed/story.xml", map[string]any{"object": "breaking news"})
	require.NoError(t, err)
	assert.Equal(t, `<story><title>Breaking News</title></story>`, string(out))

	out, err = r.Render("feed/photo.xml", map[string]any{"name": "sunset"})
	require.NoError(t, err)
	assert.Equal(t, `<photo>SUNSET</photo>`, string(out))
}

func TestRenderer_TemplateNotFound(t *testing.T) {
	r, err := NewRenderer(fstest.MapFS{})
	require.NoError(t, err)

	_, err = r.Render("feed/story.xml", nil)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestRenderer_NonTemplateFilesIgnored(t *testing.T) {
	fsys := fstest.MapFS{
		"feed/readme.md": &fstest.MapFile{Data: []byte("docs")},
	}

	r, err := NewRenderer(fsys)
	require.NoError(t, err)

	_, err = r.Render("feed/readme.md", nil)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestRenderer_ParseErrorSurfaces(t *testing.T) {
	fsys := fstest.MapFS{
		"broken.tmpl": &fstest.MapFile{Data: []byte(`{{ .unclosed `)},
	}

	_, err := NewRenderer(fsys)
	assert.Error(t, err)
}
