package export

import (
	"context"
	"fmt"
	"os"

	"github.com/feedops/courier/internal/domain"
	"github.com/feedops/courier/internal/render"
)

// OutputMaker produces the bytes and relative destination path for one
// deliverable unit of one entity.
type OutputMaker interface {
	// Output generates the deliverable bytes.
	Output(ctx context.Context) ([]byte, error)

	// Filename is the destination file name.
	Filename() string

	// RelativeDir is the destination subpath relative to the rule root,
	// remote and local alike. Empty means the root. May fail when the
	// directory depends on entity state.
	RelativeDir() (string, error)

	// Validators returns maker-specific checks, run before the rule's own.
	Validators() []Validator
}

// TemplateOutputMaker renders an entity through the templating collaborator.
// The template is addressed by rule name and entity type:
// "{rule}/{entityType}.xml".
type TemplateOutputMaker struct {
	Renderer render.Renderer
	RuleName string
	Entity   domain.Entity

	// Dir is the destination subpath. DirFunc takes precedence when set.
	Dir     string
	DirFunc func(e domain.Entity) (string, error)

	// Name overrides the default "{entityType}_{id}.xml" file name.
	Name string

	// ExtraContext adds template variables beyond "object".
	ExtraContext map[string]any

	// Checks are maker-specific validators.
	Checks []Validator
}

// TemplatePath returns the renderer key for this maker.
func (m *TemplateOutputMaker) TemplatePath() string {
	return fmt.Sprintf("%s/%s.xml", m.RuleName, m.Entity.EntityType())
}

// Output renders the entity into UTF-8 bytes. A missing template surfaces as
// render.ErrTemplateNotFound, which the export engine classifies separately.
func (m *TemplateOutputMaker) Output(_ context.Context) ([]byte, error) {
	context := map[string]any{"object": m.Entity}
	for k, v := range m.ExtraContext {
		context[k] = v
	}
	return m.Renderer.Render(m.TemplatePath(), context)
}

// Filename returns the destination file name.
func (m *TemplateOutputMaker) Filename() string {
	if m.Name != "" {
		return m.Name
	}
	return fmt.Sprintf("%s_%d.xml", m.Entity.EntityType(), m.Entity.EntityID())
}

// RelativeDir returns the destination subpath.
func (m *TemplateOutputMaker) RelativeDir() (string, error) {
	if m.DirFunc != nil {
		return m.DirFunc(m.Entity)
	}
	return m.Dir, nil
}

// Validators returns maker-specific checks.
func (m *TemplateOutputMaker) Validators() []Validator {
	return m.Checks
}

// BinaryOutputMaker copies a stored file attached to an entity verbatim.
type BinaryOutputMaker struct {
	Entity domain.Entity

	// Source resolves the local path of the attached file.
	Source FileAccessor

	// Dir is the destination subpath.
	Dir string

	// Name overrides the default "{entityType}_{id}" file name.
	Name string
}

// Output reads the attached file.
func (m *BinaryOutputMaker) Output(_ context.Context) ([]byte, error) {
	path, err := m.Source(m.Entity)
	if err != nil {
		return nil, fmt.Errorf("resolve binary source: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read binary %s: %w", path, err)
	}
	return data, nil
}

// Filename returns the destination file name.
func (m *BinaryOutputMaker) Filename() string {
	if m.Name != "" {
		return m.Name
	}
	return fmt.Sprintf("%s_%d", m.Entity.EntityType(), m.Entity.EntityID())
}

// RelativeDir returns the destination subpath.
func (m *BinaryOutputMaker) RelativeDir() (string, error) {
	return m.Dir, nil
}

// Validators returns nil: binary payloads are copied as-is.
func (m *BinaryOutputMaker) Validators() []Validator {
	return nil
}
