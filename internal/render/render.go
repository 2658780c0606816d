// Package render provides the templating collaborator used by template
// output makers. Templates are loaded once at startup and addressed by their
// path relative to the template root, e.g. "weekly-digest/story.xml.tmpl".
package render

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrTemplateNotFound is returned when no template is registered under the
// requested path. Callers treat it as a distinct, non-retryable condition.
var ErrTemplateNotFound = errors.New("template not found")

// Renderer renders a named template with a context map.
type Renderer interface {
	Render(templatePath string, context map[string]any) ([]byte, error)
}

// TemplateRenderer is a Renderer backed by text/template.
type TemplateRenderer struct {
	templates map[string]*template.Template
}

var titleCaser = cases.Title(language.English)

func funcMap() template.FuncMap {
	return template.FuncMap{
		"title": titleCaser.String,
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"trim":  strings.TrimSpace,
	}
}

// NewRenderer loads every *.tmpl file under fsys. The template name is the
// file path with the .tmpl suffix stripped.
func NewRenderer(fsys fs.FS) (*TemplateRenderer, error) {
	r := &TemplateRenderer{templates: make(map[string]*template.Template)}

	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".tmpl") {
			return nil
		}

		content, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("read template %s: %w", path, err)
		}

		name := strings.TrimSuffix(path, ".tmpl")
		tmpl, err := template.New(name).Funcs(funcMap()).Parse(string(content))
		if err != nil {
			return fmt.Errorf("parse template %s: %w", path, err)
		}

		r.templates[name] = tmpl
		return nil
	})
	if err != nil {
		return nil, err
	}

	return r, nil
}

// Render executes the template registered under templatePath and returns the
// UTF-8 output bytes.
func (r *TemplateRenderer) Render(templatePath string, context map[string]any) ([]byte, error) {
	tmpl, ok := r.templates[templatePath]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, templatePath)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, context); err != nil {
		return nil, fmt.Errorf("execute template %s: %w", templatePath, err)
	}
	return buf.Bytes(), nil
}
