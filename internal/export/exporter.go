package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/feedops/courier/internal/domain"
	"github.com/feedops/courier/internal/queue"
	"github.com/feedops/courier/internal/render"
)

// StageError classifies an item-level export failure by the queue status it
// maps to. Failures are terminal for the item but never for its siblings.
type StageError struct {
	Status queue.Status
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Status, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(status queue.Status, err error) *StageError {
	return &StageError{Status: status, Err: err}
}

// ClassifyStage extracts the queue status from an export error, defaulting
// to OUTPUT_GENERATION_ERROR for unclassified failures.
func ClassifyStage(err error) queue.Status {
	var stage *StageError
	if errors.As(err, &stage) {
		return stage.Status
	}
	return queue.StatusOutputGenerationError
}

// ExportItem stages every output of the entity, its linked binaries and its
// related items into the rule's tmp directory, and returns the staged file
// paths. Errors carry the queue status for the failed stage. On failure the
// files already staged for this entity are removed again, so a mass run's
// archive never carries a partial export.
func ExportItem(ctx context.Context, rule *Rule, entity domain.Entity) ([]string, error) {
	staged, err := exportEntity(ctx, rule, entity, rule.RelatedDepth)
	if err != nil {
		for _, f := range staged {
			if rmErr := os.Remove(f); rmErr != nil {
				slog.Warn("failed to remove partial output", "rule", rule.Name, "file", f, "error", rmErr)
			}
		}
		return nil, err
	}
	return staged, nil
}

func exportEntity(ctx context.Context, rule *Rule, entity domain.Entity, depth int) ([]string, error) {
	supervisor, err := rule.SupervisorFor(rule, entity)
	if err != nil {
		return nil, stageError(queue.StatusSupervisorError, err)
	}

	makers, err := supervisor.OutputMakers()
	if err != nil {
		return nil, stageError(queue.StatusOutputMakerError, err)
	}

	staged := make([]string, 0, len(makers))
	for _, maker := range makers {
		path, err := runMaker(ctx, rule, maker)
		if err != nil {
			return staged, err
		}
		staged = append(staged, path)
	}

	if rule.Linker != nil {
		binaries, err := stageBinaries(rule, entity)
		staged = append(staged, binaries...)
		if err != nil {
			return staged, err
		}
	}

	// The depth bound is what terminates the walk on cyclic relation
	// graphs; there is no cycle detection.
	if depth > 0 {
		for _, related := range supervisor.RelatedItems() {
			if related == nil {
				continue
			}
			nested, err := exportEntity(ctx, rule, related, depth-1)
			staged = append(staged, nested...)
			if err != nil {
				return staged, err
			}
		}
	}

	return staged, nil
}

// runMaker generates, validates and stages one output.
func runMaker(ctx context.Context, rule *Rule, maker OutputMaker) (string, error) {
	output, err := maker.Output(ctx)
	if err != nil {
		if errors.Is(err, render.ErrTemplateNotFound) {
			return "", stageError(queue.StatusTemplateNotFound, err)
		}
		return "", stageError(queue.StatusOutputGenerationError, err)
	}

	// Every validator runs even after one fails, so the queue message
	// carries the full diagnosis in one pass.
	var failures []string
	for _, validate := range append(maker.Validators(), rule.Validators...) {
		if err := validate(output); err != nil {
			failures = append(failures, fmt.Sprintf("%T: %v", err, err))
		}
	}
	if len(failures) > 0 {
		return "", stageError(queue.StatusValidationError, errors.New(strings.Join(failures, "\n")))
	}

	dir, err := maker.RelativeDir()
	if err != nil {
		return "", stageError(queue.StatusGetDirectoryError, err)
	}

	dest := filepath.Join(rule.TmpDir(), dir, maker.Filename())
	if err := writeFile(dest, output); err != nil {
		return "", stageError(queue.StatusOutputGenerationError, err)
	}

	slog.Debug("output staged", "rule", rule.Name, "file", dest)
	return dest, nil
}

// stageBinaries copies the entity's linked binaries into a per-entity
// subdirectory of the staging tree.
func stageBinaries(rule *Rule, entity domain.Entity) ([]string, error) {
	sources, err := rule.Linker.Binaries(entity)
	if err != nil {
		return nil, stageError(queue.StatusOutputGenerationError, err)
	}

	dir := fmt.Sprintf("%s_%d", entity.EntityType(), entity.EntityID())
	staged := make([]string, 0, len(sources))
	for _, src := range sources {
		dest := filepath.Join(rule.TmpDir(), dir, filepath.Base(src))
		if err := copyFile(src, dest); err != nil {
			return staged, stageError(queue.StatusOutputGenerationError, err)
		}
		staged = append(staged, dest)
	}
	return staged, nil
}

func writeFile(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("copy %s: %w", dest, err)
	}
	return nil
}
