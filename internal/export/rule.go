// Package export implements the selection and export engine: rules,
// the registry, the selector filter chain, idempotent enqueueing, output
// generation and binary linking.
package export

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/feedops/courier/internal/domain"
	"github.com/feedops/courier/internal/pack"
)

// Mode distinguishes the two rule variants.
type Mode string

// Rule modes.
const (
	// ModeSequential rules push one queue item at a time, each to the
	// specific destination recorded on the item.
	ModeSequential Mode = "sequential"

	// ModeMass rules collect their whole candidate set at run time, pack
	// once and deliver once per configured destination.
	ModeMass Mode = "mass"
)

// Filter is the three-step selection gate run by the Selector, in fixed
// order. Each step may fail independently; failures are recorded on the
// queue with a stage-specific status.
type Filter interface {
	// FilterByInstanceType is a cheap type/shape check, run unconditionally.
	FilterByInstanceType(e domain.Entity) (bool, error)

	// FilterByUpdates decides relevance from the set of changed field
	// names. Only called for existing entities; new entities bypass it.
	FilterByUpdates(e domain.Entity, changedFields []string) (bool, error)

	// FilterByState is the final state-based gate.
	FilterByState(e domain.Entity) (bool, error)
}

// Supervisor resolves what one entity contributes to an export: its output
// makers and the related entities to walk.
type Supervisor interface {
	OutputMakers() ([]OutputMaker, error)
	RelatedItems() []domain.Entity
}

// Enqueuer adds entities to the push queue. Implemented by the Facility;
// passed to PostSelect hooks so a rule can cascade related entities without
// depending on the facility type.
type Enqueuer interface {
	AddItemToPush(ctx context.Context, e domain.Entity, ruleName string) error
}

// Rule is one named export policy. Rules are built once at startup from
// configuration and are read-only during pipeline execution, except for the
// verification scratch field.
type Rule struct {
	// Name identifies the rule; unique within the registry.
	Name string

	// Mode selects the pipeline variant.
	Mode Mode

	// PushURLs are the configured destinations.
	PushURLs []string

	// WorkRoot is the base directory for the per-rule working tree:
	// {WorkRoot}/{Name}/tmp for staging, {WorkRoot}/{Name}/outbox for
	// packed deliverables.
	WorkRoot string

	// Filter gates selection. Nil means the rule never matches on save and
	// is only driven by mass runs or PostSelect cascades.
	Filter Filter

	// SupervisorFor resolves the per-entity-type export strategy.
	SupervisorFor func(rule *Rule, e domain.Entity) (Supervisor, error)

	// Validators run against every generated output, after any maker
	// specific validators.
	Validators []Validator

	// Linker resolves binary files attached to entities, across explicitly
	// declared relations. Nil disables binary export.
	Linker *Linker

	// RelatedDepth is how many supervisor relation levels the export engine
	// walks. Zero exports only the entity itself.
	RelatedDepth int

	// Packer selects the packing strategy.
	Packer pack.Kind

	// ArchiveName names the archive produced by the archive packer.
	// Defaults to "{Name}.zip".
	ArchiveName string

	// PostSelect runs after an entity is enqueued under this rule, to
	// cascade related entities. Errors are logged, never fatal.
	PostSelect func(ctx context.Context, e domain.Entity, enq Enqueuer) error

	// Initialize runs once at the start of a mass run, before the candidate
	// query. Nil means no setup. A failure aborts the run.
	Initialize func(ctx context.Context) error

	// ItemsToPush returns the candidate set for a mass run.
	ItemsToPush func(ctx context.Context) ([]domain.Entity, error)

	// LastLocalDigest holds the tree digest computed during the last pack,
	// kept for local/remote integrity comparison in tests and checks.
	LastLocalDigest string
}

// TmpDir is the rule's staging directory.
func (r *Rule) TmpDir() string {
	return filepath.Join(r.WorkRoot, r.Name, "tmp")
}

// OutboxDir is the rule's packed-output directory.
func (r *Rule) OutboxDir() string {
	return filepath.Join(r.WorkRoot, r.Name, "outbox")
}

// NewPacker builds the rule's packer.
func (r *Rule) NewPacker() (pack.Packer, error) {
	name := r.ArchiveName
	if name == "" {
		name = r.Name + ".zip"
	}
	kind := r.Packer
	if kind == "" {
		kind = pack.KindFlat
	}
	return pack.New(kind, name)
}

// Validate checks rule construction invariants.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule has no name")
	}
	if r.Mode != ModeSequential && r.Mode != ModeMass {
		return fmt.Errorf("rule %s: unknown mode %q", r.Name, r.Mode)
	}
	if r.SupervisorFor == nil {
		return fmt.Errorf("rule %s: no supervisor resolver", r.Name)
	}
	if r.Mode == ModeMass && r.ItemsToPush == nil {
		return fmt.Errorf("rule %s: mass rule has no items query", r.Name)
	}
	return nil
}
