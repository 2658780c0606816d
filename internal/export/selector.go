package export

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/feedops/courier/internal/domain"
	"github.com/feedops/courier/internal/queue"
	"github.com/google/uuid"
)

// Selector evaluates saved entities against every registered rule's filter
// chain and enqueues the matches.
type Selector struct {
	registry *Registry
	repo     queue.Repository
	facility *Facility
}

// NewSelector creates a Selector.
func NewSelector(registry *Registry, repo queue.Repository, facility *Facility) *Selector {
	return &Selector{registry: registry, repo: repo, facility: facility}
}

// Select runs the filter chain for every registered rule and hands matches
// to the facility. One rule's filter failure is recorded and skipped; it
// never blocks evaluation of the remaining rules.
func (s *Selector) Select(ctx context.Context, change domain.Change) {
	ref := domain.Ref(change.Entity)
	slog.Debug("selecting entity", "ref", ref.String(), "created", change.Created)

	for _, rule := range s.registry.Rules() {
		if rule.Filter == nil {
			continue
		}
		if !s.filter(ctx, rule, change) {
			continue
		}
		if err := s.facility.AddItemToPush(ctx, change.Entity, rule.Name); err != nil {
			slog.Error("failed to enqueue entity",
				"rule", rule.Name,
				"ref", ref.String(),
				"error", err,
			)
		}
	}
}

// filter runs the three-step chain in fixed order, short-circuiting on the
// first false or failure. Step failures synthesize an error queue entry for
// auditability.
func (s *Selector) filter(ctx context.Context, rule *Rule, change domain.Change) bool {
	entity := change.Entity

	ok, err := rule.Filter.FilterByInstanceType(entity)
	if err != nil {
		s.recordFilterError(ctx, rule, entity, queue.StatusFilterByInstanceTypeError, err)
		return false
	}
	if !ok {
		slog.Debug("entity failed instance filter", "rule", rule.Name)
		return false
	}

	// New entities have no previous save to diff against; the updates
	// filter is skipped entirely.
	if !change.Created {
		ok, err = rule.Filter.FilterByUpdates(entity, change.ChangedFields)
		if err != nil {
			s.recordFilterError(ctx, rule, entity, queue.StatusFilterByUpdatesError, err)
			return false
		}
		if !ok {
			slog.Debug("entity failed updates filter", "rule", rule.Name)
			return false
		}
	}

	ok, err = rule.Filter.FilterByState(entity)
	if err != nil {
		s.recordFilterError(ctx, rule, entity, queue.StatusFilterByStateError, err)
		return false
	}
	if !ok {
		slog.Debug("entity failed state filter", "rule", rule.Name)
		return false
	}

	return true
}

// recordFilterError persists a queue entry describing the failed filter
// stage, so a broken filter is visible in the queue instead of silently
// dropping entities.
func (s *Selector) recordFilterError(ctx context.Context, rule *Rule, entity domain.Entity, status queue.Status, cause error) {
	slog.Error("filter error",
		"rule", rule.Name,
		"stage", status.String(),
		"ref", domain.Ref(entity).String(),
		"error", cause,
	)

	item := &queue.Item{
		ID:         uuid.NewString(),
		RuleName:   rule.Name,
		Status:     status,
		Message:    fmt.Sprintf("%T: %v", cause, cause),
		ContentRef: domain.Ref(entity),
	}
	if err := s.repo.Create(ctx, item); err != nil {
		slog.Error("failed to record filter error", "rule", rule.Name, "error", err)
	}
}
