package export

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/feedops/courier/internal/domain"
	"github.com/feedops/courier/internal/queue"
	"github.com/google/uuid"
)

// Facility is the enqueue API: idempotent insertion of queue items for a
// (rule, entity) pair, with duplicate suppression and enqueue-time fan-out
// across the rule's destinations.
type Facility struct {
	registry *Registry
	repo     queue.Repository
}

// NewFacility creates a Facility.
func NewFacility(registry *Registry, repo queue.Repository) *Facility {
	return &Facility{registry: registry, repo: repo}
}

// AddItemToPush enqueues one entity under the named rule. An unknown rule is
// logged and ignored: rules get renamed or retired while saves keep
// arriving, and that must not surface as an error to the caller. While a NEW
// item for the pair exists, re-selection is a no-op.
//
// Sequential rules fan out at enqueue time: one item per destination url, so
// each destination is retried and tracked independently. Mass rules pull
// their own candidate set at run time and insert nothing here.
func (f *Facility) AddItemToPush(ctx context.Context, entity domain.Entity, ruleName string) error {
	ref := domain.Ref(entity)

	rule, ok := f.registry.Get(ruleName)
	if !ok {
		slog.Warn("rule not registered, skipping enqueue", "rule", ruleName, "ref", ref.String())
		return nil
	}

	exists, err := f.repo.HasNew(ctx, ruleName, ref)
	if err != nil {
		return fmt.Errorf("check duplicate for %s: %w", ref, err)
	}
	if exists {
		slog.Debug("entity already queued, skipping", "rule", ruleName, "ref", ref.String())
		return nil
	}

	if rule.Mode == ModeSequential {
		if len(rule.PushURLs) == 0 {
			slog.Warn("no push urls configured for rule", "rule", ruleName)
		}
		for _, url := range rule.PushURLs {
			item := &queue.Item{
				ID:         uuid.NewString(),
				RuleName:   ruleName,
				PushURL:    url,
				Status:     queue.StatusNew,
				ContentRef: ref,
			}
			if err := f.repo.Create(ctx, item); err != nil {
				return fmt.Errorf("enqueue %s for %s: %w", ref, url, err)
			}
			slog.Debug("entity queued", "rule", ruleName, "ref", ref.String(), "url", url, "item_id", item.ID)
		}
	}

	if rule.PostSelect != nil {
		// Cascade failures must not undo the primary enqueue.
		if err := rule.PostSelect(ctx, entity, f); err != nil {
			slog.Error("post-select hook failed", "rule", ruleName, "ref", ref.String(), "error", err)
		}
	}

	return nil
}
