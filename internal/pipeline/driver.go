// Package pipeline drives the export lifecycle: claiming queued items,
// generating and packing outputs, delivering them and finalizing statuses.
// It also hosts the queue health check and retention sweeps.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/feedops/courier/internal/domain"
	"github.com/feedops/courier/internal/export"
	"github.com/feedops/courier/internal/pack"
	"github.com/feedops/courier/internal/queue"
	"github.com/feedops/courier/internal/send"
	"github.com/google/uuid"
)

// Config contains driver configuration.
type Config struct {
	// BatchSize bounds one fetch of NEW items.
	BatchSize int
}

// DefaultConfig returns default driver configuration.
func DefaultConfig() Config {
	return Config{BatchSize: 100}
}

// Driver runs the push pipeline over the persisted queue.
type Driver struct {
	config   Config
	registry *export.Registry
	repo     queue.Repository
	resolver domain.Resolver
	delivery *send.Delivery
}

// NewDriver creates a Driver.
func NewDriver(config Config, registry *export.Registry, repo queue.Repository, resolver domain.Resolver, delivery *send.Delivery) *Driver {
	if config.BatchSize < 1 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	return &Driver{
		config:   config,
		registry: registry,
		repo:     repo,
		resolver: resolver,
		delivery: delivery,
	}
}

// RunSequential drains the queue of NEW items, processing each claimed item
// independently. One item's failure never stops the run; the run itself only
// fails when the queue cannot be read.
func (d *Driver) RunSequential(ctx context.Context) error {
	processed := 0
	for {
		items, err := d.repo.FetchNew(ctx, d.config.BatchSize)
		if err != nil {
			return fmt.Errorf("fetch queue: %w", err)
		}
		if len(items) == 0 {
			break
		}

		slog.Debug("processing queue batch", "count", len(items))
		claimed := 0
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.processItem(ctx, item) {
				claimed++
			}
			processed++
		}

		// A batch where no claim went through leaves the same NEW items for
		// the next fetch; stop instead of spinning on them.
		if claimed == 0 {
			slog.Warn("no items claimed in batch, stopping run", "batch", len(items))
			break
		}
	}

	slog.Info("sequential run finished", "processed", processed)
	return nil
}

// processItem runs one claimed item through export, pack and delivery. Every
// failure path lands the item on a stage-specific error status. Reports
// whether the claim went through: an unclaimed item is still NEW and would
// come back on the next fetch.
func (d *Driver) processItem(ctx context.Context, item *queue.Item) bool {
	start := time.Now()

	claimed, err := d.repo.Claim(ctx, item.ID)
	if err != nil {
		slog.Error("failed to claim item", "item_id", item.ID, "error", err)
		return false
	}
	if !claimed {
		// Another run won the claim; the item is theirs now.
		slog.Debug("claim lost, skipping", "item_id", item.ID)
		return false
	}

	rule, ok := d.registry.Get(item.RuleName)
	if !ok {
		d.failItem(ctx, item, queue.StatusPushError,
			fmt.Sprintf("rule %q is not registered", item.RuleName))
		recordPush(item.RuleName, "failed", time.Since(start))
		return true
	}

	entity, err := d.resolver.Resolve(ctx, item.ContentRef)
	if err != nil {
		d.failItem(ctx, item, queue.StatusPushError,
			fmt.Sprintf("resolve %s: %v", item.ContentRef, err))
		recordPush(rule.Name, "failed", time.Since(start))
		return true
	}

	staged, err := export.ExportItem(ctx, rule, entity)
	if err != nil {
		status := export.ClassifyStage(err)
		d.failItem(ctx, item, status, err.Error())
		recordExportFailure(rule.Name, status)
		recordPush(rule.Name, "failed", time.Since(start))
		d.cleanTmp(rule)
		return true
	}

	packed, err := d.packOutputs(rule, staged)
	d.cleanTmp(rule)
	if err != nil {
		d.failItem(ctx, item, queue.StatusPushError, fmt.Sprintf("pack: %v", err))
		recordPush(rule.Name, "failed", time.Since(start))
		return true
	}

	if d.delivery.DeliverTree(ctx, rule.OutboxDir(), packed, item.PushURL, item) {
		removeFiles(packed)
		recordPush(rule.Name, "pushed", time.Since(start))
	} else {
		recordPush(rule.Name, "failed", time.Since(start))
	}
	return true
}

// RunMass executes one mass rule end to end: collect the candidate set,
// export each entity in isolation, pack once and deliver to every configured
// destination. A pack failure aborts the run; per-entity export failures are
// recorded on the queue and skipped.
func (d *Driver) RunMass(ctx context.Context, ruleName string) error {
	start := time.Now()

	rule, ok := d.registry.Get(ruleName)
	if !ok {
		return fmt.Errorf("rule %q is not registered", ruleName)
	}
	if rule.Mode != export.ModeMass {
		return fmt.Errorf("rule %q is not a mass rule", ruleName)
	}

	if rule.Initialize != nil {
		if err := rule.Initialize(ctx); err != nil {
			return fmt.Errorf("initialize %s: %w", ruleName, err)
		}
	}

	entities, err := rule.ItemsToPush(ctx)
	if err != nil {
		return fmt.Errorf("collect candidates for %s: %w", ruleName, err)
	}

	var staged []string
	for _, e := range entities {
		files, err := export.ExportItem(ctx, rule, e)
		if err != nil {
			status := export.ClassifyStage(err)
			slog.Error("entity export failed",
				"rule", ruleName,
				"ref", domain.Ref(e).String(),
				"status", status.String(),
				"error", err,
			)
			d.recordExportError(ctx, rule, e, status, err)
			recordExportFailure(rule.Name, status)
			continue
		}
		staged = append(staged, files...)
	}

	if len(staged) == 0 {
		d.cleanTmp(rule)
		slog.Info("mass run produced no outputs", "rule", ruleName)
		return nil
	}

	packed, err := d.packOutputs(rule, staged)
	d.cleanTmp(rule)
	if err != nil {
		recordPush(rule.Name, "failed", time.Since(start))
		return fmt.Errorf("pack %s: %w", ruleName, err)
	}

	ok = true
	for _, rawURL := range rule.PushURLs {
		if !d.delivery.DeliverTree(ctx, rule.OutboxDir(), packed, rawURL, nil) {
			ok = false
		}
	}

	if ok {
		removeFiles(packed)
		recordPush(rule.Name, "pushed", time.Since(start))
		slog.Info("mass run finished", "rule", ruleName, "entities", len(entities), "files", len(packed))
		return nil
	}

	recordPush(rule.Name, "failed", time.Since(start))
	return fmt.Errorf("mass rule %s: delivery failed for at least one destination", ruleName)
}

// packOutputs fingerprints the staged tree, then packs it into the outbox.
func (d *Driver) packOutputs(rule *export.Rule, staged []string) ([]string, error) {
	digest, _, err := pack.TreeHash(rule.TmpDir())
	if err != nil {
		return nil, fmt.Errorf("fingerprint staging tree: %w", err)
	}
	rule.LastLocalDigest = digest

	packer, err := rule.NewPacker()
	if err != nil {
		return nil, err
	}
	packed, err := packer.Pack(rule.TmpDir(), rule.OutboxDir(), staged)
	if err != nil {
		return nil, err
	}

	slog.Debug("outputs packed", "rule", rule.Name, "files", len(packed), "digest", digest)
	return packed, nil
}

// recordExportError persists a queue entry for one failed entity of a mass
// run, so the failure is auditable even though mass rules enqueue nothing up
// front.
func (d *Driver) recordExportError(ctx context.Context, rule *export.Rule, e domain.Entity, status queue.Status, cause error) {
	item := &queue.Item{
		ID:         uuid.NewString(),
		RuleName:   rule.Name,
		Status:     status,
		Message:    cause.Error(),
		ContentRef: domain.Ref(e),
	}
	if err := d.repo.Create(ctx, item); err != nil {
		slog.Error("failed to record export error", "rule", rule.Name, "error", err)
	}
}

func (d *Driver) failItem(ctx context.Context, item *queue.Item, status queue.Status, message string) {
	slog.Error("item failed",
		"item_id", item.ID,
		"rule", item.RuleName,
		"status", status.String(),
		"message", message,
	)
	if err := d.repo.MarkFailed(ctx, item.ID, status, message); err != nil {
		slog.Error("failed to mark item failed", "item_id", item.ID, "error", err)
	}
	item.Status = status
}

func (d *Driver) cleanTmp(rule *export.Rule) {
	if err := os.RemoveAll(rule.TmpDir()); err != nil {
		slog.Warn("failed to clean staging directory", "rule", rule.Name, "error", err)
	}
}

func removeFiles(files []string) {
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			slog.Warn("failed to remove delivered file", "file", f, "error", err)
		}
	}
}
