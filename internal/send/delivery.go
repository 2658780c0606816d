package send

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/feedops/courier/internal/queue"
	"golang.org/x/time/rate"
)

// Config tunes delivery behaviour.
type Config struct {
	// MaxAttempts bounds retries per file. Minimum 1.
	MaxAttempts int

	// AttemptTimeout bounds one connect+upload attempt.
	AttemptTimeout time.Duration

	// UploadsPerSecond throttles attempts across all destinations.
	// Zero disables throttling.
	UploadsPerSecond float64
}

// DefaultConfig returns default delivery configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		AttemptTimeout: 2 * time.Minute,
	}
}

// Delivery transports packed files to destinations, recording attempt counts
// and final status on the associated queue item.
type Delivery struct {
	config     Config
	transports Transports
	repo       queue.Repository
	limiter    *rate.Limiter
}

// NewDelivery creates a Delivery. repo may be nil for mass-mode runs that
// have no queue item per destination.
func NewDelivery(config Config, transports Transports, repo queue.Repository) *Delivery {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	var limiter *rate.Limiter
	if config.UploadsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.UploadsPerSecond), 1)
	}

	return &Delivery{
		config:     config,
		transports: transports,
		repo:       repo,
		limiter:    limiter,
	}
}

// Deliver sends each file to the target, independently retried up to the
// configured attempt limit. Returns true only when every file succeeded.
// When item is non-nil its attempt counter is persisted before each attempt
// and its final status becomes PUSHED or SEND_ERROR.
func (d *Delivery) Deliver(ctx context.Context, files []string, target URL, item *queue.Item) bool {
	transport, err := d.transports.For(target)
	if err != nil {
		slog.Error("delivery refused", "url", target.Raw, "error", err)
		if item != nil {
			d.markFailed(ctx, item, err.Error())
		}
		return false
	}

	ok := true
	var messages []string

	for _, f := range files {
		sent, lastErr := d.sendFile(ctx, transport, f, target, item)

		now := time.Now().Format(time.RFC3339)
		var feedback string
		if sent {
			feedback = fmt.Sprintf("[%s] %s: push success", now, filepath.Base(f))
			slog.Info("file delivered", "file", f, "url", target.Raw)
		} else {
			feedback = fmt.Sprintf("[%s] %s: push error: %v", now, filepath.Base(f), lastErr)
			slog.Error("file delivery failed",
				"file", f,
				"url", target.Raw,
				"max_attempts", d.config.MaxAttempts,
				"error", lastErr,
			)
			ok = false
		}
		messages = append(messages, feedback)
	}

	d.finalize(ctx, item, ok, messages)
	return ok
}

// DeliverTree sends packed files to the destination, preserving each file's
// directory relative to baseDir on the remote side. The queue item, when
// non-nil, is finalized exactly once for the whole tree.
func (d *Delivery) DeliverTree(ctx context.Context, baseDir string, files []string, rawURL string, item *queue.Item) bool {
	ok := true
	var messages []string

	for _, f := range files {
		dir := ""
		if rel, err := filepath.Rel(baseDir, f); err == nil {
			if parent := filepath.Dir(rel); parent != "." {
				dir = filepath.ToSlash(parent)
			}
		}

		target, err := ParseURL(JoinURL(rawURL, dir))
		if err != nil {
			slog.Error("invalid destination url", "url", rawURL, "error", err)
			messages = append(messages, fmt.Sprintf("[%s] %s: push error: %v",
				time.Now().Format(time.RFC3339), filepath.Base(f), err))
			ok = false
			continue
		}

		transport, err := d.transports.For(target)
		if err != nil {
			slog.Error("delivery refused", "url", target.Raw, "error", err)
			messages = append(messages, fmt.Sprintf("[%s] %s: push error: %v",
				time.Now().Format(time.RFC3339), filepath.Base(f), err))
			ok = false
			continue
		}

		sent, lastErr := d.sendFile(ctx, transport, f, target, item)

		now := time.Now().Format(time.RFC3339)
		if sent {
			messages = append(messages, fmt.Sprintf("[%s] %s: push success", now, filepath.Base(f)))
			slog.Info("file delivered", "file", f, "url", target.Raw)
		} else {
			messages = append(messages, fmt.Sprintf("[%s] %s: push error: %v", now, filepath.Base(f), lastErr))
			slog.Error("file delivery failed",
				"file", f,
				"url", target.Raw,
				"max_attempts", d.config.MaxAttempts,
				"error", lastErr,
			)
			ok = false
		}
	}

	d.finalize(ctx, item, ok, messages)
	return ok
}

func (d *Delivery) finalize(ctx context.Context, item *queue.Item, ok bool, messages []string) {
	if item == nil {
		return
	}
	message := strings.Join(messages, "\n")
	if ok {
		if err := d.repo.MarkPushed(ctx, item.ID, message); err != nil {
			slog.Error("failed to mark pushed", "item_id", item.ID, "error", err)
		}
		item.Status = queue.StatusPushed
	} else {
		d.markFailed(ctx, item, message)
	}
}

// sendFile runs the bounded retry loop for one file. Attempt errors are
// swallowed and retried; only the last one is reported.
func (d *Delivery) sendFile(ctx context.Context, transport Transport, file string, target URL, item *queue.Item) (bool, error) {
	policy := backoff.NewExponentialBackOff()
	var lastErr error

	for attempt := 1; attempt <= d.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(policy.NextBackOff()):
			case <-ctx.Done():
				return false, ctx.Err()
			}
		}
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return false, err
			}
		}

		// The attempt is recorded before it runs, so a crash mid-attempt
		// still shows up in the counters.
		if item != nil {
			if err := d.repo.RecordAttempt(ctx, item.ID); err != nil {
				slog.Error("failed to record attempt", "item_id", item.ID, "error", err)
			}
			item.AttemptCount++
		}

		slog.Debug("push attempt", "file", file, "url", target.Raw, "attempt", attempt)

		if err := d.attempt(ctx, transport, file, target); err != nil {
			lastErr = err
			continue
		}
		return true, nil
	}

	return false, lastErr
}

// attempt performs one connect, ensure-directory, upload, disconnect cycle.
func (d *Delivery) attempt(ctx context.Context, transport Transport, file string, target URL) error {
	attemptCtx := ctx
	if d.config.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, d.config.AttemptTimeout)
		defer cancel()
	}

	session, err := transport.Connect(attemptCtx, target)
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	if err := session.EnsureDir(strings.TrimSuffix(target.Path, "/")); err != nil {
		return err
	}
	if err := session.Upload(file, filepath.Base(file)); err != nil {
		return err
	}
	return session.Close()
}

func (d *Delivery) markFailed(ctx context.Context, item *queue.Item, message string) {
	if err := d.repo.MarkFailed(ctx, item.ID, queue.StatusSendError, message); err != nil {
		slog.Error("failed to mark send error", "item_id", item.ID, "error", err)
	}
	item.Status = queue.StatusSendError
}

// JoinURL appends a directory to a destination url, normalizing the single
// slash between them.
func JoinURL(rawURL, dir string) string {
	if dir == "" {
		return rawURL
	}
	return strings.TrimSuffix(rawURL, "/") + "/" + strings.TrimPrefix(dir, "/")
}
