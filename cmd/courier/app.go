package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/feedops/courier/internal/config"
	"github.com/feedops/courier/internal/export"
	"github.com/feedops/courier/internal/pipeline"
	"github.com/feedops/courier/internal/pkg/metrics"
	pkgpostgres "github.com/feedops/courier/internal/pkg/postgres"
	"github.com/feedops/courier/internal/queue"
	queuepostgres "github.com/feedops/courier/internal/queue/postgres"
	"github.com/feedops/courier/internal/rules/newsfeed"
	"github.com/feedops/courier/internal/send"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// application holds the wired components shared by the subcommands. Each
// command initializes only what it needs: queue commands skip the rule set,
// pipeline commands build everything.
type application struct {
	configPath   string
	fixturesPath string

	cfg      *config.Config
	pool     *pgxpool.Pool
	repo     queue.Repository
	store    *newsfeed.Store
	registry *export.Registry
	driver   *pipeline.Driver

	metricsServer *http.Server
	metricsCancel context.CancelFunc
}

// initQueue loads configuration, sets up logging and connects the queue
// repository.
func (a *application) initQueue(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	slog.SetDefault(initLogger(cfg.Log))

	pool, err := pkgpostgres.Connect(ctx, pkgpostgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}

	a.pool = pool
	a.repo = queuepostgres.NewRepository(pool)
	return nil
}

// initPipeline builds the rule set, delivery stack and driver on top of
// initQueue.
func (a *application) initPipeline(ctx context.Context) error {
	if err := a.initQueue(ctx); err != nil {
		return err
	}

	a.store = newsfeed.NewStore()
	if a.fixturesPath != "" {
		if err := newsfeed.LoadFixtures(a.store, a.fixturesPath); err != nil {
			return err
		}
	}

	renderer, err := newsfeed.NewRenderer()
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	rules, err := newsfeed.Rules(newsfeed.Options{
		Store:       a.store,
		Renderer:    renderer,
		WorkRoot:    a.cfg.WorkRoot,
		ContentRoot: a.contentRoot(),
		PartnerURLs: a.cfg.Rules[newsfeed.PartnerFeedRule].PushURLs,
		PhotoURLs:   a.cfg.Rules[newsfeed.PartnerFeedPhotoRule].PushURLs,
		DigestURLs:  a.cfg.Rules[newsfeed.WeeklyDigestRule].PushURLs,
	})
	if err != nil {
		return err
	}

	registry, err := export.NewRegistry(rules...)
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}
	a.registry = registry

	delivery := send.NewDelivery(send.Config{
		MaxAttempts:      a.cfg.Delivery.MaxAttempts,
		AttemptTimeout:   a.cfg.Delivery.AttemptTimeout,
		UploadsPerSecond: a.cfg.Delivery.UploadsPerSecond,
	}, send.DefaultTransports(), a.repo)

	a.driver = pipeline.NewDriver(pipeline.Config{
		BatchSize: a.cfg.Driver.BatchSize,
	}, registry, a.repo, a.store, delivery)

	a.startMetrics()
	return nil
}

// contentRoot picks the content root from whichever binary-exporting rule
// configures one.
func (a *application) contentRoot() string {
	for _, name := range []string{newsfeed.PartnerFeedPhotoRule, newsfeed.WeeklyDigestRule} {
		if root := a.cfg.Rules[name].ContentRoot; root != "" {
			return root
		}
	}
	return ""
}

// startMetrics exposes /metrics and starts the background collectors when a
// listen address is configured.
func (a *application) startMetrics() {
	if a.cfg.Metrics.Addr == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.metricsCancel = cancel

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	a.metricsServer = &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           router,
		ReadHeaderTimeout: 2 * time.Second,
	}

	go func() {
		slog.Info("starting metrics server", "addr", a.cfg.Metrics.Addr)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()

	go metrics.CollectDBPoolMetrics(ctx, a.pool, 15*time.Second)
	go a.collectQueueMetrics(ctx)
}

func (a *application) collectQueueMetrics(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats, err := a.repo.GetStats(ctx)
			if err != nil {
				slog.Error("failed to get queue stats", "error", err)
				continue
			}
			pipeline.RecordQueueStats(stats)
		case <-ctx.Done():
			return
		}
	}
}

// close releases connections and stops the metrics listener.
func (a *application) close() {
	if a.metricsCancel != nil {
		a.metricsCancel()
	}
	if a.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.metricsServer.Shutdown(shutdownCtx)
		cancel()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// exitError carries an exit code through cobra's error return.
type exitError struct {
	code    int
	message string
}

func (e *exitError) Error() string { return e.message }

// runWithExitCode wraps a command run so monitoring-style exit codes survive
// cobra's error handling.
func runWithExitCode(run func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := run(cmd, args)
		var exit *exitError
		if errors.As(err, &exit) {
			fmt.Fprintln(cmd.OutOrStdout(), exit.message)
			os.Exit(exit.code)
		}
		return err
	}
}

// overrideDuration replaces dst when the flag value is set.
func overrideDuration(dst *time.Duration, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value, err)
	}
	*dst = d
	return nil
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
