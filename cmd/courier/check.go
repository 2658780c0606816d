package main

import (
	"github.com/feedops/courier/internal/pipeline"
	"github.com/spf13/cobra"
)

// checkCommand inspects queue staleness and exits with a monitoring status
// code: 0 ok, 1 warning, 2 critical.
func checkCommand(app *application) *cobra.Command {
	var warning, critical string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check queue health for monitoring",
		Args:  cobra.NoArgs,
		RunE: runWithExitCode(func(cmd *cobra.Command, _ []string) error {
			if err := app.initQueue(cmd.Context()); err != nil {
				return err
			}
			defer app.close()

			thresholds := pipeline.HealthThresholds{
				Warning:  app.cfg.Health.Warning,
				Critical: app.cfg.Health.Critical,
			}
			if err := overrideDuration(&thresholds.Warning, warning); err != nil {
				return err
			}
			if err := overrideDuration(&thresholds.Critical, critical); err != nil {
				return err
			}

			code, summary, err := pipeline.CheckHealth(cmd.Context(), app.repo, thresholds)
			if err != nil {
				return err
			}
			return &exitError{code: code, message: summary}
		}),
	}

	cmd.Flags().StringVar(&warning, "warning", "", "override the warning age threshold, e.g. 10m")
	cmd.Flags().StringVar(&critical, "critical", "", "override the critical age threshold, e.g. 30m")
	return cmd
}
