package main

import (
	"fmt"

	"github.com/feedops/courier/internal/pipeline"
	"github.com/spf13/cobra"
)

// cleanQueueCommand sweeps delivered items past the retention age.
func cleanQueueCommand(app *application) *cobra.Command {
	var age string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "clean-queue",
		Short: "Delete delivered queue items past the retention age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.initQueue(cmd.Context()); err != nil {
				return err
			}
			defer app.close()

			retention := app.cfg.Retention.Age
			if err := overrideDuration(&retention, age); err != nil {
				return err
			}

			count, ids, err := pipeline.CleanQueue(cmd.Context(), app.repo, retention, dryRun)
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "would delete %d items\n", count)
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d items\n", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&age, "age", "", "override the retention age, e.g. 720h")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list candidates without deleting")
	return cmd
}
