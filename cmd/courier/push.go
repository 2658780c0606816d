package main

import (
	"github.com/spf13/cobra"
)

// pushCommand drains the queue of NEW items.
func pushCommand(app *application) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Process all queued items sequentially",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.initPipeline(cmd.Context()); err != nil {
				return err
			}
			defer app.close()

			return app.driver.RunSequential(cmd.Context())
		},
	}
}

// massPushCommand runs one or more mass rules end to end.
func massPushCommand(app *application) *cobra.Command {
	return &cobra.Command{
		Use:   "mass-push <rule>...",
		Short: "Run mass export rules",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.initPipeline(cmd.Context()); err != nil {
				return err
			}
			defer app.close()

			for _, name := range args {
				if err := app.driver.RunMass(cmd.Context(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
