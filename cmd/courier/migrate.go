package main

import (
	"fmt"

	"github.com/feedops/courier/internal/config"
	queuepostgres "github.com/feedops/courier/internal/queue/postgres"
	"github.com/spf13/cobra"
)

// migrateCommand applies the embedded schema migrations.
func migrateCommand(app *application) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(app.configPath)
			if err != nil {
				return err
			}

			if err := queuepostgres.Migrate(cfg.Database.URL); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
