package main

import (
	"fmt"

	"github.com/feedops/courier/internal/version"
	"github.com/spf13/cobra"
)

// versionCommand prints build information.
func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "courier %s (commit %s, built %s)\n",
				version.Version, version.GitCommit, version.BuildDate)
		},
	}
}
