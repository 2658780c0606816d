// Command courier runs the content export pipeline: it drains the push
// queue, runs mass exports, checks queue health and sweeps delivered items.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	app := &application{}

	root := &cobra.Command{
		Use:           "courier",
		Short:         "Content export pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&app.configPath, "config", "", "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&app.fixturesPath, "fixtures", "", "path to a YAML content fixture file")

	root.AddCommand(pushCommand(app))
	root.AddCommand(massPushCommand(app))
	root.AddCommand(checkCommand(app))
	root.AddCommand(cleanQueueCommand(app))
	root.AddCommand(migrateCommand(app))
	root.AddCommand(versionCommand())

	return root
}
