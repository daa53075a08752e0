// Package cli defines the ticketing server's command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/iliyamo/event-ticketing/internal/config"
)

// NewRootCommand creates the root command.  Every subcommand reads its
// configuration from the environment, after loading .env if present.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ticketing",
		Short: "Event ticketing marketplace server",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadDotEnv()
		},
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewMigrateCommand())
	cmd.AddCommand(NewReconcileCommand())

	return cmd
}
