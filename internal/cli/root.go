// Package cli holds the nexmark command tree.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the root command. Without a subcommand it serves.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nexmark",
		Short: "NexMark - live personal bookmarks",
		Long: `NexMark keeps a signed-in user's bookmarks in sync across every
open browser tab.

Without a subcommand it starts the HTTP server, like "nexmark serve".`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewImportCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}
