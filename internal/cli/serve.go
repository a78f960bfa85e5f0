package cli

import (
	"github.com/spf13/cobra"

	"github.com/Umairyojo/NexMark/internal/app"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server. Configuration is read from NEXMARK_* environment
variables; missing required values abort start-up.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	return app.New().Run()
}
