package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Umairyojo/NexMark/internal/app"
	"github.com/Umairyojo/NexMark/internal/config"
	"github.com/Umairyojo/NexMark/internal/gateway"
	"github.com/Umairyojo/NexMark/internal/logger"
	"github.com/Umairyojo/NexMark/internal/sources/homepage"
)

// ImportOptions holds the import command flags.
type ImportOptions struct {
	UserID string
	File   string
	Format string // "json" | "text"
}

// NewImportCommand creates the import command.
func NewImportCommand() *cobra.Command {
	opts := &ImportOptions{}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a Homepage bookmarks.yaml or services.yaml",
		Long: `Import the links of a Homepage configuration file as bookmarks of one user.

Links whose URL the user already saved are skipped. Entries with an empty
title or a non-http(s) URL are reported and left out.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runImport(ctx, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "owner of the imported bookmarks (required)")
	cmd.Flags().StringVar(&opts.File, "file", "", "path to the Homepage yaml file (required)")
	cmd.Flags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	return cmd
}

func (o *ImportOptions) validate() error {
	o.UserID = strings.TrimSpace(o.UserID)
	switch {
	case o.UserID == "":
		return errors.New("--user is required")
	case o.File == "":
		return errors.New("--file is required")
	case o.Format != "text" && o.Format != "json":
		return fmt.Errorf("invalid format %q: must be one of [text json]", o.Format)
	}
	return nil
}

func runImport(ctx context.Context, opts *ImportOptions, out io.Writer) error {
	links, err := homepage.LoadFile(opts.File)
	if err != nil {
		return err
	}

	cfg := config.LoadData()
	log := logger.New(cfg.LogLevel, cfg.PrettyLog)
	defer func() { _ = log.Sync() }()

	client, data, err := app.OpenData(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = data.Close() }()
	if client != nil && cfg.Backend != config.BackendRedis {
		defer func() { _ = client.Close() }()
	}

	importer := homepage.NewImporter(data, gateway.New(data, nil, nil, log), log)
	res, err := importer.Import(ctx, opts.UserID, links)
	if err != nil {
		return fmt.Errorf("import aborted after %d bookmarks: %w", res.Created, err)
	}

	return writeResult(out, opts.Format, res)
}

func writeResult(out io.Writer, format string, res homepage.Result) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if _, err := fmt.Fprintf(out, "created: %d\nskipped (already saved): %d\nrejected: %d\n",
		res.Created, res.Duplicate, len(res.Rejected)); err != nil {
		return err
	}
	for _, f := range res.Rejected {
		if _, err := fmt.Fprintf(out, "  - %s (%s): %s\n", f.Title, f.URL, f.Status.Text()); err != nil {
			return err
		}
	}
	return nil
}
