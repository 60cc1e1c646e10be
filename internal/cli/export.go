package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hearthview/tabletop/internal/gateway"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Database string
	Out      string
}

// ExportResult holds the export command's output payload.
type ExportResult struct {
	Path     string          `json:"path"`
	Releases []ReleaseRecord `json:"releases"`
}

// ReleaseRecord describes one stored release for display.
type ReleaseRecord struct {
	Release   string `json:"release"`
	UpdatedAt string `json:"updated_at"`
	Size      int64  `json:"size"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored boards to an archive",
		Long: `Export the whole database, every release record and every asset,
as one JSON archive. The archive can be imported into another database
with the import command.

Example:
  tabletop export --db ./board.db --out ./board.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Out, "out", "", "archive file to write (required)")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	envCfg, err := LoadEnv()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read environment", err)
	}
	dbPath, err := resolveDB(opts.Database, envCfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return outputCommandError(formatter, ErrCodeNotFound, fmt.Sprintf("database not found: %s", dbPath))
	}

	gw, err := gateway.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer gw.Close()

	releases, err := gw.Releases(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list releases", err)
	}
	if len(releases) == 0 {
		return outputCommandError(formatter, ErrCodeNotFound, fmt.Sprintf("nothing to export: %s holds no release records", dbPath))
	}

	f, err := os.Create(opts.Out)
	if err != nil {
		return outputCommandError(formatter, ErrCodeIO, fmt.Sprintf("failed to create archive file: %v", err))
	}
	if err := gw.Export(ctx, f); err != nil {
		f.Close()
		os.Remove(opts.Out)
		return WrapExitError(ExitCommandError, "export failed", err)
	}
	if err := f.Close(); err != nil {
		return outputCommandError(formatter, ErrCodeIO, fmt.Sprintf("failed to write archive file: %v", err))
	}

	formatter.VerboseLog("Wrote archive to %s", opts.Out)

	result := ExportResult{Path: opts.Out, Releases: releaseRecords(releases)}
	if opts.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Exported %d release(s) to %s\n\n", len(releases), opts.Out)
	fmt.Fprintln(formatter.Writer, "Releases:")
	for _, rel := range result.Releases {
		fmt.Fprintf(formatter.Writer, "  %s  %s  %d bytes\n", rel.Release, rel.UpdatedAt, rel.Size)
	}
	return nil
}

func releaseRecords(releases []gateway.Release) []ReleaseRecord {
	records := make([]ReleaseRecord, len(releases))
	for i, rel := range releases {
		records[i] = ReleaseRecord{
			Release:   rel.Release,
			UpdatedAt: rel.UpdatedAt.UTC().Format(time.RFC3339),
			Size:      rel.Size,
		}
	}
	return records
}
