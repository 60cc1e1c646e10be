package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hearthview/tabletop/internal/gateway"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Database string
	In       string
}

// ImportResult holds the import command's output payload.
type ImportResult struct {
	Path    string `json:"path"`
	DB      string `json:"db"`
	Release string `json:"release"` // newest imported release, the one host will load
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the database with an archive",
		Long: `Import an archive written by the export command.

The archive is validated before anything is written; a bad file never
damages the existing database. On success the database holds exactly
the archive's contents and the newest release is printed, ready to
pass to host --release.

Example:
  tabletop import --db ./board.db --in ./board.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.In, "in", "", "archive file to read (required)")
	_ = cmd.MarkFlagRequired("in")

	return cmd
}

func runImport(opts *ImportOptions, cmd *cobra.Command) error {
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

	f, err := os.Open(opts.In)
	if err != nil {
		return outputCommandError(formatter, ErrCodeIO, fmt.Sprintf("failed to open archive file: %v", err))
	}
	defer f.Close()

	gw, err := gateway.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer gw.Close()

	release, err := gw.Import(ctx, f)
	if err != nil {
		return outputCommandError(formatter, ErrCodeBadArchive, err.Error())
	}

	result := ImportResult{Path: opts.In, DB: dbPath, Release: release}
	if opts.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Imported %s into %s\n", opts.In, dbPath)
	fmt.Fprintf(formatter.Writer, "Newest release: %s\n\n", release)
	fmt.Fprintln(formatter.Writer, "Host it with:")
	fmt.Fprintf(formatter.Writer, "  tabletop host --db %s --release %s\n", dbPath, release)
	return nil
}
