package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hearthview/tabletop/internal/fact"
	"github.com/hearthview/tabletop/internal/gateway"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Release  string // optional - defaults to the newest stored release
}

// TraceFact is one row of the release dump. Values are canonical JSON.
type TraceFact struct {
	Entity string `json:"entity"`
	Attr   string `json:"attr"`
	Value  string `json:"value"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Release  string      `json:"release"`
	Entities int         `json:"entities"`
	Facts    []TraceFact `json:"facts"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Dump a stored release's facts",
		Long: `Print every fact of one stored release as a table.

A release record is the durable image of the board as of its last
save. Without --release the newest record is dumped, the same one
host would load.

Examples:
  tabletop trace --db ./board.db
  tabletop trace --db ./board.db --release 0.1.0
  tabletop trace --db ./board.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Release, "release", "", "release record to dump (default newest)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
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

	facts, release, err := gw.ReadRelease(ctx, opts.Release, fact.DefaultSchema())
	if err != nil {
		return outputCommandError(formatter, ErrCodeNotFound, err.Error())
	}

	result, err := buildTraceResult(release, facts)
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("failed to render facts: %v", err))
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return outputTraceText(formatter, result)
}

// buildTraceResult renders the facts into sorted display rows.
func buildTraceResult(release string, facts []fact.Fact) (TraceResult, error) {
	rows := make([]TraceFact, 0, len(facts))
	entities := make(map[fact.Key]struct{})

	for _, f := range facts {
		value, err := fact.MarshalCanonical(f.Value)
		if err != nil {
			return TraceResult{}, fmt.Errorf("fact %s %s: %w", f.Entity, f.Attr, err)
		}
		rows = append(rows, TraceFact{
			Entity: string(f.Entity),
			Attr:   string(f.Attr),
			Value:  string(value),
		})
		entities[f.Entity] = struct{}{}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Entity != rows[j].Entity {
			return rows[i].Entity < rows[j].Entity
		}
		if rows[i].Attr != rows[j].Attr {
			return rows[i].Attr < rows[j].Attr
		}
		return rows[i].Value < rows[j].Value
	})

	return TraceResult{
		Release:  release,
		Entities: len(entities),
		Facts:    rows,
	}, nil
}

// outputTraceText prints the release dump as a table.
func outputTraceText(formatter *OutputFormatter, result TraceResult) error {
	w := formatter.Writer

	fmt.Fprintf(w, "Release: %s\n", result.Release)
	fmt.Fprintf(w, "Facts: %d across %d entities\n", len(result.Facts), result.Entities)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Facts ===")
	if len(result.Facts) == 0 {
		fmt.Fprintln(w, "  (empty image)")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  ENTITY\tATTR\tVALUE")
	for _, row := range result.Facts {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", row.Entity, row.Attr, row.Value)
	}
	return tw.Flush()
}
