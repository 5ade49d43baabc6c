package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/fhirflat/internal/compiler"
	"github.com/roach88/fhirflat/internal/engine"
	"github.com/roach88/fhirflat/internal/ir"
	"github.com/roach88/fhirflat/internal/sink"
	"github.com/roach88/fhirflat/internal/store"
)

// Output destinations for the run command.
const (
	OutputCSV    = "csv"
	OutputNDJSON = "ndjson"
	OutputSQLite = "sqlite"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config   string
	Output   string
	Database string
	Table    string
	Replace  bool

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// RunReport summarizes a run for --format json and the log.
type RunReport struct {
	engine.RunStats
	View   string `json:"view,omitempty"`
	Output string `json:"output"`
	Table  string `json:"table,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run --config <view> [inputs... | -]",
		Short: "Flatten NDJSON resources through a view",
		Long: `Flatten newline-delimited JSON resources through a view definition.

Inputs are read in order; "-" or no inputs reads stdin, and http:// or
https:// inputs are fetched with GET. The view definition
may be JSON, YAML or CUE. CSV and NDJSON rows are written to stdout; the
sqlite output writes every row of the run in one transaction and records
the run in fhirflat_runs.

Examples:
  fhirflat run --config patients.json patients.ndjson > patients.csv
  cat *.ndjson | fhirflat run --config names.yaml --output ndjson -
  fhirflat run --config patients.json https://example.org/export/Patient.ndjson
  fhirflat run --config names.cue --output sqlite --db out.db --table names --replace data.ndjson`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "view definition (.json, .yaml or .cue)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", OutputCSV, "output format (csv|ndjson|sqlite)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database path (sqlite output)")
	cmd.Flags().StringVar(&opts.Table, "table", "", "table name (sqlite output, defaults to the view name)")
	cmd.Flags().BoolVar(&opts.Replace, "replace", false, "drop and recreate the table instead of appending")

	return cmd
}

func runView(opts *RunOptions, inputs []string, cmd *cobra.Command) error {
	logger := opts.logger(cmd.ErrOrStderr())

	view, err := loadView(opts.Config)
	if err != nil {
		return err
	}
	logger.Debug("view compiled", "view", view.Name, "resource", view.Resource, "hash", view.Hash)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runOpts := []engine.Option{engine.WithLogger(logger)}
	if opts.RunIDs != nil {
		runOpts = append(runOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}
	docs := openInputs(ctx, inputs, cmd.InOrStdin())
	columns := ir.ColumnNames(engine.Columns(view))
	report := RunReport{View: view.Name, Output: opts.Output}

	switch opts.Output {
	case OutputCSV:
		out := sink.NewCSV(cmd.OutOrStdout(), columns)
		if err := out.WriteHeader(); err != nil {
			return WrapExitError(ExitFailure, "write output", err)
		}
		report.RunStats, err = engine.Run(ctx, docs, view, out, runOpts...)
		if flushErr := out.Flush(); err == nil && flushErr != nil {
			err = flushErr
		}
	case OutputNDJSON:
		out := sink.NewNDJSON(cmd.OutOrStdout())
		report.RunStats, err = engine.Run(ctx, docs, view, out, runOpts...)
		if flushErr := out.Flush(); err == nil && flushErr != nil {
			err = flushErr
		}
	case OutputSQLite:
		report.Table = opts.Table
		if report.Table == "" {
			report.Table = view.Name
		}
		report.RunStats, err = runToStore(ctx, logger, opts, view, report.Table, columns, docs, runOpts)
	default:
		return NewExitError(ExitCommandError,
			fmt.Sprintf("invalid output %q: must be one of csv, ndjson, sqlite", opts.Output))
	}

	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr
		}
		logger.Error("run failed", "run_id", report.RunID, "error", err,
			"documents", report.Documents, "rows", report.Rows)
		return WrapExitError(ExitFailure, "run failed", err)
	}

	logRun(logger, report)
	if opts.Output == OutputSQLite {
		return reportRun(opts.formatter(cmd), report)
	}
	return nil
}

// runToStore writes the run into a SQLite table in one transaction.
func runToStore(ctx context.Context, logger *slog.Logger, opts *RunOptions, view *compiler.CompiledView, table string, columns []string, docs iter.Seq2[any, error], runOpts []engine.Option) (engine.RunStats, error) {
	if opts.Database == "" {
		return engine.RunStats{}, NewExitError(ExitCommandError, "--db is required for sqlite output")
	}
	if table == "" {
		return engine.RunStats{}, NewExitError(ExitCommandError, "--table is required when the view has no name")
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return engine.RunStats{}, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	mode := store.Append
	if opts.Replace {
		mode = store.Replace
	}
	tw, err := st.BeginTable(ctx, table, columns, mode)
	if err != nil {
		return engine.RunStats{}, WrapExitError(ExitFailure, "failed to prepare table", err)
	}

	stats, err := engine.Run(ctx, docs, view, tw, runOpts...)
	if err != nil {
		if rbErr := tw.Rollback(); rbErr != nil {
			logger.Error("rollback failed", "error", rbErr)
		}
		return stats, err
	}
	if err := tw.Commit(store.RunRecord{RunID: stats.RunID, ViewName: view.Name, ViewHash: view.Hash}); err != nil {
		return stats, err
	}
	return stats, nil
}

func logRun(logger *slog.Logger, r RunReport) {
	attrs := []any{
		"run_id", r.RunID,
		"documents", r.Documents,
		"matched", r.Matched,
		"rows", r.Rows,
		"warnings", r.Warnings,
	}
	if r.Table != "" {
		attrs = append(attrs, "table", r.Table)
	}
	logger.Info("run finished", attrs...)
}

func reportRun(f *OutputFormatter, r RunReport) error {
	if f.Format == "json" {
		return f.SuccessRun(r.RunID, r)
	}
	return writeText(f.Writer, "✓ wrote %d rows from %d documents to %s (run %s)\n",
		r.Rows, r.Documents, r.Table, r.RunID)
}

func writeText(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
