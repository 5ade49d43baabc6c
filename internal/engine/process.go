package engine

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"github.com/roach88/fhirflat/internal/compiler"
	"github.com/roach88/fhirflat/internal/ir"
)

// Option configures ProcessResources and Run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
	diag   Diagnostics
	ids    RunIDGenerator
}

// WithDiagnostics sets the receiver of cardinality warnings. The default
// logs them through the run's logger, rate limited.
func WithDiagnostics(d Diagnostics) Option {
	return func(c *runConfig) {
		c.diag = d
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = l
	}
}

// WithRunIDGenerator sets the generator for RunStats.RunID. The default
// generates UUIDv7s.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(c *runConfig) {
		c.ids = g
	}
}

func newRunConfig(opts []Option) *runConfig {
	c := &runConfig{}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.diag == nil {
		c.diag = LogDiagnostics(c.logger, 10)
	}
	if c.ids == nil {
		c.ids = UUIDv7Generator{}
	}
	return c
}

// ProcessResources lazily flattens a document stream. Documents whose
// resourceType differs from the view's resource, or that fail the view's
// where predicates, produce no rows. Rows are yielded in stream order.
//
// The sequence ends after yielding the first error: a source error (wrapped
// as a RuntimeError with code SOURCE_FAILED), an evaluation error, or
// ctx.Err() once ctx is done. Breaking out of the loop stops reading docs.
func ProcessResources(ctx context.Context, docs iter.Seq2[any, error], view *compiler.CompiledView, opts ...Option) iter.Seq2[ir.Row, error] {
	cfg := newRunConfig(opts)
	return process(ctx, docs, view, cfg, &RunStats{})
}

func process(ctx context.Context, docs iter.Seq2[any, error], view *compiler.CompiledView, cfg *runConfig, stats *RunStats) iter.Seq2[ir.Row, error] {
	return func(yield func(ir.Row, error) bool) {
		base := NewRootScope(view.Constants)

		for doc, err := range docs {
			if ctxErr := ctx.Err(); ctxErr != nil {
				yield(ir.Row{}, ctxErr)
				return
			}
			stats.Documents++
			if err != nil {
				yield(ir.Row{}, NewSourceError(stats.Documents, err))
				return
			}
			if !matchesResource(doc, view.Resource) {
				continue
			}

			scope := newDocumentScope(base, doc)
			ok, err := matchesWhere(doc, view.Where, scope, "where")
			if err != nil {
				yield(ir.Row{}, atDocument(err, stats.Documents))
				return
			}
			if !ok {
				continue
			}
			stats.Matched++

			for row, err := range Extract(doc, view.Root, scope, cfg.diag) {
				if err != nil {
					yield(ir.Row{}, atDocument(err, stats.Documents))
					return
				}
				stats.Rows++
				if !yield(row, nil) {
					return
				}
			}
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			yield(ir.Row{}, ctxErr)
		}
	}
}

func matchesResource(doc any, resource string) bool {
	obj, ok := doc.(map[string]any)
	if !ok {
		return false
	}
	return obj["resourceType"] == resource
}

func atDocument(err error, n int) error {
	var re *RuntimeError
	if errors.As(err, &re) && re.Document == 0 {
		re.Document = n
	}
	return err
}

// RowSink consumes rows produced by Run.
type RowSink interface {
	WriteRow(row ir.Row) error
}

// RunStats summarizes one run.
type RunStats struct {
	RunID string `json:"run_id"`

	// Documents counts documents read from the stream.
	Documents int `json:"documents"`

	// Matched counts documents that passed the resource and where filters.
	Matched int `json:"matched"`

	Rows     int `json:"rows"`
	Warnings int `json:"warnings"`
}

// Run streams every row of docs into sink and reports what happened. It
// stops at the first error, from extraction or from the sink; the stats
// reflect the work done up to that point.
func Run(ctx context.Context, docs iter.Seq2[any, error], view *compiler.CompiledView, sink RowSink, opts ...Option) (RunStats, error) {
	cfg := newRunConfig(opts)
	counter := NewCountingDiagnostics(cfg.diag)
	cfg.diag = counter.Report

	stats := RunStats{RunID: cfg.ids.Generate()}
	logger := cfg.logger.With("run_id", stats.RunID, "view", view.Name)
	logger.Debug("run started", "resource", view.Resource)

	var runErr error
	for row, err := range process(ctx, docs, view, cfg, &stats) {
		if err != nil {
			runErr = err
			break
		}
		if err := sink.WriteRow(row); err != nil {
			runErr = &RuntimeError{Code: ErrCodeSink, Message: "writing row failed", Document: stats.Documents, Err: err}
			break
		}
	}
	stats.Warnings = counter.Total()

	if runErr != nil {
		logger.Debug("run failed", "error", runErr, "documents", stats.Documents, "rows", stats.Rows)
		return stats, runErr
	}
	logger.Debug("run finished",
		"documents", stats.Documents,
		"matched", stats.Matched,
		"rows", stats.Rows,
		"warnings", stats.Warnings)
	return stats, nil
}
