package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/fhirflat/internal/compiler"
	"github.com/roach88/fhirflat/internal/engine"
	"github.com/roach88/fhirflat/internal/ir"
)

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	compileOpts []compiler.Option
	logger      *slog.Logger
}

// WithCompilerOptions passes options to compiler.Compile for every test.
func WithCompilerOptions(opts ...compiler.Option) Option {
	return func(c *runConfig) {
		c.compileOpts = append(c.compileOpts, opts...)
	}
}

// WithLogger sets the logger for per-test debug output. The default
// discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = l
	}
}

// Run executes every test of suite in order. A failure, error or panic in
// one test is recorded on that test only.
func Run(ctx context.Context, suite *Suite, opts ...Option) *SuiteResult {
	cfg := &runConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	}

	result := &SuiteResult{Title: suite.Title, Path: suite.Path, Results: []TestResult{}}
	docs := suite.Docs()
	for _, tc := range suite.Tests {
		if tc.Skip {
			result.add(TestResult{Title: tc.Title, Pass: true, Skipped: true})
			continue
		}
		tr := runTest(ctx, docs, tc, cfg)
		cfg.logger.Debug("test finished", "suite", suite.Title, "test", tc.Title, "pass", tr.Pass)
		result.add(tr)
	}
	return result
}

func runTest(ctx context.Context, docs []any, tc TestCase, cfg *runConfig) (tr TestResult) {
	tr.Title = tc.Title
	defer func() {
		if r := recover(); r != nil {
			tr.Pass = false
			tr.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	rows, columns, err := execute(ctx, docs, tc, cfg)
	if err != nil {
		tr.Error = err.Error()
		tr.Pass = tc.ExpectError
		if !tr.Pass {
			tr.Diagnostic = "unexpected error"
		}
		return tr
	}
	tr.Rows = rows

	if tc.ExpectError {
		tr.Diagnostic = fmt.Sprintf("expected an error, got %d rows", len(rows))
		return tr
	}

	var diagnostics []string
	if tc.ExpectColumns != nil {
		if d := CompareColumns(tc.ExpectColumns, columns); d != "" {
			diagnostics = append(diagnostics, d)
		}
	}
	if tc.Expect != nil {
		d, err := CompareRows(columns, tc.Expect, rows)
		if err != nil {
			tr.Error = err.Error()
			return tr
		}
		if d != "" {
			diagnostics = append(diagnostics, d)
		}
	}

	tr.Pass = len(diagnostics) == 0
	for i, d := range diagnostics {
		if i > 0 {
			tr.Diagnostic += "\n"
		}
		tr.Diagnostic += d
	}
	return tr
}

// execute compiles the test's view and flattens docs through it.
func execute(ctx context.Context, docs []any, tc TestCase, cfg *runConfig) ([]map[string]any, []string, error) {
	def, err := compiler.LoadJSON(tc.View)
	if err != nil {
		return nil, nil, err
	}
	view, err := compiler.Compile(def, cfg.compileOpts...)
	if err != nil {
		return nil, nil, err
	}

	source := func(yield func(any, error) bool) {
		for _, d := range docs {
			if !yield(ir.CloneValue(d), nil) {
				return
			}
		}
	}

	rows := []map[string]any{}
	for row, err := range engine.ProcessResources(ctx, source, view,
		engine.WithLogger(cfg.logger),
		engine.WithDiagnostics(engine.LogDiagnostics(cfg.logger, 10))) {
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, row.Map())
	}
	return rows, ir.ColumnNames(engine.Columns(view)), nil
}
