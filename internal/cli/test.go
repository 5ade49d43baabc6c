package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/fhirflat/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // suite file filter (glob pattern)
}

// TestSummary holds the overall test result.
type TestSummary struct {
	Suites  []*harness.SuiteResult `json:"suites"`
	Passed  int                    `json:"passed"`
	Failed  int                    `json:"failed"`
	Skipped int                    `json:"skipped"`
	Total   int                    `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <suites-dir>",
		Short: "Run conformance suites",
		Long: `Run conformance suites against the view engine.

Each suite file (.json, .yaml or .yml) lists resources and tests; a test
runs a view over the resources and compares the rows with the expected
rows in any order.

Exit codes:
  0 - All tests passed
  1 - One or more tests failed
  2 - Command error (invalid paths, unreadable suites, etc.)

Examples:
  fhirflat test ./suites
  fhirflat test ./suites --filter "fn_*"
  fhirflat test ./suites --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter suite files by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, suitesDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(suitesDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("suites directory not found: %s", suitesDir))
	}

	suites, err := harness.LoadSuites(suitesDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load suites", err)
	}

	logger := opts.logger(cmd.ErrOrStderr())
	summary := TestSummary{Suites: make([]*harness.SuiteResult, 0, len(suites))}
	for _, s := range suites {
		result := harness.Run(cmd.Context(), s, harness.WithLogger(logger))
		summary.Suites = append(summary.Suites, result)
		summary.Passed += result.Passed
		summary.Failed += result.Failed
		summary.Skipped += result.Skipped
		summary.Total += len(result.Results)

		if opts.Format != "json" {
			outputSuiteText(cmd, result, opts.Verbose)
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, summary)
	}
	return outputTestText(cmd, summary)
}

func outputSuiteText(cmd *cobra.Command, result *harness.SuiteResult, verbose bool) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s\n", result.Title)
	for _, tr := range result.Results {
		switch {
		case tr.Skipped:
			fmt.Fprintf(w, "  - %s (skipped)\n", tr.Title)
		case tr.Pass:
			fmt.Fprintf(w, "  ✓ %s\n", tr.Title)
			if verbose && tr.Error != "" {
				fmt.Fprintf(w, "    expected error: %s\n", tr.Error)
			}
		default:
			fmt.Fprintf(w, "  ✗ %s\n", tr.Title)
			if tr.Error != "" {
				fmt.Fprintf(w, "    error: %s\n", tr.Error)
			}
			if tr.Diagnostic != "" {
				fmt.Fprintf(w, "    %s\n", tr.Diagnostic)
			}
		}
	}
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(cmd *cobra.Command, summary TestSummary) error {
	status := "ok"
	if summary.Failed > 0 {
		status = "error"
	}

	response := CLIResponse{
		Status: status,
		Data:   summary,
	}

	if summary.Failed > 0 {
		response.Error = &CLIError{
			Code:    ErrCodeTestFailed,
			Message: fmt.Sprintf("%d test(s) failed", summary.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if summary.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d test(s) failed", summary.Failed))
	}
	return nil
}

// outputTestText outputs the test summary as text.
func outputTestText(cmd *cobra.Command, summary TestSummary) error {
	w := cmd.OutOrStdout()

	if summary.Total == 0 {
		fmt.Fprintln(w, "No tests found.")
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d skipped, %d total\n",
		summary.Passed, summary.Failed, summary.Skipped, summary.Total)

	if summary.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d test(s) failed", summary.Failed))
	}

	fmt.Fprintln(w, "✓ All tests passed")
	return nil
}
