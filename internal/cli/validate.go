package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fhirflat/internal/compiler"
	"github.com/roach88/fhirflat/internal/ir"
)

// ValidationError is one problem found in a view definition.
type ValidationError struct {
	Code    string `json:"code"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Hash   string            `json:"hash,omitempty"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var config string

	cmd := &cobra.Command{
		Use:   "validate --config <view>",
		Short: "Validate a view definition",
		Long: `Validate a view definition and report every problem found, not just
the first. Expressions are compiled with the view's dialect.

Exit codes:
  0 - The view is valid
  1 - The view has errors
  2 - The file could not be read or decoded`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, config, cmd)
		},
	}

	cmd.Flags().StringVarP(&config, "config", "c", "", "view definition (.json, .yaml or .cue)")

	return cmd
}

func runValidate(opts *RootOptions, config string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if config == "" {
		return NewExitError(ExitCommandError, "--config is required")
	}

	def, err := compiler.LoadFile(config)
	if err != nil {
		_ = formatter.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load view definition", err)
	}
	formatter.VerboseLog("Loaded %s (%d top-level select nodes)", config, len(def.Select))

	errs := compiler.Validate(def)
	if len(errs) > 0 {
		return outputValidationErrors(formatter, toValidationErrors(errs))
	}

	hash, err := ir.ViewHash(def)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to hash view definition", err)
	}
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Hash: hash})
	}
	return formatter.Success(fmt.Sprintf("✓ %s is valid (hash %s)", config, hash))
}

func toValidationErrors(errs []error) []ValidationError {
	out := make([]ValidationError, 0, len(errs))
	for _, err := range errs {
		var ce *compiler.ConfigError
		var ee *compiler.ExpressionError
		switch {
		case errors.As(err, &ce):
			out = append(out, ValidationError{Code: ce.Code, Path: ce.Path, Message: ce.Message})
		case errors.As(err, &ee):
			out = append(out, ValidationError{Code: ErrCodeExpression, Path: ee.Path, Message: ee.Error()})
		default:
			out = append(out, ValidationError{Code: ErrCodeGeneric, Message: err.Error()})
		}
	}
	return out
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Path != "" {
			fmt.Fprintf(formatter.Writer, "%s\n", err.Path)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
