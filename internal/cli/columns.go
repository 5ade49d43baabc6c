package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/fhirflat/internal/engine"
	"github.com/roach88/fhirflat/internal/ir"
)

// ColumnsOptions holds flags for the columns command.
type ColumnsOptions struct {
	*RootOptions
	Config string
}

// ColumnsResult is the JSON payload of the columns command.
type ColumnsResult struct {
	View     string      `json:"view,omitempty"`
	Resource string      `json:"resource"`
	Columns  []ir.Column `json:"columns"`
}

// NewColumnsCommand creates the columns command.
func NewColumnsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ColumnsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "columns --config <view>",
		Short: "List the columns a view produces",
		Long: `List the output columns of a view definition in order, without
reading any resources.

Examples:
  fhirflat columns --config patients.json
  fhirflat columns --config patients.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runColumns(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "view definition (.json, .yaml or .cue)")

	return cmd
}

func runColumns(opts *ColumnsOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	view, err := loadView(opts.Config)
	if err != nil {
		_ = formatter.Error(errorCode(err), err.Error(), nil)
		return err
	}

	result := ColumnsResult{View: view.Name, Resource: view.Resource, Columns: engine.Columns(view)}
	if opts.Format == "json" {
		return formatter.Success(result)
	}

	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	for _, c := range result.Columns {
		kind := "scalar"
		if c.Multiple {
			kind = "array"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Name, kind, c.Path)
	}
	return tw.Flush()
}
