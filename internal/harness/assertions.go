package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/roach88/fhirflat/internal/ir"
)

var dumper = spew.ConfigState{
	Indent:                  "  ",
	SortKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// CompareRows compares expected and actual rows without regard to order.
// An expected row may leave out a declared column to mean null; every other
// field, null or not, must match exactly. It returns an empty diagnostic
// when the rows match.
func CompareRows(columns []string, expected, actual []map[string]any) (string, error) {
	want, err := canonicalRows(withDeclaredColumns(columns, expected))
	if err != nil {
		return "", fmt.Errorf("expected rows: %w", err)
	}
	got, err := canonicalRows(actual)
	if err != nil {
		return "", fmt.Errorf("actual rows: %w", err)
	}

	if len(want) != len(got) {
		return fmt.Sprintf("expected %d rows, got %d\nactual rows:\n%s",
			len(want), len(got), dumper.Sdump(actual)), nil
	}

	var mismatches []string
	for i := range want {
		if want[i] != got[i] {
			mismatches = append(mismatches, fmt.Sprintf("  expected %s\n  got      %s", want[i], got[i]))
		}
	}
	if len(mismatches) == 0 {
		return "", nil
	}
	return fmt.Sprintf("%d of %d rows differ (sorted canonical order):\n%s\nactual rows:\n%s",
		len(mismatches), len(want), strings.Join(mismatches, "\n"), dumper.Sdump(actual)), nil
}

// withDeclaredColumns returns copies of rows in which every declared column
// is present, absent ones set to null.
func withDeclaredColumns(columns []string, rows []map[string]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		filled := make(map[string]any, len(columns)+len(row))
		for _, c := range columns {
			filled[c] = nil
		}
		for k, v := range row {
			filled[k] = v
		}
		out[i] = filled
	}
	return out
}

// canonicalRows renders each row as canonical JSON and sorts the result.
func canonicalRows(rows []map[string]any) ([]string, error) {
	out := make([]string, len(rows))
	for i, row := range rows {
		b, err := ir.MarshalCanonical(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = string(b)
	}
	slices.Sort(out)
	return out, nil
}

// CompareColumns compares column names in order. It returns an empty
// diagnostic when they match.
func CompareColumns(expected, actual []string) string {
	if slices.Equal(expected, actual) {
		return ""
	}
	return fmt.Sprintf("expected columns [%s], got [%s]",
		strings.Join(expected, ", "), strings.Join(actual, ", "))
}
