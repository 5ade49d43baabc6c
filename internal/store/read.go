package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/fhirflat/internal/ir"
	"github.com/roach88/fhirflat/internal/tableir"
	"github.com/roach88/fhirflat/internal/tablesql"
)

// Run is one committed run as recorded in fhirflat_runs.
type Run struct {
	RunID         string `json:"run_id"`
	ViewName      string `json:"view_name"`
	ViewHash      string `json:"view_hash"`
	Table         string `json:"table"`
	RowCount      int64  `json:"row_count"`
	StartedSeq    int64  `json:"started_seq"`
	EngineVersion string `json:"engine_version"`
}

var runColumns = []string{"run_id", "view_name", "view_hash", "table_name", "row_count", "started_seq", "engine_version"}

// ReadRuns returns the runs that wrote table, or every run when table is
// empty. Results are ordered by started_seq.
//
// Returns an empty slice (not nil) if there are no runs.
func (s *Store) ReadRuns(ctx context.Context, table string) ([]Run, error) {
	sel := tableir.Select{Table: "fhirflat_runs", Columns: runColumns, OrderBy: []string{"started_seq"}}
	if table != "" {
		sel.Filter = tableir.Equals{Column: "table_name", Value: table}
	}
	query, params, err := tablesql.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("read runs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.ViewName, &r.ViewHash, &r.Table, &r.RowCount, &r.StartedSeq, &r.EngineVersion); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadTable returns every row of table in insertion order. Values are
// strings, or nil for NULL.
func (s *Store) ReadTable(ctx context.Context, table string, columns []string) ([]ir.Row, error) {
	query, params, err := tablesql.Compile(tableir.Select{Table: table, Columns: columns})
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", table, err)
	}
	defer rows.Close()

	out := []ir.Row{}
	for rows.Next() {
		cells := make([]sql.NullString, len(columns))
		dest := make([]any, len(columns))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %q: %w", table, err)
		}
		values := make([]any, len(columns))
		for i, c := range cells {
			if c.Valid {
				values[i] = c.String
			}
		}
		out = append(out, ir.Row{Columns: columns, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %q: %w", table, err)
	}
	return out, nil
}
