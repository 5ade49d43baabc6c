package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/fhirflat/internal/ir"
	"github.com/roach88/fhirflat/internal/tableir"
	"github.com/roach88/fhirflat/internal/tablesql"
)

// WriteMode says what BeginTable does with an existing table.
type WriteMode int

const (
	// Append creates the table if missing and adds rows to it. An existing
	// table must have exactly the view's columns.
	Append WriteMode = iota

	// Replace drops any existing table and creates it afresh.
	Replace
)

// RunRecord identifies the run a TableWriter commits.
type RunRecord struct {
	RunID    string
	ViewName string
	ViewHash string
}

// TableWriter writes one run's rows inside a single transaction. It
// implements engine.RowSink. Call Commit or Rollback exactly once.
type TableWriter struct {
	ctx     context.Context
	tx      *sql.Tx
	table   string
	columns []string
	insert  *sql.Stmt
	seq     int64
	rows    int64
	done    bool
}

// BeginTable starts a run writing to table with the given columns, every
// one typed TEXT.
func (s *Store) BeginTable(ctx context.Context, table string, columns []string, mode WriteMode) (*TableWriter, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin table %q: %w", table, err)
	}
	w := &TableWriter{ctx: ctx, tx: tx, table: table, columns: slices.Clone(columns)}
	if err := w.prepare(mode); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("begin table %q: %w", table, err)
	}
	return w, nil
}

func (w *TableWriter) prepare(mode WriteMode) error {
	if mode == Replace {
		if err := w.exec(tableir.DropTable{Table: w.table, IfExists: true}); err != nil {
			return err
		}
	}

	existing, err := tableColumns(w.ctx, w.tx, w.table)
	if err != nil {
		return err
	}
	switch {
	case existing == nil:
		create := tableir.CreateTable{Table: w.table, Columns: tableir.TextColumns(w.columns)}
		if err := w.exec(create); err != nil {
			return err
		}
	case !slices.Equal(existing, w.columns):
		return fmt.Errorf("existing table has columns [%s], view has [%s]; use replace",
			strings.Join(existing, ", "), strings.Join(w.columns, ", "))
	}

	// The insert statement is the same for every row; values vary.
	query, _, err := tablesql.Compile(tableir.Insert{
		Table:   w.table,
		Columns: w.columns,
		Values:  make([]any, len(w.columns)),
	})
	if err != nil {
		return err
	}
	if w.insert, err = w.tx.PrepareContext(w.ctx, query); err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}

	if w.seq, err = nextSeq(w.ctx, w.tx); err != nil {
		return err
	}
	return nil
}

func (w *TableWriter) exec(stmt tableir.Statement) error {
	query, params, err := tablesql.Compile(stmt)
	if err != nil {
		return err
	}
	if _, err := w.tx.ExecContext(w.ctx, query, params...); err != nil {
		return fmt.Errorf("%s: %w", query, err)
	}
	return nil
}

// WriteRow inserts one row. The row's columns must match the writer's.
func (w *TableWriter) WriteRow(row ir.Row) error {
	if w.done {
		return fmt.Errorf("write row: run already finished")
	}
	if !slices.Equal(row.Columns, w.columns) {
		return fmt.Errorf("write row: columns [%s] do not match table columns [%s]",
			strings.Join(row.Columns, ", "), strings.Join(w.columns, ", "))
	}
	params, err := rowParams(row)
	if err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	if _, err := w.insert.ExecContext(w.ctx, params...); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	w.rows++
	return nil
}

// Rows returns the number of rows written so far.
func (w *TableWriter) Rows() int64 {
	return w.rows
}

// Commit records the run in fhirflat_runs and commits every row written.
func (w *TableWriter) Commit(run RunRecord) error {
	if w.done {
		return fmt.Errorf("commit: run already finished")
	}
	w.done = true
	defer w.insert.Close()

	_, err := w.tx.ExecContext(w.ctx, `
		INSERT INTO fhirflat_runs
		(run_id, view_name, view_hash, table_name, row_count, started_seq, engine_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.RunID,
		run.ViewName,
		run.ViewHash,
		w.table,
		w.rows,
		w.seq,
		ir.EngineVersion,
	)
	if err != nil {
		w.tx.Rollback()
		return fmt.Errorf("commit: record run: %w", err)
	}
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards the table changes and every row written. It is a
// no-op after Commit.
func (w *TableWriter) Rollback() error {
	if w.done {
		return nil
	}
	w.done = true
	w.insert.Close()
	return w.tx.Rollback()
}

// tableColumns returns the column names of table in declaration order, or
// nil when the table does not exist.
func tableColumns(ctx context.Context, tx *sql.Tx, table string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, "SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, fmt.Errorf("inspect table: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("inspect table: %w", err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inspect table: %w", err)
	}
	return cols, nil
}

// nextSeq allocates the next run sequence number. Called inside the run's
// transaction, which holds the database's single write lock.
func nextSeq(ctx context.Context, tx *sql.Tx) (int64, error) {
	var seq int64
	err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(started_seq), 0) + 1 FROM fhirflat_runs").Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	return seq, nil
}
