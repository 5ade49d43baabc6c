package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/fhirflat/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// writeRun writes rows to table in one committed run.
func writeRun(t *testing.T, s *Store, table, runID string, mode WriteMode, columns []string, rows ...[]any) {
	t.Helper()
	ctx := context.Background()
	w, err := s.BeginTable(ctx, table, columns, mode)
	if err != nil {
		t.Fatalf("BeginTable() failed: %v", err)
	}
	for _, values := range rows {
		if err := w.WriteRow(ir.Row{Columns: columns, Values: values}); err != nil {
			w.Rollback()
			t.Fatalf("WriteRow() failed: %v", err)
		}
	}
	if err := w.Commit(RunRecord{RunID: runID, ViewName: "patients", ViewHash: "hash-" + runID}); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
}
