// Package store is the relational sink: it writes flattened rows into a
// SQLite table and records each run in fhirflat_runs.
//
// # Atomicity
//
// A TableWriter holds one transaction for the whole run. Creating or
// replacing the output table, every row insert and the run record are
// committed together; on any error the caller rolls back and the database
// is left as it was.
//
// # Logical ordering
//
//   - Runs are ordered by started_seq, a logical counter allocated inside
//     the run's transaction, never by wall-clock time
//   - Output rows are read back in insertion order (rowid)
//
// # Connection settings
//
// Every database is opened in WAL journal mode with synchronous=NORMAL, a
// five second busy timeout and foreign keys enforced. The pool is capped at
// a single connection.
//
// Statements against output tables are described with package tableir and
// compiled by package tablesql, so identifiers are always quoted and values
// always bound as parameters.
package store
