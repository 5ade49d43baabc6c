// Package tableir describes the statements the relational sink issues
// against an output table, independent of any SQL dialect.
//
// The relational sink never builds SQL strings itself. It describes what it
// wants (create the table, drop it, insert a row, read rows back) as a
// Statement and hands it to a backend compiler (package tablesql for
// SQLite). This keeps identifier quoting and parameter binding in one
// place.
//
// # Statements
//
//   - CreateTable: a table with TEXT columns in view column order
//   - DropTable: remove a table before a replacing run
//   - Insert: one row, values always bound as parameters
//   - Select: read rows back in insertion order, optionally filtered
//
// # Rules
//
//   - Identifiers are never empty and never contain NUL
//   - Column names within a statement are unique
//   - An Insert carries exactly one value per column
//   - Values are nil, string, int64 or bool
//
// Validate checks these rules before compilation.
package tableir
