// Package ir provides the shared data model for fhirflat.
//
// This package contains the persisted view definition format, the row and
// column types produced by the engine, and the canonical JSON encoding used
// for hashing and order-independent comparison. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Document values are plain decoded JSON (map[string]any, []any,
//     string, bool, json.Number, nil). Numbers stay json.Number so integer
//     and decimal text survives a round trip untouched.
//   - View definitions are owned by the caller; compilation works on a Clone.
//   - All JSON tags use the camelCase names of the view definition format.
package ir
