// Package testutil holds helpers shared by package tests: decoded
// documents, in-memory document streams, compiled views and row
// collection.
package testutil

import (
	"iter"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/fhirflat/internal/compiler"
	"github.com/roach88/fhirflat/internal/ir"
)

// Decode decodes a JSON document the way the ndjson reader does, with
// numbers as json.Number.
func Decode(t testing.TB, raw string) any {
	t.Helper()
	var doc any
	require.NoError(t, ir.DecodeJSON([]byte(raw), &doc))
	return doc
}

// DecodeAll decodes each raw document.
func DecodeAll(t testing.TB, raw ...string) []any {
	t.Helper()
	docs := make([]any, len(raw))
	for i, r := range raw {
		docs[i] = Decode(t, r)
	}
	return docs
}

// Docs returns a document stream over docs.
func Docs(docs ...any) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for _, d := range docs {
			if !yield(d, nil) {
				return
			}
		}
	}
}

// CountingDocs is a document stream that records how many documents were
// pulled from it.
type CountingDocs struct {
	docs []any
	Read int
}

// NewCountingDocs returns a counting stream over docs.
func NewCountingDocs(docs ...any) *CountingDocs {
	return &CountingDocs{docs: docs}
}

// Seq returns the stream.
func (c *CountingDocs) Seq() iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for _, d := range c.docs {
			c.Read++
			if !yield(d, nil) {
				return
			}
		}
	}
}

// FailingDocs yields docs and then err.
func FailingDocs(err error, docs ...any) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for _, d := range docs {
			if !yield(d, nil) {
				return
			}
		}
		yield(nil, err)
	}
}

// CompileView decodes a JSON view definition and compiles it.
func CompileView(t testing.TB, raw string, opts ...compiler.Option) *compiler.CompiledView {
	t.Helper()
	def, err := compiler.LoadJSON([]byte(raw))
	require.NoError(t, err)
	view, err := compiler.Compile(def, opts...)
	require.NoError(t, err)
	return view
}

// Collect drains a row sequence, stopping at the first error.
func Collect(rows iter.Seq2[ir.Row, error]) ([]ir.Row, error) {
	var out []ir.Row
	for row, err := range rows {
		if err != nil {
			return out, err
		}
		out = append(out, row)
	}
	return out, nil
}

// RowMaps converts rows to maps for comparison with expected literals.
func RowMaps(rows []ir.Row) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = r.Map()
	}
	return out
}
