package engine

import (
	"github.com/roach88/fhirflat/internal/compiler"
	"github.com/roach88/fhirflat/internal/ir"
)

// Columns enumerates the view's output columns: every leaf in declared
// order, found by pre-order descent through every composite regardless of
// data. Each call returns a new slice with the same contents.
func Columns(view *compiler.CompiledView) []ir.Column {
	var cols []ir.Column
	collectColumns(view.Root, &cols)
	return cols
}

func collectColumns(n *compiler.Node, cols *[]ir.Column) {
	if n == nil {
		return
	}
	if n.Leaf {
		*cols = append(*cols, n.Column)
		return
	}
	for _, child := range n.Children {
		collectColumns(child, cols)
	}
}
