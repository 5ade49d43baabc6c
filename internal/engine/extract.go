package engine

import (
	"fmt"
	"iter"
	"slices"

	"github.com/roach88/fhirflat/internal/compiler"
	"github.com/roach88/fhirflat/internal/expr"
	"github.com/roach88/fhirflat/internal/ir"
)

// partial is a partial row: the columns one branch of the tree bound.
type partial map[string]any

// Extract yields the rows node produces for doc. node is normally a view's
// Root; scope holds the bindings visible to it (see NewRootScope). Rows share
// node.Columns as their column slice, which must not be modified.
//
// Child contributions are materialized per candidate; the final cartesian
// product is yielded lazily. An evaluation error is yielded once and ends the
// sequence. diag may be nil.
func Extract(doc any, node *compiler.Node, scope *Scope, diag Diagnostics) iter.Seq2[ir.Row, error] {
	return func(yield func(ir.Row, error) bool) {
		x := extractor{diag: diag}
		_, err := x.walk(doc, node, scope, func(p partial) bool {
			return yield(ir.NewRow(node.Columns, p), nil)
		})
		if err != nil {
			yield(ir.Row{}, err)
		}
	}
}

type extractor struct {
	diag Diagnostics
}

func (x *extractor) warn(code WarningCode, path, expression string, count int) {
	if x.diag != nil {
		x.diag(Warning{Code: code, Path: path, Expr: expression, Count: count})
	}
}

// walk emits every partial row n produces for doc. It returns false when
// emit asked to stop.
func (x *extractor) walk(doc any, n *compiler.Node, scope *Scope, emit func(partial) bool) (bool, error) {
	if n.Leaf {
		p, err := x.leaf(doc, n, scope)
		if err != nil {
			return false, err
		}
		return emit(p), nil
	}

	scopes, err := x.bindVars(doc, n, scope)
	if err != nil {
		return false, err
	}

	for _, s := range scopes {
		candidates, err := x.candidates(doc, n, s)
		if err != nil {
			return false, err
		}

		if len(candidates) == 0 && n.Relationship == compiler.RelForEachOrNull {
			if !emit(nullPartial(n.Columns)) {
				return false, nil
			}
			continue
		}

		for _, candidate := range candidates {
			contributions := make([][]partial, len(n.Children))
			for i, child := range n.Children {
				rows, err := x.collect(candidate, child, s)
				if err != nil {
					return false, err
				}
				contributions[i] = rows
			}
			acc := make([]partial, 0, len(contributions))
			if !product(contributions, acc, emit) {
				return false, nil
			}
		}
	}
	return true, nil
}

func (x *extractor) collect(doc any, n *compiler.Node, scope *Scope) ([]partial, error) {
	var rows []partial
	_, err := x.walk(doc, n, scope, func(p partial) bool {
		rows = append(rows, p)
		return true
	})
	return rows, err
}

func (x *extractor) leaf(doc any, n *compiler.Node, scope *Scope) (partial, error) {
	values, err := n.Selector(doc, scope)
	if err != nil {
		return nil, NewSelectorError(n.Path, n.Column.Path, err)
	}

	var v any
	switch n.Policy {
	case ir.WhenMultipleArray:
		list := slices.Clone(values)
		if list == nil {
			list = []any{}
		}
		v = list
	case ir.WhenMultipleError:
		if len(values) > 1 {
			x.warn(WarnCardinality, n.Path, n.Column.Path, len(values))
		}
		fallthrough
	default:
		if len(values) > 0 {
			v = values[0]
		}
	}
	return partial{n.Column.Name: v}, nil
}

// bindVars threads the node's vars through scope. Each binding sees the
// earlier ones; an unnest binding forks one scope per value.
func (x *extractor) bindVars(doc any, n *compiler.Node, scope *Scope) ([]*Scope, error) {
	scopes := []*Scope{scope}
	for i, v := range n.Vars {
		path := fmt.Sprintf("%s.vars[%d]", n.Path, i)
		next := make([]*Scope, 0, len(scopes))
		for _, s := range scopes {
			values, err := v.Selector(doc, s)
			if err != nil {
				return nil, NewSelectorError(path, v.Expr, err)
			}
			switch v.Policy {
			case ir.WhenMultipleArray:
				next = append(next, s.With(v.Name, slices.Clone(values)))
			case ir.WhenMultipleUnnest:
				if len(values) == 0 {
					next = append(next, s.With(v.Name, nil))
				}
				for _, value := range values {
					next = append(next, s.With(v.Name, value))
				}
			default:
				if len(values) > 1 {
					x.warn(WarnCardinality, path, v.Expr, len(values))
				}
				var first any
				if len(values) > 0 {
					first = values[0]
				}
				next = append(next, s.With(v.Name, first))
			}
		}
		scopes = next
	}
	return scopes, nil
}

// candidates evaluates the relationship and applies the where predicates.
// Without a relationship the document itself is the only candidate.
func (x *extractor) candidates(doc any, n *compiler.Node, scope *Scope) ([]any, error) {
	candidates := []any{doc}
	if n.Relationship != compiler.RelNone {
		var err error
		candidates, err = n.Relation(doc, scope)
		if err != nil {
			return nil, NewSelectorError(n.Path+"."+n.Relationship.String(), n.RelationExpr, err)
		}
	}

	if len(n.Where) > 0 {
		kept := candidates[:0:0]
		for _, c := range candidates {
			ok, err := matchesWhere(c, n.Where, scope, n.Path+".where")
			if err != nil {
				return nil, err
			}
			if ok {
				kept = append(kept, c)
			}
		}
		candidates = kept
	}

	if n.Relationship == compiler.RelFrom && len(candidates) > 1 {
		x.warn(WarnAmbiguousFrom, n.Path, n.RelationExpr, len(candidates))
		candidates = candidates[:1]
	}
	return candidates, nil
}

// matchesWhere reports whether candidate satisfies every predicate.
// Predicates see the candidate as their focus and the enclosing scope.
func matchesWhere(candidate any, preds []compiler.Predicate, scope *Scope, path string) (bool, error) {
	for i, p := range preds {
		values, err := p.Selector(candidate, scope)
		if err != nil {
			return false, NewSelectorError(fmt.Sprintf("%s[%d]", path, i), p.Expr, err)
		}
		pass := expr.Truthy(values)
		if p.Passes != nil {
			if pass, err = p.Passes(values); err != nil {
				return false, NewSelectorError(fmt.Sprintf("%s[%d]", path, i), p.Expr, err)
			}
		}
		if !pass {
			return false, nil
		}
	}
	return true, nil
}

func nullPartial(columns []string) partial {
	p := make(partial, len(columns))
	for _, c := range columns {
		p[c] = nil
	}
	return p
}

// product emits the merge of every combination of one partial row per
// contribution, earliest contribution varying slowest.
func product(contributions [][]partial, acc []partial, emit func(partial) bool) bool {
	if len(acc) == len(contributions) {
		return emit(merge(acc))
	}
	for _, p := range contributions[len(acc)] {
		if !product(contributions, append(acc, p), emit) {
			return false
		}
	}
	return true
}

func merge(parts []partial) partial {
	size := 0
	for _, p := range parts {
		size += len(p)
	}
	out := make(partial, size)
	for _, p := range parts {
		for k, v := range p {
			out[k] = v
		}
	}
	return out
}
