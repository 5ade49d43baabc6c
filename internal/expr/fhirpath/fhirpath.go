// Package fhirpath implements the subset of FHIRPath used by view
// definitions: path navigation over decoded JSON, filtering, boolean and
// comparison operators, variables, and the view-specific functions
// getResourceKey() and getReferenceKey().
//
// Expressions are parsed once by Compile and evaluated many times by the
// returned selector. Evaluation starts with the document as both the input
// collection and $this.
package fhirpath

import (
	"github.com/roach88/fhirflat/internal/expr"
)

// Compiler compiles FHIRPath expressions. The zero value is ready to use.
type Compiler struct{}

// New returns a FHIRPath compiler.
func New() Compiler {
	return Compiler{}
}

// Compile implements expr.Compiler.
func (Compiler) Compile(expression string) (expr.Selector, error) {
	root, err := parse(expression)
	if err != nil {
		return nil, err
	}
	if err := check(root); err != nil {
		return nil, err
	}

	return func(doc any, env expr.Env) ([]any, error) {
		ctx := evalContext{input: flatten(doc), this: doc, env: env}
		return evaluate(root, ctx)
	}, nil
}

// Passes implements expr.PredicateDialect. A predicate passes only when it
// yields exactly one true. Empty, false and non-boolean results fail; more
// than one item is an error.
func (Compiler) Passes(values []any) (bool, error) {
	if len(values) > 1 {
		return false, expr.EvaluationError("where predicate must yield a single boolean, got %d items", len(values))
	}
	if len(values) == 0 {
		return false, nil
	}
	b, ok := values[0].(bool)
	return ok && b, nil
}

// Evaluate is a convenience for one-off evaluation.
func Evaluate(expression string, doc any, env expr.Env) ([]any, error) {
	sel, err := New().Compile(expression)
	if err != nil {
		return nil, err
	}
	return sel(doc, env)
}

// check validates function names and argument counts so that typos fail at
// compile time rather than on the first matching document.
func check(n node) error {
	switch current := n.(type) {
	case memberNode:
		if current.target != nil {
			return check(current.target)
		}
	case functionNode:
		bounds, ok := arity[current.name]
		if !ok {
			return expr.InvalidExpression("unknown function %s()", current.name)
		}
		if len(current.args) < bounds[0] || len(current.args) > bounds[1] {
			return expr.InvalidExpression("%s() takes %d to %d arguments, got %d",
				current.name, bounds[0], bounds[1], len(current.args))
		}
		if current.name == "ofType" {
			if _, err := typeArgument(current); err != nil {
				return expr.InvalidExpression("ofType() expects a type name")
			}
		}
		if current.target != nil {
			if err := check(current.target); err != nil {
				return err
			}
		}
		for _, arg := range current.args {
			if err := check(arg); err != nil {
				return err
			}
		}
	case indexerNode:
		if err := check(current.target); err != nil {
			return err
		}
		return check(current.index)
	case unaryNode:
		return check(current.operand)
	case binaryNode:
		if err := check(current.left); err != nil {
			return err
		}
		return check(current.right)
	}
	return nil
}
