// Package expr defines the boundary between the view engine and an
// expression language.
//
// The engine never parses expressions itself. A Compiler turns an
// expression string into a Selector once, at view compile time; the
// Selector is then evaluated many times against documents. Dialects live in
// subpackages (fhirpath, jsonpath) and are selected by the view compiler.
package expr

import (
	"errors"
	"fmt"
)

// ErrInvalidExpression indicates a malformed expression.
var ErrInvalidExpression = errors.New("invalid expression")

// ErrEvaluation indicates an expression failed while being evaluated.
var ErrEvaluation = errors.New("evaluation failed")

// Env resolves variable references (%name) during evaluation.
type Env interface {
	Lookup(name string) (any, bool)
}

// Selector evaluates a compiled expression against a document node and an
// environment, returning an ordered list of values. Selectors are
// deterministic and side-effect free.
type Selector func(node any, env Env) ([]any, error)

// Compiler compiles expression strings into selectors.
type Compiler interface {
	Compile(expression string) (Selector, error)
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(expression string) (Selector, error)

// Compile implements Compiler.
func (f CompilerFunc) Compile(expression string) (Selector, error) {
	return f(expression)
}

// MapEnv is an Env backed by a map.
type MapEnv map[string]any

// Lookup implements Env.
func (m MapEnv) Lookup(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// Truthy reports whether a predicate result passes. A single boolean is
// taken at face value; a single non-boolean value counts as true; an empty
// result is false. More than one value passes only if none of them is
// false or null.
func Truthy(values []any) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		switch b := v.(type) {
		case nil:
			return false
		case bool:
			if !b {
				return false
			}
		}
	}
	return true
}

// PredicateRule decides whether the result of a where predicate passes.
type PredicateRule func(values []any) (bool, error)

// PredicateDialect is implemented by compilers whose where predicates follow
// their own boolean rules.
type PredicateDialect interface {
	Passes(values []any) (bool, error)
}

// PredicateRuleFor returns the rule predicates compiled by c are judged by.
// Compilers that are not a PredicateDialect use Truthy.
func PredicateRuleFor(c Compiler) PredicateRule {
	if d, ok := c.(PredicateDialect); ok {
		return d.Passes
	}
	return func(values []any) (bool, error) {
		return Truthy(values), nil
	}
}

// InvalidExpression builds an error wrapping ErrInvalidExpression.
func InvalidExpression(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidExpression, fmt.Sprintf(format, args...))
}

// EvaluationError builds an error wrapping ErrEvaluation.
func EvaluationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrEvaluation, fmt.Sprintf(format, args...))
}
