// Package jsonpath adapts RFC 9535 JSONPath queries to the expr.Compiler
// interface so view definitions can be written without FHIRPath.
//
// A query is rooted at $ (the current node). A query starting with %name is
// applied to the value bound to name instead. Queries without either prefix
// are treated as member paths relative to $ ("name[*].family").
//
// Selected arrays are expanded one level and nulls are dropped, so a column
// over "$.name" sees each name rather than the list.
package jsonpath

import (
	"strings"

	"github.com/theory/jsonpath"

	"github.com/roach88/fhirflat/internal/expr"
)

// Compiler compiles JSONPath queries.
type Compiler struct{}

// New returns a JSONPath compiler.
func New() Compiler {
	return Compiler{}
}

// Compile implements expr.Compiler.
func (Compiler) Compile(query string) (expr.Selector, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, expr.InvalidExpression("query is empty")
	}

	variable, rest := splitVariable(query)
	if variable == "" && query[0] == '%' {
		return nil, expr.InvalidExpression("missing variable name in %q", query)
	}

	path, err := jsonpath.Parse(normalize(rest))
	if err != nil {
		return nil, expr.InvalidExpression("invalid JSONPath %s: %v", query, err)
	}

	return func(node any, env expr.Env) ([]any, error) {
		input := node
		if variable != "" {
			var ok bool
			if env != nil {
				input, ok = env.Lookup(variable)
			}
			if !ok {
				return nil, expr.EvaluationError("undefined variable %%%s", variable)
			}
		}
		return expand(path.Select(input)), nil
	}, nil
}

// splitVariable separates a leading %name from the rest of the query.
func splitVariable(query string) (string, string) {
	if query[0] != '%' {
		return "", query
	}
	end := 1
	for end < len(query) && isNameByte(query[end]) {
		end++
	}
	return query[1:end], query[end:]
}

func isNameByte(b byte) bool {
	return b == '_' || b == '-' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// normalize roots a relative query at $.
func normalize(query string) string {
	switch {
	case query == "":
		return "$"
	case query[0] == '$':
		return query
	case query[0] == '.' || query[0] == '[':
		return "$" + query
	default:
		return "$." + query
	}
}

func expand(nodes []any) []any {
	var out []any
	for _, n := range nodes {
		switch v := n.(type) {
		case nil:
		case []any:
			for _, elem := range v {
				if elem != nil {
					out = append(out, elem)
				}
			}
		default:
			out = append(out, v)
		}
	}
	return out
}
