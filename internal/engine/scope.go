package engine

import (
	"github.com/roach88/fhirflat/internal/compiler"
	"github.com/roach88/fhirflat/internal/ir"
)

// Scope is one link of a variable binding chain. A Scope is immutable: With
// returns a child and leaves the receiver untouched, so bindings made in one
// branch of the tree are invisible to its siblings.
//
// A nil *Scope is an empty scope.
type Scope struct {
	parent *Scope
	name   string
	value  any
}

// NewRootScope returns a scope binding the view's constants in order.
func NewRootScope(constants ir.Constants) *Scope {
	var s *Scope
	for _, c := range constants {
		s = s.With(c.Name, c.Value)
	}
	return s
}

// newDocumentScope binds %resource and %rootResource to doc on top of base.
func newDocumentScope(base *Scope, doc any) *Scope {
	return base.With(compiler.VarResource, doc).With(compiler.VarRootResource, doc)
}

// With returns a child scope binding name to value. The binding shadows any
// binding of the same name further up the chain.
func (s *Scope) With(name string, value any) *Scope {
	return &Scope{parent: s, name: name, value: value}
}

// Lookup returns the innermost binding of name. It implements expr.Env.
func (s *Scope) Lookup(name string) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.name == name {
			return cur.value, true
		}
	}
	return nil, false
}

// bindings returns the visible bindings, innermost winning.
func (s *Scope) bindings() map[string]any {
	out := make(map[string]any)
	for cur := s; cur != nil; cur = cur.parent {
		if _, shadowed := out[cur.name]; !shadowed {
			out[cur.name] = cur.value
		}
	}
	return out
}
