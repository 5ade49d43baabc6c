// Package compiler turns persisted view definitions into immutable compiled
// views: every expression is compiled once through the injected expression
// compiler, column names are resolved and structural rules are checked.
package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/fhirflat/internal/expr"
	"github.com/roach88/fhirflat/internal/expr/fhirpath"
	"github.com/roach88/fhirflat/internal/expr/jsonpath"
	"github.com/roach88/fhirflat/internal/ir"
)

// Dialect names accepted in ViewDefinition.Dialect.
const (
	DialectFHIRPath = "fhirpath"
	DialectJSONPath = "jsonpath"
)

// Reserved variable names bound by the engine for every document.
const (
	VarResource     = "resource"
	VarRootResource = "rootResource"
)

var dialects = map[string]func() expr.Compiler{
	DialectFHIRPath: func() expr.Compiler { return fhirpath.New() },
	DialectJSONPath: func() expr.Compiler { return jsonpath.New() },
}

// Relationship is how a composite node relates to its sub-documents.
type Relationship int

const (
	// RelNone evaluates the children against the current document.
	RelNone Relationship = iota

	// RelFrom uses at most one sub-document.
	RelFrom

	// RelForEach is an inner join over the sub-documents.
	RelForEach

	// RelForEachOrNull is an outer join: no sub-documents yield one all-null row.
	RelForEachOrNull
)

func (r Relationship) String() string {
	switch r {
	case RelFrom:
		return "from"
	case RelForEach:
		return "forEach"
	case RelForEachOrNull:
		return "forEachOrNull"
	default:
		return "none"
	}
}

// Predicate is a compiled where clause. Passes judges the selector's result
// by the rules of the dialect it was compiled with.
type Predicate struct {
	Expr     string
	Selector expr.Selector
	Passes   expr.PredicateRule
}

// Var is a compiled sequential variable binding.
type Var struct {
	Name     string
	Expr     string
	Policy   ir.WhenMultiple
	Selector expr.Selector
}

// Node is one compiled position of the selection tree.
type Node struct {
	// Path locates the node in the definition, e.g. select[0].select[2].
	Path string

	// Leaf fields.
	Leaf     bool
	Column   ir.Column
	Policy   ir.WhenMultiple
	Selector expr.Selector

	// Composite fields.
	Relationship Relationship
	RelationExpr string
	Relation     expr.Selector
	Where        []Predicate
	Vars         []Var
	Children     []*Node

	// Columns names every leaf at or below this node, in column order.
	Columns []string
}

// CompiledView is the immutable result of Compile.
type CompiledView struct {
	Name     string
	Resource string
	Dialect  string

	// Hash identifies the definition the view was compiled from.
	Hash string

	Constants ir.Constants
	Where     []Predicate

	// Root is a composite without relationship holding the top-level select.
	Root *Node

	definition ir.ViewDefinition
}

// Definition returns a copy of the definition the view was compiled from.
func (v *CompiledView) Definition() ir.ViewDefinition {
	return v.definition.Clone()
}

// Option configures Compile and Validate.
type Option func(*options)

type options struct {
	exprs expr.Compiler
}

// WithExprCompiler overrides the expression compiler selected by the
// definition's dialect.
func WithExprCompiler(c expr.Compiler) Option {
	return func(o *options) {
		o.exprs = c
	}
}

// Compile validates def and compiles every expression in it. The definition
// is deep-copied first; the caller's value is never modified. Compile stops
// at the first problem, in definition order.
func Compile(def ir.ViewDefinition, opts ...Option) (*CompiledView, error) {
	b := newBuilder(def.Clone(), opts)
	view := b.build()
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	return view, nil
}

type builder struct {
	def   ir.ViewDefinition
	exprs expr.Compiler
	errs  []error

	// columns maps a column name to the node path that declared it.
	columns map[string]string
}

func newBuilder(def ir.ViewDefinition, opts []Option) *builder {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &builder{def: def, exprs: o.exprs, columns: make(map[string]string)}
}

func (b *builder) fail(code, path, format string, args ...any) {
	b.errs = append(b.errs, &ConfigError{Code: code, Path: path, Message: fmt.Sprintf(format, args...)})
}

func (b *builder) compileExpr(path, expression string) expr.Selector {
	if b.exprs == nil {
		return nil
	}
	sel, err := b.exprs.Compile(expression)
	if err != nil {
		b.errs = append(b.errs, &ExpressionError{Path: path, Expr: expression, Err: err})
		return nil
	}
	return sel
}

func (b *builder) build() *CompiledView {
	def := b.def

	dialect := strings.ToLower(strings.TrimSpace(def.Dialect))
	if dialect == "" {
		dialect = DialectFHIRPath
	}
	if b.exprs == nil {
		newCompiler, ok := dialects[dialect]
		if !ok {
			b.fail(ErrUnknownDialect, "dialect", "unknown dialect %q, must be %q or %q",
				def.Dialect, DialectFHIRPath, DialectJSONPath)
		} else {
			b.exprs = newCompiler()
		}
	}

	resource := def.ResourceType()
	if strings.TrimSpace(resource) == "" {
		b.fail(ErrMissingResource, "resource", "resource is required")
	}

	b.checkConstants(def.Constants)

	view := &CompiledView{
		Name:       def.Name,
		Resource:   resource,
		Dialect:    dialect,
		Constants:  def.Constants,
		Where:      b.predicates("where", def.Where),
		definition: def,
	}

	if len(def.Select) == 0 {
		b.fail(ErrNodeShape, "select", "view must select at least one column")
	}

	root := &Node{Path: "", Relationship: RelNone}
	for i, child := range def.Select {
		c := b.node(child, fmt.Sprintf("select[%d]", i))
		root.Children = append(root.Children, c)
		root.Columns = append(root.Columns, c.Columns...)
	}
	view.Root = root

	if hash, err := ir.ViewHash(def); err == nil {
		view.Hash = hash
	}
	return view
}

func (b *builder) predicates(path string, clauses []ir.WhereClause) []Predicate {
	if len(clauses) == 0 {
		return nil
	}
	out := make([]Predicate, 0, len(clauses))
	rule := expr.PredicateRuleFor(b.exprs)
	for i, w := range clauses {
		p := fmt.Sprintf("%s[%d]", path, i)
		if strings.TrimSpace(w.Path) == "" {
			b.fail(ErrNodeShape, p, "where clause has no expression")
			continue
		}
		out = append(out, Predicate{Expr: w.Path, Selector: b.compileExpr(p+".path", w.Path), Passes: rule})
	}
	return out
}

func (b *builder) node(n ir.ViewNode, path string) *Node {
	expression := n.Expression()
	leaf := expression != ""
	composite := n.IsComposite()

	if !ir.ValidWhenMultiple(n.WhenMultiple) {
		b.fail(ErrInvalidWhenMultiple, path+".whenMultiple",
			"invalid whenMultiple %q, must be \"error\", \"array\" or \"unnest\"", n.WhenMultiple)
	}

	switch {
	case leaf && composite:
		b.fail(ErrPathAndSelect, path, "node has both a path and select")
		return &Node{Path: path}
	case !leaf && !composite:
		b.fail(ErrNodeShape, path, "node needs either a path or select")
		return &Node{Path: path}
	case leaf:
		return b.leaf(n, path, expression)
	default:
		return b.composite(n, path)
	}
}

func (b *builder) leaf(n ir.ViewNode, path, expression string) *Node {
	if n.From != "" || n.ForEach != "" || n.ForEachOrNull != "" || len(n.Where) > 0 {
		b.fail(ErrRelationshipWithoutSelect, path, "from, forEach, forEachOrNull and where require select")
	}
	if len(n.Vars) > 0 {
		b.fail(ErrInvalidVar, path+".vars", "vars require select")
	}

	name := n.ExplicitName()
	if name == "" {
		derived, ok := deriveName(expression)
		if !ok {
			b.fail(ErrNodeShape, path, "cannot derive a column name from %q, set name", expression)
		}
		name = derived
	}
	if name != "" {
		if prev, dup := b.columns[name]; dup {
			b.fail(ErrDuplicateColumn, path, "duplicate column %q (also declared at %s)", name, prev)
		} else {
			b.columns[name] = path
		}
	}

	policy := n.Policy()
	node := &Node{
		Path:     path,
		Leaf:     true,
		Policy:   policy,
		Selector: b.compileExpr(path+".path", expression),
		Column: ir.Column{
			Name:        name,
			Path:        expression,
			Type:        n.Type,
			Description: n.Description,
			Multiple:    policy == ir.WhenMultipleArray,
		},
	}
	node.Columns = []string{name}
	return node
}

func (b *builder) composite(n ir.ViewNode, path string) *Node {
	node := &Node{Path: path, Relationship: RelNone}

	var rels []string
	if n.From != "" {
		rels = append(rels, "from")
		node.Relationship, node.RelationExpr = RelFrom, n.From
	}
	if n.ForEach != "" {
		rels = append(rels, "forEach")
		node.Relationship, node.RelationExpr = RelForEach, n.ForEach
	}
	if n.ForEachOrNull != "" {
		rels = append(rels, "forEachOrNull")
		node.Relationship, node.RelationExpr = RelForEachOrNull, n.ForEachOrNull
	}
	if len(rels) > 1 {
		b.fail(ErrMultipleRelationships, path, "only one of %s may be set", strings.Join(rels, ", "))
	}
	if node.Relationship != RelNone {
		node.Relation = b.compileExpr(path+"."+node.Relationship.String(), node.RelationExpr)
	}

	node.Where = b.predicates(path+".where", n.Where)
	node.Vars = b.vars(n.Vars, path+".vars")

	for i, child := range n.Select {
		c := b.node(child, fmt.Sprintf("%s.select[%d]", path, i))
		node.Children = append(node.Children, c)
		node.Columns = append(node.Columns, c.Columns...)
	}
	return node
}
