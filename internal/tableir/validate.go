package tableir

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks a statement against the package rules and reports every
// problem found. It returns nil for a valid statement.
//
// Validate is a pure function with no side effects.
func Validate(stmt Statement) error {
	v := &validator{}
	v.validateStatement(stmt)
	return errors.Join(v.problems...)
}

// validator accumulates problems during traversal.
type validator struct {
	problems []error
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Errorf(format, args...))
}

func (v *validator) validateStatement(s Statement) {
	switch stmt := s.(type) {
	case nil:
		v.addProblem("nil statement")
	case CreateTable:
		v.validateCreate(stmt)
	case *CreateTable:
		v.validateCreate(*stmt)
	case DropTable:
		v.identifier("table", stmt.Table)
	case *DropTable:
		v.identifier("table", stmt.Table)
	case Insert:
		v.validateInsert(stmt)
	case *Insert:
		v.validateInsert(*stmt)
	case Select:
		v.validateSelect(stmt)
	case *Select:
		v.validateSelect(*stmt)
	default:
		v.addProblem("unknown statement type %T", s)
	}
}

func (v *validator) validateCreate(c CreateTable) {
	v.identifier("table", c.Table)
	if len(c.Columns) == 0 {
		v.addProblem("table %q has no columns", c.Table)
	}
	names := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		names[i] = col.Name
		switch col.Type {
		case Text, Integer:
		default:
			v.addProblem("column %q has unknown type %q", col.Name, col.Type)
		}
	}
	v.columns(names)
}

func (v *validator) validateInsert(ins Insert) {
	v.identifier("table", ins.Table)
	if len(ins.Columns) == 0 {
		v.addProblem("insert into %q names no columns", ins.Table)
	}
	v.columns(ins.Columns)
	if len(ins.Values) != len(ins.Columns) {
		v.addProblem("insert into %q has %d values for %d columns", ins.Table, len(ins.Values), len(ins.Columns))
	}
	for i, val := range ins.Values {
		switch val.(type) {
		case nil, string, int64, bool:
		default:
			v.addProblem("value %d has unsupported type %T", i, val)
		}
	}
}

func (v *validator) validateSelect(sel Select) {
	v.identifier("table", sel.Table)
	if len(sel.Columns) == 0 {
		v.addProblem("select from %q names no columns", sel.Table)
	}
	v.columns(sel.Columns)
	for _, c := range sel.OrderBy {
		v.identifier("order column", c)
	}
	v.validatePredicate(sel.Filter)
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.identifier("column", pred.Column)
	case *Equals:
		v.identifier("column", pred.Column)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case *And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

func (v *validator) columns(names []string) {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		v.identifier("column", n)
		// SQLite identifiers are case-insensitive.
		key := strings.ToLower(n)
		if seen[key] {
			v.addProblem("duplicate column %q", n)
		}
		seen[key] = true
	}
}

func (v *validator) identifier(kind, name string) {
	if name == "" {
		v.addProblem("%s name is empty", kind)
		return
	}
	if strings.ContainsRune(name, 0) {
		v.addProblem("%s name %q contains NUL", kind, name)
	}
}
