// Package tablesql compiles tableir statements to SQLite SQL.
package tablesql

import (
	"fmt"
	"strings"

	"github.com/roach88/fhirflat/internal/tableir"
)

// Compile converts a statement to SQL and its parameters. The statement is
// validated first.
//
// Identifiers are always quoted and values are always parameterized, never
// interpolated. A Select without OrderBy is ordered by rowid so reads are
// deterministic.
func Compile(stmt tableir.Statement) (string, []any, error) {
	if err := tableir.Validate(stmt); err != nil {
		return "", nil, fmt.Errorf("invalid statement: %w", err)
	}

	switch s := stmt.(type) {
	case tableir.CreateTable:
		return compileCreate(s), nil, nil
	case *tableir.CreateTable:
		return compileCreate(*s), nil, nil
	case tableir.DropTable:
		return compileDrop(s), nil, nil
	case *tableir.DropTable:
		return compileDrop(*s), nil, nil
	case tableir.Insert:
		return compileInsert(s)
	case *tableir.Insert:
		return compileInsert(*s)
	case tableir.Select:
		return compileSelect(s)
	case *tableir.Select:
		return compileSelect(*s)
	default:
		return "", nil, fmt.Errorf("unsupported statement type: %T", stmt)
	}
}

// QuoteIdent quotes an SQLite identifier, doubling embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func compileCreate(c tableir.CreateTable) string {
	defs := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		defs[i] = QuoteIdent(col.Name) + " " + string(col.Type)
	}
	ifNotExists := ""
	if c.IfNotExists {
		ifNotExists = "IF NOT EXISTS "
	}
	return fmt.Sprintf("CREATE TABLE %s%s (%s)", ifNotExists, QuoteIdent(c.Table), strings.Join(defs, ", "))
}

func compileDrop(d tableir.DropTable) string {
	ifExists := ""
	if d.IfExists {
		ifExists = "IF EXISTS "
	}
	return fmt.Sprintf("DROP TABLE %s%s", ifExists, QuoteIdent(d.Table))
}

func compileInsert(ins tableir.Insert) (string, []any, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ins.Columns)), ", ")
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(ins.Table),
		quoteAll(ins.Columns),
		placeholders)
	params := make([]any, len(ins.Values))
	copy(params, ins.Values)
	return sql, params, nil
}

func compileSelect(sel tableir.Select) (string, []any, error) {
	var whereClause string
	var params []any
	if sel.Filter != nil {
		filterSQL, filterParams, err := compilePredicate(sel.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		whereClause = " WHERE " + filterSQL
		params = filterParams
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		quoteAll(sel.Columns),
		QuoteIdent(sel.Table),
		whereClause,
		orderBy(sel.OrderBy))
	return sql, params, nil
}

// orderBy always ends in rowid so equal keys keep insertion order.
func orderBy(columns []string) string {
	parts := make([]string, 0, len(columns)+1)
	for _, c := range columns {
		parts = append(parts, QuoteIdent(c)+" ASC")
	}
	parts = append(parts, "rowid ASC")
	return strings.Join(parts, ", ")
}

func compilePredicate(p tableir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case tableir.Equals:
		sql, params := compileEquals(pred)
		return sql, params, nil
	case *tableir.Equals:
		sql, params := compileEquals(*pred)
		return sql, params, nil
	case tableir.And:
		return compileAnd(pred)
	case *tableir.And:
		return compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(eq tableir.Equals) (string, []any) {
	if eq.Value == nil {
		return QuoteIdent(eq.Column) + " IS NULL", nil
	}
	return QuoteIdent(eq.Column) + " = ?", []any{eq.Value}
}

func compileAnd(and tableir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}
	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, ps, err := compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return strings.Join(parts, " AND "), params, nil
}
