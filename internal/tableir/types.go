package tableir

// Statement is one operation against a table.
//
// This is a sealed interface; only types in this package implement it, so
// backend compilers can switch over it exhaustively.
type Statement interface {
	statementNode()
}

// Predicate is a filter condition in Select.Filter.
//
// Sealed like Statement.
type Predicate interface {
	predicateNode()
}

// ColumnType is the storage type of a column.
type ColumnType string

const (
	// Text is the type of every view column.
	Text ColumnType = "TEXT"

	// Integer is used by bookkeeping tables.
	Integer ColumnType = "INTEGER"
)

// Column is a column definition.
type Column struct {
	Name string
	Type ColumnType
}

// CreateTable creates Table with Columns in order.
//
//	CREATE TABLE [IF NOT EXISTS] "table" ("a" TEXT, "b" TEXT)
type CreateTable struct {
	Table       string
	Columns     []Column
	IfNotExists bool
}

func (CreateTable) statementNode() {}

// DropTable removes Table.
//
//	DROP TABLE [IF EXISTS] "table"
type DropTable struct {
	Table    string
	IfExists bool
}

func (DropTable) statementNode() {}

// Insert adds one row. Values are positional and parallel to Columns.
//
//	INSERT INTO "table" ("a", "b") VALUES (?, ?)
type Insert struct {
	Table   string
	Columns []string
	Values  []any
}

func (Insert) statementNode() {}

// Select reads Columns from Table. Rows come back in OrderBy order, or in
// insertion order when OrderBy is empty.
//
//	SELECT "a", "b" FROM "table" WHERE "a" = ? ORDER BY rowid ASC
type Select struct {
	Table   string
	Columns []string
	Filter  Predicate
	OrderBy []string
}

func (Select) statementNode() {}

// Equals is a column-equals-value predicate. The value is always bound as
// a parameter.
type Equals struct {
	Column string
	Value  any
}

func (Equals) predicateNode() {}

// And is a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// TextColumns returns a Text column definition per name.
func TextColumns(names []string) []Column {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n, Type: Text}
	}
	return cols
}
