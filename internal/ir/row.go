package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Column describes one output column of a compiled view.
type Column struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`

	// Multiple is true when the column holds a list (whenMultiple: array).
	Multiple bool `json:"multiple,omitempty"`
}

// ColumnNames returns the names of cols in order.
func ColumnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// Row is one flattened output row. Columns and Values are parallel slices
// ordered by the view's column order. A value is a scalar, a []any (array
// policy) or nil.
type Row struct {
	Columns []string
	Values  []any
}

// NewRow builds a row over columns, taking values from fields. Columns
// absent from fields are nil.
func NewRow(columns []string, fields map[string]any) Row {
	values := make([]any, len(columns))
	for i, c := range columns {
		values[i] = fields[c]
	}
	return Row{Columns: columns, Values: values}
}

// Get returns the value of the named column.
func (r Row) Get(name string) (any, bool) {
	for i, c := range r.Columns {
		if c == name {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Map returns the row as a map keyed by column name.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.Columns))
	for i, c := range r.Columns {
		m[c] = r.Values[i]
	}
	return m
}

// MarshalJSON encodes the row as an object with keys in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.Values[i])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
