package sink

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/roach88/fhirflat/internal/ir"
)

// CSV writes rows as comma-separated values. Every field is double-quoted
// with embedded quotes doubled; nil renders as an empty field, lists and
// objects as canonical JSON.
type CSV struct {
	w       *bufio.Writer
	columns []string
}

// NewCSV returns a CSV writer over the given columns.
func NewCSV(w io.Writer, columns []string) *CSV {
	return &CSV{w: bufio.NewWriter(w), columns: columns}
}

// WriteHeader writes the column names.
func (c *CSV) WriteHeader() error {
	fields := make([]any, len(c.columns))
	for i, name := range c.columns {
		fields[i] = name
	}
	return c.writeRecord(fields)
}

// WriteRow writes one row. The row must have the writer's columns.
func (c *CSV) WriteRow(row ir.Row) error {
	if len(row.Values) != len(c.columns) {
		return fmt.Errorf("csv: row has %d values, want %d", len(row.Values), len(c.columns))
	}
	return c.writeRecord(row.Values)
}

// Flush writes buffered data to the underlying writer.
func (c *CSV) Flush() error {
	return c.w.Flush()
}

func (c *CSV) writeRecord(values []any) error {
	for i, v := range values {
		if i > 0 {
			if err := c.w.WriteByte(','); err != nil {
				return err
			}
		}
		field, err := FormatValue(v)
		if err != nil {
			return fmt.Errorf("csv: column %q: %w", c.columns[i], err)
		}
		if _, err := c.w.WriteString(quote(field)); err != nil {
			return err
		}
	}
	_, err := c.w.WriteString("\n")
	return err
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// FormatValue renders a row value as text: nil is empty, strings are
// verbatim, numbers keep their decoded spelling, booleans are true/false and
// anything else is canonical JSON.
func FormatValue(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	default:
		b, err := ir.MarshalCanonical(val)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
