package sink

import (
	"bufio"
	"io"

	"github.com/roach88/fhirflat/internal/ir"
)

// NDJSON writes one JSON object per row with keys in column order.
type NDJSON struct {
	w *bufio.Writer
}

// NewNDJSON returns an NDJSON writer.
func NewNDJSON(w io.Writer) *NDJSON {
	return &NDJSON{w: bufio.NewWriter(w)}
}

// WriteRow writes row followed by a newline.
func (n *NDJSON) WriteRow(row ir.Row) error {
	b, err := row.MarshalJSON()
	if err != nil {
		return err
	}
	if _, err := n.w.Write(b); err != nil {
		return err
	}
	return n.w.WriteByte('\n')
}

// Flush writes buffered data to the underlying writer.
func (n *NDJSON) Flush() error {
	return n.w.Flush()
}
