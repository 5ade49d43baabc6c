package store

import (
	"github.com/roach88/fhirflat/internal/ir"
	"github.com/roach88/fhirflat/internal/sink"
)

// rowParams converts a row to insert parameters. nil stays NULL; every
// other value is stored as text, lists and objects as canonical JSON per
// RFC 8785 so equal values always store identically.
func rowParams(row ir.Row) ([]any, error) {
	params := make([]any, len(row.Values))
	for i, v := range row.Values {
		if v == nil {
			continue
		}
		text, err := sink.FormatValue(v)
		if err != nil {
			return nil, err
		}
		params[i] = text
	}
	return params, nil
}
