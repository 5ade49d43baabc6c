// Package ndjson reads newline-delimited JSON document streams.
package ndjson

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"unicode/utf8"
)

// MaxLineSize bounds a single document. FHIR bundles flattened to one line
// can be large; the default bufio limit of 64KiB is not enough.
const MaxLineSize = 64 << 20

// ErrInvalidUTF8 reports a line that is not valid UTF-8. encoding/json
// would otherwise replace the bad bytes silently.
var ErrInvalidUTF8 = errors.New("invalid UTF-8")

// SyntaxError reports a line that is not a JSON document.
type SyntaxError struct {
	// Line is 1-based.
	Line int
	Err  error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// Read returns a lazy document stream over r. Blank lines are skipped,
// CRLF line endings are accepted and the last line need not end in a
// newline. Numbers decode as json.Number.
//
// The stream yields an error once and ends: a *SyntaxError for a malformed
// or non-UTF-8 line, or the underlying read error.
func Read(r io.Reader) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

		line := 0
		for scanner.Scan() {
			line++
			data := bytes.TrimSpace(scanner.Bytes())
			if len(data) == 0 {
				continue
			}
			doc, err := decodeLine(data)
			if err != nil {
				yield(nil, &SyntaxError{Line: line, Err: err})
				return
			}
			if !yield(doc, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(nil, fmt.Errorf("line %d: %w", line+1, err))
		}
	}
}

// decodeLine decodes exactly one JSON value; data is trimmed.
func decodeLine(data []byte) (any, error) {
	if !utf8.Valid(data) {
		return nil, ErrInvalidUTF8
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if dec.InputOffset() != int64(len(data)) {
		return nil, errors.New("unexpected data after document")
	}
	return doc, nil
}

// Concat chains streams in order, stopping at the first error.
func Concat(streams ...iter.Seq2[any, error]) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for _, s := range streams {
			for doc, err := range s {
				if !yield(doc, err) || err != nil {
					return
				}
			}
		}
	}
}
