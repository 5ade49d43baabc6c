package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while extracting rows.
//
// Runtime errors include:
//   - Selector failure: an expression failed on a document
//   - Source failure: the document stream could not be read
//
// RuntimeError includes structured fields for diagnostics.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Path locates the failing node, e.g. select[1].forEach.
	Path string

	// Expr is the expression that failed, when there is one.
	Expr string

	// Document is the 1-based position of the document in the stream.
	Document int

	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeSelector indicates an expression failed while evaluating a document.
	ErrCodeSelector RuntimeErrorCode = "SELECTOR_FAILED"

	// ErrCodeSource indicates the document stream returned an error.
	ErrCodeSource RuntimeErrorCode = "SOURCE_FAILED"

	// ErrCodeSink indicates a row sink rejected a row.
	ErrCodeSink RuntimeErrorCode = "SINK_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Path != "" {
		msg += fmt.Sprintf(" (at %s", e.Path)
		if e.Expr != "" {
			msg += fmt.Sprintf(", expr %q", e.Expr)
		}
		msg += ")"
	}
	if e.Document > 0 {
		msg += fmt.Sprintf(" in document %d", e.Document)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsSelectorError reports whether err is a selector failure.
// Uses errors.As to handle wrapped errors.
func IsSelectorError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeSelector
	}
	return false
}

// IsSourceError reports whether err is a document stream failure.
func IsSourceError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeSource
	}
	return false
}

// NewSelectorError creates a RuntimeError for a failed expression.
func NewSelectorError(path, expression string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeSelector,
		Message: "expression evaluation failed",
		Path:    path,
		Expr:    expression,
		Err:     err,
	}
}

// NewSourceError creates a RuntimeError for a failed document read.
func NewSourceError(document int, err error) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeSource,
		Message:  "reading documents failed",
		Document: document,
		Err:      err,
	}
}
