package compiler

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
)

// View definition error codes (E100-E199)
const (
	// Node shape errors (E101-E104)
	ErrNodeShape                 = "E101" // neither a leaf expression nor select, or no derivable name
	ErrPathAndSelect             = "E102" // leaf expression and select both present
	ErrMultipleRelationships     = "E103" // more than one of from/forEach/forEachOrNull
	ErrRelationshipWithoutSelect = "E104" // relationship or where on a node without select

	// Column and policy errors (E105-E106)
	ErrDuplicateColumn     = "E105" // two leaves resolve to the same column name
	ErrInvalidWhenMultiple = "E106" // unknown whenMultiple policy

	// Definition errors (E107-E110)
	ErrMissingResource = "E107" // resource (or legacy from) is required
	ErrInvalidConstant = "E108" // constant without name, duplicated or not a literal
	ErrInvalidVar      = "E109" // var without name or path, or duplicated
	ErrUnknownDialect  = "E110" // dialect is not fhirpath or jsonpath
)

// ConfigError reports a structurally invalid view definition.
type ConfigError struct {
	Code    string `json:"code"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
}

// ExpressionError reports an expression the evaluator refused to compile.
type ExpressionError struct {
	// Path locates the expression, e.g. select[0].select[1].path.
	Path string `json:"path"`
	Expr string `json:"expr"`
	Err  error  `json:"-"`
}

// Error implements the error interface.
func (e *ExpressionError) Error() string {
	return fmt.Sprintf("%s: cannot compile %q: %v", e.Path, e.Expr, e.Err)
}

// Unwrap returns the evaluator's error.
func (e *ExpressionError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsExpressionError reports whether err is (or wraps) an ExpressionError.
func IsExpressionError(err error) bool {
	var ee *ExpressionError
	return errors.As(err, &ee)
}

// ErrorCode returns the E1xx code of a ConfigError, or "" for other errors.
func ErrorCode(err error) string {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// LoadError reports a view definition that could not be decoded.
type LoadError struct {
	Source  string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	if e.Source != "" {
		return fmt.Sprintf("%s: %s", e.Source, e.Message)
	}
	return e.Message
}
