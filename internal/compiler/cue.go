package compiler

import (
	stderrors "errors"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/fhirflat/internal/ir"
)

// LoadCUE decodes a view definition from a CUE value. The value must be
// concrete; CUE constraints are resolved before decoding, so a definition
// may be written against a schema:
//
//	#Column: {name?: string, path: string}
//	view: {
//		resource: "Patient"
//		select: [{select: [#Column & {path: "id"}]}]
//	}
//
// If the value has a top-level "view" field, that field is decoded.
func LoadCUE(v cue.Value) (ir.ViewDefinition, error) {
	if err := v.Err(); err != nil {
		return ir.ViewDefinition{}, formatCUEError(err)
	}

	if nested := v.LookupPath(cue.ParsePath("view")); nested.Exists() {
		v = nested
	}

	if err := v.Validate(cue.Concrete(true)); err != nil {
		return ir.ViewDefinition{}, formatCUEError(err)
	}

	data, err := v.MarshalJSON()
	if err != nil {
		return ir.ViewDefinition{}, formatCUEError(err)
	}

	def, err := decodeJSON(data)
	if err != nil {
		return ir.ViewDefinition{}, &LoadError{Message: err.Error(), Pos: v.Pos()}
	}
	return def, nil
}

// LoadCUEBytes compiles CUE source and decodes the view definition in it.
// filename is used for error positions only.
func LoadCUEBytes(filename string, data []byte) (ir.ViewDefinition, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	def, err := LoadCUE(v)
	var le *LoadError
	if stderrors.As(err, &le) && !le.Pos.IsValid() {
		le.Source = filename
	}
	return def, err
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Message: err.Error()}
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &LoadError{
			Source:  "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return &LoadError{Source: "cue", Message: first.Error()}
}
