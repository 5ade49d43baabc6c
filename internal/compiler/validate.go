package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/fhirflat/internal/ir"
)

// Validate checks def the way Compile does but reports every problem
// instead of stopping at the first. Each error is a *ConfigError or an
// *ExpressionError. An empty result means Compile would succeed.
func Validate(def ir.ViewDefinition, opts ...Option) []error {
	b := newBuilder(def.Clone(), opts)
	b.build()
	return b.errs
}

func (b *builder) checkConstants(constants ir.Constants) {
	seen := make(map[string]bool, len(constants))
	for i, c := range constants {
		path := fmt.Sprintf("constants[%d]", i)
		switch {
		case strings.TrimSpace(c.Name) == "":
			b.fail(ErrInvalidConstant, path, "constant name is required")
		case c.Name == VarResource || c.Name == VarRootResource:
			b.fail(ErrInvalidConstant, path, "constant name %q is reserved", c.Name)
		case seen[c.Name]:
			b.fail(ErrInvalidConstant, path, "duplicate constant %q", c.Name)
		}
		seen[c.Name] = true

		switch c.Value.(type) {
		case map[string]any, []any, nil:
			b.fail(ErrInvalidConstant, path, "constant %q must be a string, number or boolean", c.Name)
		}
	}
}

func (b *builder) vars(bindings []ir.VarBinding, path string) []Var {
	if len(bindings) == 0 {
		return nil
	}
	out := make([]Var, 0, len(bindings))
	var names []string
	for i, v := range bindings {
		p := fmt.Sprintf("%s[%d]", path, i)
		switch {
		case strings.TrimSpace(v.Name) == "":
			b.fail(ErrInvalidVar, p, "var name is required")
			continue
		case strings.TrimSpace(v.Path) == "":
			b.fail(ErrInvalidVar, p, "var %q has no path", v.Name)
			continue
		case v.Name == VarResource || v.Name == VarRootResource:
			b.fail(ErrInvalidVar, p, "var name %q is reserved", v.Name)
			continue
		case slices.Contains(names, v.Name):
			b.fail(ErrInvalidVar, p, "duplicate var %q", v.Name)
			continue
		}
		if !ir.ValidWhenMultiple(v.WhenMultiple) {
			b.fail(ErrInvalidWhenMultiple, p+".whenMultiple",
				"invalid whenMultiple %q, must be \"error\", \"array\" or \"unnest\"", v.WhenMultiple)
		}
		names = append(names, v.Name)

		policy := v.WhenMultiple
		if policy == "" {
			policy = ir.WhenMultipleError
		}
		out = append(out, Var{
			Name:     v.Name,
			Expr:     v.Path,
			Policy:   policy,
			Selector: b.compileExpr(p+".path", v.Path),
		})
	}
	return out
}
