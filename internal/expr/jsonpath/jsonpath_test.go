package jsonpath

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fhirflat/internal/expr"
)

func patient() map[string]any {
	return map[string]any{
		"resourceType": "Patient",
		"id":           "pt1",
		"name": []any{
			map[string]any{"use": "official", "family": "Smith", "given": []any{"Anna", "Maria"}},
			map[string]any{"use": "nickname", "family": "Lee"},
		},
		"deceasedBoolean": nil,
	}
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []any
	}{
		{"absolute member", "$.id", []any{"pt1"}},
		{"relative member", "id", []any{"pt1"}},
		{"relative bracket", "['id']", []any{"pt1"}},
		{"wildcard", "$.name[*].family", []any{"Smith", "Lee"}},
		{"array expanded", "$.name[0].given", []any{"Anna", "Maria"}},
		{"index", "name[1].family", []any{"Lee"}},
		{"filter", "$.name[?@.use == 'official'].family", []any{"Smith"}},
		{"missing", "$.gender", nil},
		{"null dropped", "$.deceasedBoolean", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := New().Compile(tt.query)
			require.NoError(t, err)

			got, err := sel(patient(), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVariableQuery(t *testing.T) {
	env := expr.MapEnv{
		"resource": patient(),
		"system":   "phone",
	}

	sel, err := New().Compile("%resource.name[*].family")
	require.NoError(t, err)
	got, err := sel(nil, env)
	require.NoError(t, err)
	assert.Equal(t, []any{"Smith", "Lee"}, got)

	sel, err = New().Compile("%system")
	require.NoError(t, err)
	got, err = sel(nil, env)
	require.NoError(t, err)
	assert.Equal(t, []any{"phone"}, got)
}

func TestUndefinedVariable(t *testing.T) {
	sel, err := New().Compile("%nope.id")
	require.NoError(t, err)

	_, err = sel(patient(), expr.MapEnv{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, expr.ErrEvaluation))

	_, err = sel(patient(), nil)
	require.Error(t, err)
}

func TestCompileErrors(t *testing.T) {
	for _, query := range []string{"", "   ", "$.name[", "%", "$..["} {
		t.Run(query, func(t *testing.T) {
			_, err := New().Compile(query)
			require.Error(t, err)
			assert.True(t, errors.Is(err, expr.ErrInvalidExpression), "got %v", err)
		})
	}
}
