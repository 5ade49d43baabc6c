package fhirpath

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fhirflat/internal/expr"
)

const patientJSON = `{
	"resourceType": "Patient",
	"id": "pt1",
	"active": true,
	"gender": "female",
	"birthDate": "1980-02-01",
	"name": [
		{"use": "official", "family": "Smith", "given": ["Anna", "Maria"]},
		{"use": "nickname", "family": "Lee", "given": ["Bo"]}
	],
	"telecom": [
		{"system": "phone", "value": "555-0100"},
		{"system": "email", "value": "anna@example.org"}
	],
	"managingOrganization": {"reference": "Organization/org1"},
	"generalPractitioner": [
		{"reference": "http://example.org/fhir/Practitioner/pr1/_history/3"}
	],
	"extension": [
		{"url": "http://example.org/ext/birthsex", "valueCode": "F"}
	],
	"multipleBirthInteger": 2
}`

func mustDecode(t *testing.T, raw string) any {
	t.Helper()
	var doc any
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&doc))
	return doc
}

func TestEvaluate(t *testing.T) {
	doc := mustDecode(t, patientJSON)
	env := expr.MapEnv{"phone": "phone", "limit": json.Number("1")}

	tests := []struct {
		name string
		expr string
		want []any
	}{
		{"simple field", "id", []any{"pt1"}},
		{"resource type prefix", "Patient.id", []any{"pt1"}},
		{"missing field", "deceasedBoolean", nil},
		{"array flattening", "name.family", []any{"Smith", "Lee"}},
		{"nested array flattening", "name.given", []any{"Anna", "Maria", "Bo"}},
		{"first", "name.given.first()", []any{"Anna"}},
		{"last", "name.family.last()", []any{"Lee"}},
		{"tail", "name.family.tail()", []any{"Lee"}},
		{"indexer", "name[1].family", []any{"Lee"}},
		{"indexer out of range", "name[5].family", nil},
		{"where equality", "name.where(use = 'official').family", []any{"Smith"}},
		{"where with variable", "telecom.where(system = %phone).value", []any{"555-0100"}},
		{"where with this", "name.given.where($this = 'Bo')", []any{"Bo"}},
		{"exists", "name.exists()", []any{true}},
		{"exists with criteria", "name.exists(use = 'temp')", []any{false}},
		{"empty", "deceasedBoolean.empty()", []any{true}},
		{"count", "name.given.count()", []any{json.Number("3")}},
		{"not", "active.not()", []any{false}},
		{"join", "name.given.join(' ')", []any{"Anna Maria Bo"}},
		{"select", "name.select(family & ', ' & given.first())", []any{"Smith, Anna", "Lee, Bo"}},
		{"union", "name.family | gender", []any{"Smith", "Lee", "female"}},
		{"union dedupes", "gender | gender", []any{"female"}},
		{"and", "active and gender = 'female'", []any{true}},
		{"or short circuit", "active or missing.count() > 0", []any{true}},
		{"and with unknown", "missing and true", nil},
		{"and false with unknown", "missing and false", []any{false}},
		{"implies", "active.not() implies gender = 'male'", []any{true}},
		{"xor", "true xor false", []any{true}},
		{"not equal", "gender != 'male'", []any{true}},
		{"equal with empty", "missing = 'x'", nil},
		{"comparison", "birthDate < '1990-01-01'", []any{true}},
		{"number comparison", "multipleBirthInteger >= 2", []any{true}},
		{"arithmetic", "multipleBirthInteger + 3", []any{json.Number("5")}},
		{"decimal arithmetic", "multipleBirthInteger / 4", []any{json.Number("0.5")}},
		{"div", "7 div 2", []any{json.Number("3")}},
		{"mod", "7 mod 2", []any{json.Number("1")}},
		{"unary minus", "-multipleBirthInteger", []any{json.Number("-2")}},
		{"string concatenation", "'a' + 'b'", []any{"ab"}},
		{"in", "'Bo' in name.given", []any{true}},
		{"contains operator", "name.given contains 'Zed'", []any{false}},
		{"empty literal", "{}", nil},
		{"variable", "%limit", []any{json.Number("1")}},
		{"getResourceKey", "getResourceKey()", []any{"pt1"}},
		{"getReferenceKey", "managingOrganization.getReferenceKey()", []any{"org1"}},
		{"getReferenceKey typed match", "managingOrganization.getReferenceKey(Organization)", []any{"org1"}},
		{"getReferenceKey typed mismatch", "managingOrganization.getReferenceKey(Patient)", nil},
		{"getReferenceKey absolute history", "generalPractitioner.getReferenceKey()", []any{"pr1"}},
		{"extension", "extension('http://example.org/ext/birthsex').valueCode", []any{"F"}},
		{"ofType choice", "multipleBirth.ofType(integer)", []any{json.Number("2")}},
		{"ofType resource", "ofType(Patient).id", []any{"pt1"}},
		{"hasValue", "gender.hasValue()", []any{true}},
		{"toString", "multipleBirthInteger.toString()", []any{"2"}},
		{"toInteger", "'42'.toInteger()", []any{json.Number("42")}},
		{"startsWith", "gender.startsWith('fe')", []any{true}},
		{"endsWith", "gender.endsWith('x')", []any{false}},
		{"contains function", "gender.contains('ema')", []any{true}},
		{"upper", "gender.upper()", []any{"FEMALE"}},
		{"iif true", "iif(active, 'yes', 'no')", []any{"yes"}},
		{"iif false without else", "iif(active.not(), 'yes')", nil},
		{"all", "name.all(family.exists())", []any{true}},
		{"distinct", "name.use.distinct().count()", []any{json.Number("2")}},
		{"delimited identifier", "`gender`", []any{"female"}},
		{"parenthesized", "(name.family).first()", []any{"Smith"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.expr, doc, env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"unterminated string", "name.where(use = 'official)"},
		{"dangling dot", "name."},
		{"unknown function", "name.frobnicate()"},
		{"wrong arity", "name.where()"},
		{"missing paren", "name.where(use = 'x'"},
		{"unexpected character", "name # family"},
		{"bad special variable", "$that"},
		{"trailing tokens", "name family"},
		{"ofType without type", "ofType('')"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Compile(tt.expr)
			require.Error(t, err)
			assert.True(t, errors.Is(err, expr.ErrInvalidExpression), "got %v", err)
		})
	}
}

func TestEvaluationErrors(t *testing.T) {
	doc := mustDecode(t, patientJSON)

	tests := []struct {
		name string
		expr string
	}{
		{"undefined variable", "%nope"},
		{"multi-item comparison", "name.family < 'Z'"},
		{"multi-item boolean", "name.family and true"},
		{"mismatched comparison", "gender < 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.expr, doc, expr.MapEnv{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, expr.ErrEvaluation), "got %v", err)
		})
	}
}

func TestVariableListIsFlattened(t *testing.T) {
	env := expr.MapEnv{"names": []any{"a", "b"}}

	got, err := Evaluate("%names.count()", nil, env)
	require.NoError(t, err)
	assert.Equal(t, []any{json.Number("2")}, got)
}

func TestSelectorIsReusable(t *testing.T) {
	sel, err := New().Compile("name.family.first()")
	require.NoError(t, err)

	a, err := sel(map[string]any{"name": []any{map[string]any{"family": "A"}}}, nil)
	require.NoError(t, err)
	b, err := sel(map[string]any{"name": []any{map[string]any{"family": "B"}}}, nil)
	require.NoError(t, err)

	assert.Equal(t, []any{"A"}, a)
	assert.Equal(t, []any{"B"}, b)
}

func TestPasses(t *testing.T) {
	tests := []struct {
		name   string
		values []any
		want   bool
	}{
		{"single true", []any{true}, true},
		{"single false", []any{false}, false},
		{"empty", nil, false},
		{"single string", []any{"Smith"}, false},
		{"single number", []any{json.Number("1")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New().Passes(tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := New().Passes([]any{true, true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, expr.ErrEvaluation))
}

func TestPredicateRuleIsDialectAware(t *testing.T) {
	rule := expr.PredicateRuleFor(New())

	ok, err := rule([]any{"x"})
	require.NoError(t, err)
	assert.False(t, ok)
}
