package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewDefinitionDecode(t *testing.T) {
	raw := `{
		"resource": "Patient",
		"constants": [{"name": "sys", "valueUri": "http://loinc.org"}],
		"where": [{"path": "active"}, "gender.exists()"],
		"select": [
			{"path": "id"},
			{"forEachOrNull": "name", "select": [{"name": "family", "path": "family"}]}
		]
	}`

	var def ViewDefinition
	require.NoError(t, DecodeJSON([]byte(raw), &def))

	assert.Equal(t, "Patient", def.ResourceType())
	require.Len(t, def.Constants, 1)
	assert.Equal(t, "sys", def.Constants[0].Name)
	assert.Equal(t, "http://loinc.org", def.Constants[0].Value)
	require.Len(t, def.Where, 2)
	assert.Equal(t, "active", def.Where[0].Path)
	assert.Equal(t, "gender.exists()", def.Where[1].Path)
	require.Len(t, def.Select, 2)
	assert.False(t, def.Select[0].IsComposite())
	assert.True(t, def.Select[1].IsComposite())
	assert.Equal(t, "name", def.Select[1].ForEachOrNull)
}

func TestConstantsObjectForm(t *testing.T) {
	var c Constants
	require.NoError(t, json.Unmarshal([]byte(`{"b": 2, "a": "x"}`), &c))

	require.Len(t, c, 2)
	assert.Equal(t, "a", c[0].Name)
	assert.Equal(t, "x", c[0].Value)
	assert.Equal(t, "b", c[1].Name)
	assert.Equal(t, json.Number("2"), c[1].Value)
}

func TestConstantsInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"scalar", `"nope"`},
		{"missing name", `[{"value": 1}]`},
		{"missing value", `[{"name": "x"}]`},
		{"non-object entry", `[1]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Constants
			assert.Error(t, json.Unmarshal([]byte(tt.raw), &c))
		})
	}
}

func TestLegacyFromResource(t *testing.T) {
	def := ViewDefinition{From: "Observation"}
	assert.Equal(t, "Observation", def.ResourceType())

	def.Resource = "Patient"
	assert.Equal(t, "Patient", def.ResourceType())
}

func TestViewNodePolicy(t *testing.T) {
	assert.Equal(t, WhenMultipleError, ViewNode{}.Policy())
	assert.Equal(t, WhenMultipleArray, ViewNode{Collection: true}.Policy())
	assert.Equal(t, WhenMultipleUnnest, ViewNode{WhenMultiple: WhenMultipleUnnest}.Policy())
	assert.True(t, ValidWhenMultiple(""))
	assert.False(t, ValidWhenMultiple("explode"))
}

func TestCloneIsDeep(t *testing.T) {
	def := ViewDefinition{
		Resource:  "Patient",
		Constants: Constants{{Name: "c", Value: map[string]any{"k": "v"}}},
		Select: []ViewNode{{
			ForEach: "name",
			Where:   []WhereClause{{Path: "use = 'official'"}},
			Select:  []ViewNode{{Path: "family"}},
		}},
	}

	clone := def.Clone()
	clone.Select[0].Select[0].Path = "given"
	clone.Select[0].Where[0].Path = "changed"
	clone.Constants[0].Value.(map[string]any)["k"] = "changed"

	assert.Equal(t, "family", def.Select[0].Select[0].Path)
	assert.Equal(t, "use = 'official'", def.Select[0].Where[0].Path)
	assert.Equal(t, "v", def.Constants[0].Value.(map[string]any)["k"])
}

func TestRowAccessors(t *testing.T) {
	row := NewRow([]string{"id", "name"}, map[string]any{"id": "p1"})

	v, ok := row.Get("id")
	assert.True(t, ok)
	assert.Equal(t, "p1", v)

	v, ok = row.Get("name")
	assert.True(t, ok)
	assert.Nil(t, v)

	_, ok = row.Get("missing")
	assert.False(t, ok)

	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"p1","name":null}`, string(data))
}
