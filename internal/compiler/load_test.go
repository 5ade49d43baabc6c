package compiler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fhirflat/internal/ir"
)

const patientViewJSON = `{
	"name": "patient_names",
	"resource": "Patient",
	"constants": [{"name": "limit", "valueInteger": 2}],
	"select": [
		{"path": "id"},
		{"forEachOrNull": "name", "select": [{"path": "family"}]}
	]
}`

const patientViewYAML = `
name: patient_names
resource: Patient
constants:
  - name: limit
    valueInteger: 2
select:
  - path: id
  - forEachOrNull: name
    select:
      - path: family
`

const patientViewCUE = `
#Column: {
	path:  string
	name?: string
}

view: {
	name:     "patient_names"
	resource: "Patient"
	constants: [{name: "limit", valueInteger: 2}]
	select: [
		#Column & {path: "id"},
		{forEachOrNull: "name", select: [#Column & {path: "family"}]},
	]
}
`

func TestLoadFormatsAgree(t *testing.T) {
	fromJSON, err := LoadJSON([]byte(patientViewJSON))
	require.NoError(t, err)

	fromYAML, err := LoadYAML([]byte(patientViewYAML))
	require.NoError(t, err)

	fromCUE, err := LoadCUEBytes("view.cue", []byte(patientViewCUE))
	require.NoError(t, err)

	assert.Equal(t, "Patient", fromJSON.Resource)
	require.Len(t, fromJSON.Constants, 1)
	assert.Equal(t, ir.Constant{Name: "limit", Value: json.Number("2")}, fromJSON.Constants[0])

	jsonHash, err := ir.ViewHash(fromJSON)
	require.NoError(t, err)
	yamlHash, err := ir.ViewHash(fromYAML)
	require.NoError(t, err)
	cueHash, err := ir.ViewHash(fromCUE)
	require.NoError(t, err)

	assert.Equal(t, jsonHash, yamlHash)
	assert.Equal(t, jsonHash, cueHash)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := LoadJSON([]byte(`{"resource": "Patient", "select": [{"unionAll": []}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unionAll")

	_, err = LoadYAML([]byte("resource: Patient\nselec: []\n"))
	require.Error(t, err)
}

func TestLoadCUEValue(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`resource: "Patient", select: [{path: "id"}]`)
	require.NoError(t, v.Err())

	def, err := LoadCUE(v)
	require.NoError(t, err)
	assert.Equal(t, "Patient", def.Resource)
	require.Len(t, def.Select, 1)
	assert.Equal(t, "id", def.Select[0].Path)
}

func TestLoadCUEIncomplete(t *testing.T) {
	_, err := LoadCUEBytes("view.cue", []byte(`resource: string, select: [{path: "id"}]`))
	require.Error(t, err)

	var le *LoadError
	assert.ErrorAs(t, err, &le)
}

func TestLoadCUESyntaxErrorHasPosition(t *testing.T) {
	_, err := LoadCUEBytes("broken.cue", []byte("resource: \"Patient\"\nselect: [\n"))
	require.Error(t, err)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, err.Error(), "broken.cue")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"view.json": patientViewJSON,
		"view.yaml": patientViewYAML,
		"view.yml":  patientViewYAML,
		"view.cue":  patientViewCUE,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	for name := range files {
		t.Run(name, func(t *testing.T) {
			def, err := LoadFile(filepath.Join(dir, name))
			require.NoError(t, err)
			assert.Equal(t, "patient_names", def.Name)
			assert.Len(t, def.Select, 2)
		})
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.json"))
	require.Error(t, err)

	path := filepath.Join(dir, "view.txt")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	_, err = LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")

	path = filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = LoadFile(path)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, path, le.Source)
}
