package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const namesView = `{
	"name": "patient_names",
	"resource": "Patient",
	"select": [
		{"path": "id"},
		{"forEach": "name", "select": [{"path": "family"}, {"path": "given.first()", "name": "given"}]}
	]
}`

const patientsNDJSON = `{"resourceType": "Patient", "id": "pt1", "name": [{"family": "Smith", "given": ["Anna"]}, {"family": "Lee", "given": ["Bo"]}]}
{"resourceType": "Observation", "id": "ob1"}
{"resourceType": "Patient", "id": "pt2", "name": [{"family": "Diaz"}]}
`

// execute runs the root command with args, feeding stdin.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeFile writes content to name inside dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
