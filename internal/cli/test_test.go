package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingSuite = `{
	"title": "passing",
	"resources": [{"resourceType": "Patient", "id": "a"}, {"resourceType": "Patient", "id": "b"}],
	"tests": [
		{"title": "ids", "view": {"resource": "Patient", "select": [{"path": "id"}]}, "expect": [{"id": "b"}, {"id": "a"}]},
		{"title": "later", "skip": true, "view": {"resource": "Patient", "select": [{"path": "id"}]}}
	]
}`

const failingSuite = `
title: failing
resources:
  - resourceType: Patient
    id: a
tests:
  - title: wrong id
    view:
      resource: Patient
      select:
        - path: id
    expect:
      - id: z
`

func TestTestCommandPasses(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "passing.json", passingSuite)

	stdout, _, err := execute(t, "", "test", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ ids")
	assert.Contains(t, stdout, "- later (skipped)")
	assert.Contains(t, stdout, "Test Summary: 1 passed, 0 failed, 1 skipped, 2 total")
	assert.Contains(t, stdout, "✓ All tests passed")
}

func TestTestCommandFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "passing.json", passingSuite)
	writeFile(t, dir, "failing.yaml", failingSuite)

	stdout, _, err := execute(t, "", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ wrong id")
	assert.Contains(t, stdout, "1 of 1 rows differ")
}

func TestTestCommandFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "passing.json", passingSuite)
	writeFile(t, dir, "failing.yaml", failingSuite)

	_, _, err := execute(t, "", "test", dir, "--filter", "pass*")
	assert.NoError(t, err)
}

func TestTestCommandJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "failing.yaml", failingSuite)

	stdout, _, err := execute(t, "", "--format", "json", "test", dir)
	require.Error(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TestSummary `json:"data"`
		Error  *CLIError   `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Suites, 1)
	assert.Equal(t, "failing", resp.Data.Suites[0].Title)
}

func TestTestCommandDirectoryErrors(t *testing.T) {
	_, _, err := execute(t, "", "test", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	dir := t.TempDir()
	writeFile(t, dir, "broken.json", `{"title": "broken"`)
	_, _, err = execute(t, "", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyDirectory(t *testing.T) {
	stdout, _, err := execute(t, "", "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, stdout, "No tests found.")
}
