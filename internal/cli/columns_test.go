package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnsText(t *testing.T) {
	config := writeFile(t, t.TempDir(), "view.json", `{
		"resource": "Patient",
		"select": [{"path": "id"}, {"path": "name.family", "name": "families", "collection": true}]
	}`)

	stdout, _, err := execute(t, "", "columns", "--config", config)
	require.NoError(t, err)
	assert.Equal(t, "id        scalar  id\nfamilies  array   name.family\n", stdout)
}

func TestColumnsJSON(t *testing.T) {
	config := writeFile(t, t.TempDir(), "view.json", namesView)

	stdout, _, err := execute(t, "", "--format", "json", "columns", "--config", config)
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   ColumnsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "patient_names", resp.Data.View)
	assert.Equal(t, "Patient", resp.Data.Resource)

	var names []string
	for _, c := range resp.Data.Columns {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"id", "family", "given"}, names)
}

func TestColumnsMissingFile(t *testing.T) {
	stdout, _, err := execute(t, "", "--format", "json", "columns", "--config", "does-not-exist.json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}
