package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fhirflat/internal/store"
)

func TestRunsListsCommittedRuns(t *testing.T) {
	dir := t.TempDir()
	config := writeFile(t, dir, "view.json", namesView)
	db := filepath.Join(dir, "out.db")

	for _, table := range []string{"first", "second"} {
		_, _, err := execute(t, patientsNDJSON,
			"run", "--config", config, "--output", "sqlite", "--db", db, "--table", table)
		require.NoError(t, err)
	}

	stdout, _, err := execute(t, "", "runs", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, stdout, "SEQ")
	assert.Contains(t, stdout, "first")
	assert.Contains(t, stdout, "second")

	stdout, _, err = execute(t, "", "--format", "json", "runs", "--db", db, "--table", "second")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   []store.Run `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "second", resp.Data[0].Table)
	assert.Equal(t, "patient_names", resp.Data[0].ViewName)
	assert.Equal(t, int64(3), resp.Data[0].RowCount)
}

func TestRunsEmptyDatabase(t *testing.T) {
	stdout, _, err := execute(t, "", "runs", "--db", filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	assert.Equal(t, "No runs recorded.\n", stdout)
}

func TestRunsRequiresDatabase(t *testing.T) {
	_, _, err := execute(t, "", "runs")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
