package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fhirflat/internal/compiler"
	"github.com/roach88/fhirflat/internal/ndjson"
	"github.com/roach88/fhirflat/internal/store"
	"github.com/roach88/fhirflat/internal/testutil"
)

func TestRunCSVFromStdin(t *testing.T) {
	config := writeFile(t, t.TempDir(), "view.json", namesView)

	stdout, _, err := execute(t, patientsNDJSON, "run", "--config", config)
	require.NoError(t, err)

	assert.Equal(t, `"id","family","given"
"pt1","Smith","Anna"
"pt1","Lee","Bo"
"pt2","Diaz",""
`, stdout)
}

func TestRunCSVHeaderOnlyForEmptyInput(t *testing.T) {
	config := writeFile(t, t.TempDir(), "view.json", namesView)

	stdout, _, err := execute(t, "", "run", "--config", config, "-")
	require.NoError(t, err)
	assert.Equal(t, "\"id\",\"family\",\"given\"\n", stdout)
}

func TestRunNDJSONFromFiles(t *testing.T) {
	dir := t.TempDir()
	config := writeFile(t, dir, "view.yaml", `
resource: Patient
select:
  - path: id
  - path: active
`)
	a := writeFile(t, dir, "a.ndjson", `{"resourceType": "Patient", "id": "a", "active": true}`)
	b := writeFile(t, dir, "b.ndjson", `{"resourceType": "Patient", "id": "b"}`+"\n")

	stdout, _, err := execute(t, `{"resourceType": "Patient", "id": "stdin"}`,
		"run", "--config", config, "--output", "ndjson", a, "-", b)
	require.NoError(t, err)

	assert.Equal(t, `{"id":"a","active":true}
{"id":"stdin","active":null}
{"id":"b","active":null}
`, stdout)
}

func TestRunMissingConfig(t *testing.T) {
	_, _, err := execute(t, "", "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--config is required")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunInvalidView(t *testing.T) {
	config := writeFile(t, t.TempDir(), "view.json", `{"resource": "Patient", "select": [{"path": "id"}, {"path": "id"}]}`)

	_, _, err := execute(t, "", "run", "--config", config)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.True(t, compiler.IsConfigError(err))
	assert.Equal(t, compiler.ErrDuplicateColumn, compiler.ErrorCode(err))
}

func TestRunInvalidOutput(t *testing.T) {
	config := writeFile(t, t.TempDir(), "view.json", namesView)

	_, _, err := execute(t, "", "run", "--config", config, "--output", "parquet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunMalformedInput(t *testing.T) {
	config := writeFile(t, t.TempDir(), "view.json", namesView)

	_, stderr, err := execute(t, "{\"resourceType\": \"Patient\", \"id\": \"x\"}\n{oops\n", "run", "--config", config)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var syntaxErr *ndjson.SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	assert.Equal(t, 2, syntaxErr.Line)
	assert.Contains(t, stderr, "run failed")
}

func TestRunMissingInputFile(t *testing.T) {
	config := writeFile(t, t.TempDir(), "view.json", namesView)

	_, _, err := execute(t, "", "run", "--config", config, filepath.Join(t.TempDir(), "missing.ndjson"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "open input")
}

func TestRunFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Patient.ndjson":
			w.Header().Set("Content-Type", "application/fhir+ndjson")
			_, _ = w.Write([]byte(patientsNDJSON))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	config := writeFile(t, t.TempDir(), "view.json", namesView)

	stdout, _, err := execute(t, "", "run", "--config", config, srv.URL+"/Patient.ndjson")
	require.NoError(t, err)
	assert.Equal(t, `"id","family","given"
"pt1","Smith","Anna"
"pt1","Lee","Bo"
"pt2","Diaz",""
`, stdout)
}

func TestRunFromURLRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()
	config := writeFile(t, t.TempDir(), "view.json", namesView)

	_, _, err := execute(t, "", "run", "--config", config, srv.URL+"/Patient.ndjson")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "open input")
	assert.Contains(t, err.Error(), "410")
}

func TestRunSQLite(t *testing.T) {
	dir := t.TempDir()
	config := writeFile(t, dir, "view.json", namesView)
	db := filepath.Join(dir, "out.db")

	stdout, _, err := execute(t, patientsNDJSON, "--format", "json",
		"run", "--config", config, "--output", "sqlite", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, stdout, `"status":"ok"`)
	assert.Contains(t, stdout, `"table":"patient_names"`)
	assert.Contains(t, stdout, `"rows":3`)

	_, _, err = execute(t, patientsNDJSON, "run", "--config", config, "--output", "sqlite", "--db", db)
	require.NoError(t, err)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	rows, err := st.ReadTable(context.Background(), "patient_names", []string{"id", "family", "given"})
	require.NoError(t, err)
	assert.Len(t, rows, 6)
	assert.Equal(t, []any{"pt2", "Diaz", nil}, rows[2].Values)

	runs, err := st.ReadRuns(context.Background(), "patient_names")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "patient_names", runs[0].ViewName)
	assert.Equal(t, int64(3), runs[1].RowCount)
	assert.NotEmpty(t, runs[0].ViewHash)
	assert.NotEqual(t, runs[0].RunID, runs[1].RunID)
}

func TestRunSQLiteReplace(t *testing.T) {
	dir := t.TempDir()
	config := writeFile(t, dir, "view.json", namesView)
	db := filepath.Join(dir, "out.db")

	for range 2 {
		_, _, err := execute(t, patientsNDJSON,
			"run", "--config", config, "--output", "sqlite", "--db", db, "--table", "names", "--replace")
		require.NoError(t, err)
	}

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	rows, err := st.ReadTable(context.Background(), "names", []string{"id", "family", "given"})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestRunSQLiteRollsBackOnError(t *testing.T) {
	dir := t.TempDir()
	config := writeFile(t, dir, "view.json", `{
		"resource": "Patient",
		"select": [{"path": "id"}, {"path": "%undefined", "name": "u"}]
	}`)
	db := filepath.Join(dir, "out.db")

	_, stderr, err := execute(t, patientsNDJSON,
		"run", "--config", config, "--output", "sqlite", "--db", db, "--table", "broken")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stderr, "run failed")
	assert.NotContains(t, stderr, "rollback failed")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.ReadRuns(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunSQLiteRequiresDatabase(t *testing.T) {
	config := writeFile(t, t.TempDir(), "view.json", namesView)

	_, _, err := execute(t, "", "run", "--config", config, "--output", "sqlite")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--db is required")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunSQLiteUsesRunIDGenerator(t *testing.T) {
	dir := t.TempDir()
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "json"},
		Config:      writeFile(t, dir, "view.json", namesView),
		Output:      OutputSQLite,
		Database:    filepath.Join(dir, "out.db"),
		Table:       "names",
		RunIDs:      testutil.FixedRunID("run-fixed"),
	}
	cmd := NewRunCommand(opts.RootOptions)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(patientsNDJSON))

	require.NoError(t, runView(opts, nil, cmd))
	assert.Contains(t, stdout.String(), `"run_id":"run-fixed"`)
	assert.Contains(t, stderr.String(), "run_id=run-fixed")

	st, err := store.Open(opts.Database)
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.ReadRuns(context.Background(), "names")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-fixed", runs[0].RunID)
}
