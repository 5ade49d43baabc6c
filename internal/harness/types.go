package harness

import "encoding/json"

// Suite is a set of tests sharing one resource list.
type Suite struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// Resources are the documents every test runs against.
	Resources []any `json:"resources,omitempty"`

	// Documents is an alias for Resources.
	Documents []any `json:"documents,omitempty"`

	Tests []TestCase `json:"tests"`

	// Path is the file the suite was loaded from, if any.
	Path string `json:"-"`
}

// Docs returns the suite's documents, whichever key carried them.
func (s *Suite) Docs() []any {
	if len(s.Resources) > 0 {
		return s.Resources
	}
	return s.Documents
}

// TestCase is one view run against the suite's resources.
type TestCase struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	// View is the view definition, decoded when the test runs so that an
	// invalid view is a test outcome rather than a load failure.
	View json.RawMessage `json:"view"`

	// Expect lists the expected rows in any order. An empty list expects
	// no rows; nil means rows are not checked.
	Expect []map[string]any `json:"expect,omitempty"`

	ExpectColumns []string `json:"expectColumns,omitempty"`
	ExpectError   bool     `json:"expectError,omitempty"`

	Skip bool `json:"skip,omitempty"`
}

// SuiteResult is the outcome of running a suite.
type SuiteResult struct {
	Title   string       `json:"title"`
	Path    string       `json:"path,omitempty"`
	Results []TestResult `json:"results"`
	Passed  int          `json:"passed"`
	Failed  int          `json:"failed"`
	Skipped int          `json:"skipped"`
}

// Pass reports whether no test failed.
func (r *SuiteResult) Pass() bool {
	return r.Failed == 0
}

func (r *SuiteResult) add(tr TestResult) {
	switch {
	case tr.Skipped:
		r.Skipped++
	case tr.Pass:
		r.Passed++
	default:
		r.Failed++
	}
	r.Results = append(r.Results, tr)
}

// TestResult is the outcome of one test.
type TestResult struct {
	Title string `json:"title"`
	Pass  bool   `json:"pass"`

	Skipped bool `json:"skipped,omitempty"`

	// Diagnostic explains a failed comparison. Empty on success.
	Diagnostic string `json:"diagnostic,omitempty"`

	// Error is the compile or run error, if one occurred.
	Error string `json:"error,omitempty"`

	// Rows are the rows the view produced.
	Rows []map[string]any `json:"rows,omitempty"`
}
