package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/fhirflat/internal/ir"
)

// Snapshot captures what a suite produced for golden comparison.
// All fields use canonical JSON serialization for deterministic comparison.
type Snapshot struct {
	Title   string
	Results []TestResult
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON serialization.
// Diagnostics are left out; they embed go-spew dumps whose layout is not
// part of the contract.
func (s *Snapshot) toCanonicalMap() map[string]any {
	results := make([]any, len(s.Results))
	for i, r := range s.Results {
		m := map[string]any{
			"title": r.Title,
			"pass":  r.Pass,
		}
		if r.Skipped {
			m["skipped"] = true
		}
		if r.Error != "" {
			m["error"] = r.Error
		}
		if r.Rows != nil {
			rows := make([]any, len(r.Rows))
			for j, row := range r.Rows {
				rows[j] = row
			}
			m["rows"] = rows
		}
		results[i] = m
	}
	return map[string]any{
		"title":   s.Title,
		"results": results,
	}
}

// RunWithGolden runs suite and compares its results against a golden file
// stored in testdata/golden/{name}.golden, where name is the suite file's
// base name without extension (or the title for suites not loaded from a
// file).
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, suite *Suite, opts ...Option) (*SuiteResult, error) {
	t.Helper()

	result := Run(context.Background(), suite, opts...)
	if err := AssertGolden(t, goldenName(suite), result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file.
func AssertGolden(t *testing.T, name string, result *SuiteResult) error {
	t.Helper()

	snapshot := Snapshot{Title: result.Title, Results: result.Results}
	data, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

func goldenName(s *Suite) string {
	if s.Path != "" {
		base := filepath.Base(s.Path)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return strings.ReplaceAll(strings.ToLower(s.Title), " ", "_")
}
