package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/fhirflat/internal/compiler"
)

// LoadSuite reads and parses a suite file (.json, .yaml or .yml).
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
	case ".yaml", ".yml":
		if data, err = compiler.YAMLToJSON(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%s: unsupported suite format %q", path, filepath.Ext(path))
	}

	suite, err := ParseSuite(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	suite.Path = path
	return suite, nil
}

// ParseSuite decodes and validates a JSON suite.
func ParseSuite(data []byte) (*Suite, error) {
	var suite Suite
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields() // catches typos like "expects:"
	if err := dec.Decode(&suite); err != nil {
		return nil, fmt.Errorf("failed to parse suite: %w", err)
	}
	if err := validateSuite(&suite); err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}
	return &suite, nil
}

// LoadSuites loads every suite file in dir, in name order. A non-empty
// filter is a glob matched against file names.
func LoadSuites(dir, filter string) ([]*Suite, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite directory: %w", err)
	}
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", filter, err)
		}
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		if filter != "" {
			if ok, _ := filepath.Match(filter, e.Name()); !ok {
				continue
			}
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)

	suites := make([]*Suite, 0, len(names))
	for _, name := range names {
		s, err := LoadSuite(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		suites = append(suites, s)
	}
	return suites, nil
}

// validateSuite checks that required fields are present and valid.
func validateSuite(s *Suite) error {
	if s.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(s.Resources) > 0 && len(s.Documents) > 0 {
		return fmt.Errorf("resources and documents are mutually exclusive")
	}
	if len(s.Tests) == 0 {
		return fmt.Errorf("tests list is required and must be non-empty")
	}

	for i, tc := range s.Tests {
		if tc.Title == "" {
			return fmt.Errorf("tests[%d]: title is required", i)
		}
		if len(bytes.TrimSpace(tc.View)) == 0 || bytes.Equal(bytes.TrimSpace(tc.View), []byte("null")) {
			return fmt.Errorf("tests[%d] %q: view is required", i, tc.Title)
		}
		if tc.Skip {
			continue
		}
		if tc.Expect == nil && tc.ExpectColumns == nil && !tc.ExpectError {
			return fmt.Errorf("tests[%d] %q: one of expect, expectColumns or expectError is required", i, tc.Title)
		}
		if tc.ExpectError && tc.Expect != nil {
			return fmt.Errorf("tests[%d] %q: expect and expectError are mutually exclusive", i, tc.Title)
		}
	}
	return nil
}
