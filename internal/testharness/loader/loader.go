package loader

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sensorkit/sensorkit-go/pkg/sensor"
)

// ParseTestCase parses a test case from YAML bytes.
func ParseTestCase(data []byte) (*TestCase, error) {
	var tc TestCase
	if err := yaml.Unmarshal(data, &tc); err != nil {
		return nil, &LoadError{
			Line:    yamlLine(err),
			Message: "failed to parse YAML",
			Cause:   err,
		}
	}
	if err := ValidateTestCase(&tc); err != nil {
		return nil, err
	}
	return &tc, nil
}

// ParseTestSuite parses a suite file holding several cases.
func ParseTestSuite(data []byte) (*TestSuite, error) {
	var suite TestSuite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, &LoadError{
			Line:    yamlLine(err),
			Message: "failed to parse YAML",
			Cause:   err,
		}
	}
	if len(suite.Cases) == 0 {
		return nil, &LoadError{Message: "suite must have at least one case"}
	}
	for _, tc := range suite.Cases {
		if err := ValidateTestCase(tc); err != nil {
			return nil, err
		}
		if len(suite.Requires) > 0 {
			tc.Requires = append(slices.Clone(suite.Requires), tc.Requires...)
		}
	}
	return &suite, nil
}

// ValidateTestCase checks the structural rules every case must satisfy.
func ValidateTestCase(tc *TestCase) error {
	if tc.ID == "" {
		return &LoadError{Message: "test case ID is required"}
	}
	if len(tc.Steps) == 0 {
		return &LoadError{Message: fmt.Sprintf("test case %s must have at least one step", tc.ID)}
	}
	if tc.Timeout != "" {
		if _, err := time.ParseDuration(tc.Timeout); err != nil {
			return &LoadError{Message: fmt.Sprintf("test case %s: invalid timeout %q", tc.ID, tc.Timeout)}
		}
	}
	for i, step := range tc.Steps {
		if step.Action == "" {
			return &LoadError{Message: fmt.Sprintf("test case %s: step %d has no action", tc.ID, i+1)}
		}
		if step.Timeout != "" {
			if _, err := time.ParseDuration(step.Timeout); err != nil {
				return &LoadError{Message: fmt.Sprintf("test case %s: step %d: invalid timeout %q", tc.ID, i+1, step.Timeout)}
			}
		}
	}
	for _, req := range tc.Requires {
		if _, err := sensor.ParseID(req); err != nil {
			return &LoadError{Message: fmt.Sprintf("test case %s: requires", tc.ID), Cause: err}
		}
	}
	return nil
}

// LoadTestCase loads a test case from a file.
func LoadTestCase(path string) (*TestCase, error) {
	cases, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if len(cases) != 1 {
		return nil, &LoadError{File: path, Message: fmt.Sprintf("expected one test case, found %d", len(cases))}
	}
	return cases[0], nil
}

// LoadFile loads every case in a file. A file is either a single case or a
// suite with a top-level "cases" list.
func LoadFile(path string) ([]*TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{
			File:    path,
			Message: "failed to read file",
			Cause:   err,
		}
	}

	var cases []*TestCase
	if isSuite(data) {
		var suite *TestSuite
		suite, err = ParseTestSuite(data)
		if suite != nil {
			cases = suite.Cases
		}
	} else {
		var tc *TestCase
		tc, err = ParseTestCase(data)
		if tc != nil {
			cases = []*TestCase{tc}
		}
	}
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Message: "invalid test case", Cause: err}
	}
	return cases, nil
}

// LoadDirectory loads all test cases from a directory.
// Only files with .yaml or .yml extensions are loaded.
func LoadDirectory(dir string) ([]*TestCase, error) {
	var cases []*TestCase

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &LoadError{
			File:    dir,
			Message: "failed to read directory",
			Cause:   err,
		}
	}

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		loaded, err := LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		cases = append(cases, loaded...)
	}

	return cases, checkUniqueIDs(cases)
}

// LoadDirectoryRecursive loads all test cases from a directory and subdirectories.
func LoadDirectoryRecursive(dir string) ([]*TestCase, error) {
	var cases []*TestCase

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAML(path) {
			return nil
		}
		loaded, err := LoadFile(path)
		if err != nil {
			return err
		}
		cases = append(cases, loaded...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return cases, checkUniqueIDs(cases)
}

// CheckRequirements reports whether catalog supports every required sensor.
// Unparseable requirements are never satisfied.
func CheckRequirements(catalog *sensor.Catalog, requires []string) bool {
	for _, req := range requires {
		id, err := sensor.ParseID(req)
		if err != nil || !catalog.Supports(id) {
			return false
		}
	}
	return true
}

// FilterTestCases returns the cases whose requirements catalog satisfies.
// A nil catalog keeps every case.
func FilterTestCases(cases []*TestCase, catalog *sensor.Catalog) []*TestCase {
	if catalog == nil {
		return cases
	}
	var result []*TestCase
	for _, tc := range cases {
		if CheckRequirements(catalog, tc.Requires) {
			result = append(result, tc)
		}
	}
	return result
}

// FilterByPattern keeps cases whose ID or name contains pattern
// (case-insensitive).
func FilterByPattern(cases []*TestCase, pattern string) []*TestCase {
	if pattern == "" {
		return cases
	}
	p := strings.ToLower(pattern)
	var result []*TestCase
	for _, tc := range cases {
		if strings.Contains(strings.ToLower(tc.ID), p) || strings.Contains(strings.ToLower(tc.Name), p) {
			result = append(result, tc)
		}
	}
	return result
}

// FilterByTags keeps cases carrying at least one of tags.
func FilterByTags(cases []*TestCase, tags []string) []*TestCase {
	if len(tags) == 0 {
		return cases
	}
	var result []*TestCase
	for _, tc := range cases {
		for _, tag := range tags {
			if slices.Contains(tc.Tags, tag) {
				result = append(result, tc)
				break
			}
		}
	}
	return result
}

func checkUniqueIDs(cases []*TestCase) error {
	seen := make(map[string]bool, len(cases))
	for _, tc := range cases {
		if seen[tc.ID] {
			return &LoadError{Message: fmt.Sprintf("duplicate test case ID %s", tc.ID)}
		}
		seen[tc.ID] = true
	}
	return nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// isSuite detects a top-level "cases:" key.
func isSuite(data []byte) bool {
	for _, line := range bytes.Split(data, []byte("\n")) {
		if bytes.HasPrefix(line, []byte("cases:")) {
			return true
		}
	}
	return false
}

// yamlLine extracts the first line number from a yaml.v3 error.
func yamlLine(err error) int {
	var te *yaml.TypeError
	msg := err.Error()
	if errors.As(err, &te) && len(te.Errors) > 0 {
		msg = te.Errors[0]
	}
	var line int
	if i := strings.Index(msg, "line "); i >= 0 {
		fmt.Sscanf(msg[i:], "line %d", &line)
	}
	return line
}
