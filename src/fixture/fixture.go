// Package fixture scans an existing unit-test directory for Google Test
// fixtures and coverage so new tests can reuse what is already there.
package fixture

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"testforge-agent/src/contracts"
	"testforge-agent/src/logger"
)

var (
	fixtureClassPattern = regexp.MustCompile(`class\s+(\w+)\s*:\s*public\s+::testing::Test`)
	testCasePattern     = regexp.MustCompile(`TEST(?:_F|_P)?\s*\(\s*(\w+)\s*,\s*(\w+)\s*\)`)
)

// testFileExtensions are the files worth scanning.
var testFileExtensions = map[string]bool{
	".cpp": true,
	".cc":  true,
	".cxx": true,
	".c":   true,
}

// Scanner reads an existing unit-test directory once and answers fixture and
// coverage lookups from the parsed view.
type Scanner struct {
	dir string
	log logger.Logger

	// fixtures maps suite name to the full class definition text.
	fixtures map[string]string
	// files maps test file path to its parsed test cases.
	files map[string][]testCase
}

type testCase struct {
	Suite string
	Name  string
}

// NewScanner parses every test file under dir. A missing or empty directory
// yields a scanner that answers "nothing found" rather than an error.
func NewScanner(dir string, log logger.Logger) (*Scanner, error) {
	s := &Scanner{
		dir:      dir,
		log:      log,
		fixtures: make(map[string]string),
		files:    make(map[string][]testCase),
	}
	if dir == "" {
		return s, nil
	}

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !testFileExtensions[filepath.Ext(path)] {
			return nil
		}
		return s.scanFile(path)
	})
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("unit-test directory %s does not exist, skipping fixture scan", dir)
			return s, nil
		}
		return nil, fmt.Errorf("failed to scan unit-test directory: %w", err)
	}

	log.Debug("fixture scan of %s found %d fixtures in %d files", dir, len(s.fixtures), len(s.files))
	return s, nil
}

func (s *Scanner) scanFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	content := string(data)

	for _, loc := range fixtureClassPattern.FindAllStringSubmatchIndex(content, -1) {
		name := content[loc[2]:loc[3]]
		if def := classDefinition(content, loc[0]); def != "" {
			s.fixtures[name] = def
		}
	}

	var cases []testCase
	for _, m := range testCasePattern.FindAllStringSubmatch(content, -1) {
		cases = append(cases, testCase{Suite: m[1], Name: m[2]})
	}
	s.files[path] = cases
	return nil
}

// classDefinition extracts the full class body starting at the class keyword,
// through the closing brace and semicolon.
func classDefinition(content string, from int) string {
	depth := 0
	seen := false
	for i := from; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
			seen = true
		case '}':
			depth--
			if seen && depth == 0 {
				end := i + 1
				if end < len(content) && content[end] == ';' {
					end++
				}
				return content[from:end]
			}
		}
	}
	return ""
}

// Fixture returns the existing fixture class definition for a suite, or ""
// when none exists.
func (s *Scanner) Fixture(suiteName string) string {
	return s.fixtures[suiteName]
}

// ExistingTests reports pre-existing coverage for a function: test files whose
// name references the function's source stem, and the test cases they hold.
// Returns nil when nothing matches.
func (s *Scanner) ExistingTests(fn contracts.FunctionDescriptor) *contracts.ExistingTestsContext {
	stem := strings.ToLower(fn.SourceStem())
	if stem == "" {
		return nil
	}

	ctx := &contracts.ExistingTestsContext{}
	seenClasses := make(map[string]bool)
	for path, cases := range s.files {
		base := strings.ToLower(filepath.Base(path))
		if !strings.Contains(base, stem) {
			continue
		}
		ctx.MatchedFiles = append(ctx.MatchedFiles, path)
		for _, c := range cases {
			// Only cases that name the target function count as coverage.
			if strings.Contains(strings.ToLower(c.Name), strings.ToLower(fn.Name)) {
				ctx.ExistingTestFunctions = append(ctx.ExistingTestFunctions, c.Name)
				if !seenClasses[c.Suite] {
					seenClasses[c.Suite] = true
					ctx.ExistingTestClasses = append(ctx.ExistingTestClasses, c.Suite)
				}
			}
		}
	}

	if len(ctx.MatchedFiles) == 0 {
		return nil
	}
	if n := len(ctx.ExistingTestFunctions); n > 0 {
		ctx.CoverageSummary = fmt.Sprintf("%d existing test case(s) reference %s", n, fn.Name)
	}
	return ctx
}
