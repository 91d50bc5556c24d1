// Package aggregate merges generated test fragments into one Google Test
// file per source file. The first fragment for a path is written verbatim;
// merging is append-only after that: includes are unioned, test bodies
// accumulate, and the first main block wins.
package aggregate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"testforge-agent/src/logger"
)

// ErrMalformedFragment marks generated code the aggregator cannot safely
// merge. The fragment is surfaced to the caller instead of being repaired.
var ErrMalformedFragment = errors.New("malformed test fragment")

var (
	includePattern = regexp.MustCompile(`(?m)^\s*#include\s+[<"][^>"]+[>"]`)
	testPattern    = regexp.MustCompile(`(?m)^(TEST|TEST_F|TEST_P)\s*\(`)
	mainPattern    = regexp.MustCompile(`(?m)^int\s+main\s*\(`)
)

// Aggregator merges fragments into per-path aggregate files. Safe for
// concurrent use: writes to distinct paths proceed in parallel, writes to the
// same path serialize on a per-path lock.
type Aggregator struct {
	log logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAggregator creates an aggregator.
func NewAggregator(log logger.Logger) *Aggregator {
	return &Aggregator{
		log:   log,
		locks: make(map[string]*sync.Mutex),
	}
}

// fragment is the parsed form of one generated test file.
type fragment struct {
	includes []string
	tests    string
	main     string
}

// Merge folds testCode into the aggregate file at path, creating it on first
// write. It returns the path written to.
func (a *Aggregator) Merge(path, testCode string) (string, error) {
	frag, err := parseFragment(testCode)
	if err != nil {
		return "", fmt.Errorf("cannot merge into %s: %w", path, err)
	}

	lock := a.pathLock(path)
	lock.Lock()
	defer lock.Unlock()

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read aggregate file: %w", err)
	}

	var merged string
	if len(existing) == 0 {
		// First fragment for this path lands exactly as generated.
		merged = testCode
	} else {
		current, err := parseFragment(string(existing))
		if err != nil {
			return "", fmt.Errorf("aggregate file %s is corrupt: %w", path, err)
		}
		includes := unionIncludes(current.includes, frag.includes)
		tests := current.tests
		if frag.tests != "" {
			tests = joinBlocks(tests, frag.tests)
		}
		// The first main wins; later fragments only contribute tests.
		main := current.main
		if main == "" {
			main = frag.main
		}
		merged = renderAggregate(includes, tests, main)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(merged), 0o644); err != nil {
		return "", fmt.Errorf("failed to write aggregate file: %w", err)
	}

	a.log.Debug("merged fragment into %s", path)
	return path, nil
}

func (a *Aggregator) pathLock(path string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	lock, ok := a.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[path] = lock
	}
	return lock
}

// parseFragment splits a generated test file into includes, test bodies, and
// an optional main block. Fragments with unbalanced braces are rejected.
func parseFragment(code string) (fragment, error) {
	if !balancedBraces(code) {
		return fragment{}, fmt.Errorf("%w: unbalanced braces", ErrMalformedFragment)
	}

	var frag fragment
	frag.includes = includePattern.FindAllString(code, -1)
	for i, inc := range frag.includes {
		frag.includes[i] = strings.TrimSpace(inc)
	}

	body := includePattern.ReplaceAllString(code, "")

	if loc := mainPattern.FindStringIndex(body); loc != nil {
		end := blockEnd(body, loc[0])
		if end < 0 {
			return fragment{}, fmt.Errorf("%w: unterminated main block", ErrMalformedFragment)
		}
		frag.main = strings.TrimSpace(body[loc[0]:end])
		body = body[:loc[0]] + body[end:]
	}

	frag.tests = strings.TrimSpace(body)
	return frag, nil
}

// blockEnd returns the index just past the closing brace of the block whose
// header starts at from, or -1 if the block never closes.
func blockEnd(code string, from int) int {
	depth := 0
	seen := false
	for i := from; i < len(code); i++ {
		switch code[i] {
		case '{':
			depth++
			seen = true
		case '}':
			depth--
			if seen && depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

func balancedBraces(code string) bool {
	depth := 0
	for i := 0; i < len(code); i++ {
		switch code[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

// unionIncludes merges two include lists, deduplicated and sorted for a
// stable file layout.
func unionIncludes(a, b []string) []string {
	seen := make(map[string]bool)
	var union []string
	for _, inc := range append(append([]string{}, a...), b...) {
		if !seen[inc] {
			seen[inc] = true
			union = append(union, inc)
		}
	}
	sort.Strings(union)
	return union
}

func joinBlocks(a, b string) string {
	if a == "" {
		return b
	}
	return a + "\n\n" + b
}

// renderAggregate lays the file out as includes, tests, then main. A main is
// emitted only when one of the merged fragments carried it; the aggregator
// never fabricates a runner.
func renderAggregate(includes []string, tests, main string) string {
	var b strings.Builder
	for _, inc := range includes {
		b.WriteString(inc)
		b.WriteByte('\n')
	}
	if len(includes) > 0 {
		b.WriteByte('\n')
	}
	if tests != "" {
		b.WriteString(tests)
		b.WriteByte('\n')
	}
	if main != "" {
		if tests != "" {
			b.WriteByte('\n')
		}
		b.WriteString(main)
		b.WriteByte('\n')
	}
	return b.String()
}

// HasTests reports whether code contains at least one Google Test case.
func HasTests(code string) bool {
	return testPattern.MatchString(code)
}
