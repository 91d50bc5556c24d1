// Package artifacts writes the per-run debug outputs: rendered prompts, raw
// backend responses, per-function test files, and the run summary.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"testforge-agent/src/contracts"
	"testforge-agent/src/logger"
)

// Subdirectories inside a run directory.
const (
	promptsDir   = "prompts"
	responsesDir = "responses"
	testsDir     = "tests"
)

// summaryFile is the run summary written at the end of a run.
const summaryFile = "run_summary.json"

// Store writes debug artifacts under a per-run directory. One store serves a
// single run; concurrent workers write distinct files, so no locking is
// needed beyond the filesystem's.
type Store struct {
	runDir      string
	savePrompts bool
	log         logger.Logger
}

// NewStore creates the run directory under baseDir, named by run start time
// and run ID so consecutive runs never collide.
func NewStore(baseDir, runID string, savePrompts bool, log logger.Logger) (*Store, error) {
	stamp := time.Now().Format("20060102_150405")
	runDir := filepath.Join(baseDir, fmt.Sprintf("run_%s_%s", stamp, shortID(runID)))
	for _, sub := range []string{promptsDir, responsesDir, testsDir} {
		if err := os.MkdirAll(filepath.Join(runDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create artifact directory: %w", err)
		}
	}
	return &Store{runDir: runDir, savePrompts: savePrompts, log: log}, nil
}

// RunDir returns the run's artifact directory.
func (s *Store) RunDir() string { return s.runDir }

// SavePrompt persists the rendered prompt for one function. A no-op unless
// prompt saving is enabled. Returns the written path, or "" when skipped.
func (s *Store) SavePrompt(functionName, prompt string) (string, error) {
	if !s.savePrompts {
		return "", nil
	}
	path := filepath.Join(s.runDir, promptsDir, functionName+"_prompt.md")
	if err := os.WriteFile(path, []byte(prompt), 0o644); err != nil {
		return "", fmt.Errorf("failed to save prompt for %s: %w", functionName, err)
	}
	return path, nil
}

// SaveResult persists the raw response and test code for one result and
// attaches the paths to the result's FileInfo.
func (s *Store) SaveResult(result *contracts.GenerationResult) error {
	name := result.FunctionName()
	info := &contracts.DebugFileInfo{}

	// The response artifact keeps the backend's answer untouched, fences and
	// all; the test artifact holds the extracted source.
	raw := result.RawResponse
	if raw == "" {
		raw = result.TestCode
	}
	if raw != "" {
		responsePath := filepath.Join(s.runDir, responsesDir, name+"_response.txt")
		if err := os.WriteFile(responsePath, []byte(raw), 0o644); err != nil {
			return fmt.Errorf("failed to save response for %s: %w", name, err)
		}
		info.ResponsePath = responsePath
	}

	if result.TestCode != "" {
		testPath := filepath.Join(s.runDir, testsDir, "test_"+name+".cpp")
		if err := os.WriteFile(testPath, []byte(result.TestCode), 0o644); err != nil {
			return fmt.Errorf("failed to save test file for %s: %w", name, err)
		}
		info.TestPath = testPath
	}

	if s.savePrompts && result.Prompt != "" {
		promptPath, err := s.SavePrompt(name, result.Prompt)
		if err != nil {
			return err
		}
		info.PromptPath = promptPath
	}

	result.FileInfo = info
	return nil
}

// SaveSummary writes the run summary JSON and returns its path.
func (s *Store) SaveSummary(summary contracts.RunSummary) (string, error) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode run summary: %w", err)
	}
	path := filepath.Join(s.runDir, summaryFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write run summary: %w", err)
	}
	s.log.Debug("run summary written to %s", path)
	return path, nil
}

func shortID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}
