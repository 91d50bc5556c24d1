package contracts

import "time"

// TokenUsage reports token consumption for one backend call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerationTask is one unit of work for the pipeline: generate tests for a
// single function and merge them into the per-source aggregate file.
// Immutable after creation except for Prompt, which is attached once rendered.
type GenerationTask struct {
	// Index is the position of the task in the run's input order. Results are
	// re-sorted by this index after concurrent execution.
	Index int `json:"index"`
	// Function under test.
	Function FunctionDescriptor `json:"function"`
	// Extraction context for the function.
	Context RawContext `json:"context"`
	// Path of the aggregate test file this task's output merges into.
	TargetPath string `json:"target_path"`
	// GTest suite name, derived from the source stem.
	SuiteName string `json:"suite_name"`
	// Fixture definition found in the configured unit-test directory, if any.
	ExistingFixtureCode string `json:"existing_fixture_code,omitempty"`
	// Pre-existing coverage for the function, if any.
	ExistingTests *ExistingTestsContext `json:"existing_tests,omitempty"`
	// Rendered prompt. Set once during the render phase.
	Prompt string `json:"prompt,omitempty"`
}

// FunctionName is a convenience accessor for logging.
func (t *GenerationTask) FunctionName() string { return t.Function.Name }

// Language returns the task's language tag, defaulting to "c".
func (t *GenerationTask) Language() string {
	if t.Function.Language == "" {
		return "c"
	}
	return t.Function.Language
}

// DebugFileInfo records where the per-function debug artifacts were written.
type DebugFileInfo struct {
	PromptPath   string `json:"prompt_path,omitempty"`
	ResponsePath string `json:"response_path,omitempty"`
	TestPath     string `json:"test_path,omitempty"`
}

// GenerationResult is the outcome of one task.
type GenerationResult struct {
	Task    *GenerationTask `json:"-"`
	Success bool            `json:"success"`
	// TestCode is the extracted test source, fences stripped.
	TestCode string `json:"test_code,omitempty"`
	// RawResponse is the backend's answer exactly as received. Persisted as a
	// debug artifact, never serialized.
	RawResponse string `json:"-"`
	Prompt      string `json:"-"`
	Error    string          `json:"error,omitempty"`
	Usage    TokenUsage      `json:"usage"`
	Model    string          `json:"model,omitempty"`
	// OutputPath is the aggregate file the test code was merged into.
	// Attached by the file manager after a successful merge.
	OutputPath string         `json:"output_path,omitempty"`
	FileInfo   *DebugFileInfo `json:"file_info,omitempty"`
}

// FunctionName returns the originating function's name.
func (r *GenerationResult) FunctionName() string {
	if r.Task == nil {
		return "unknown"
	}
	return r.Task.Function.Name
}

// RunSummary is the generation metadata attached to an AggregatedResult and
// written to the run-summary file.
type RunSummary struct {
	RunID          string         `json:"run_id"`
	Provider       string         `json:"provider"`
	Model          string         `json:"model"`
	Strategy       string         `json:"strategy"`
	TotalFunctions int            `json:"total_functions"`
	Successful     int            `json:"successful"`
	Failed         int            `json:"failed"`
	SuccessRate    float64        `json:"success_rate"`
	TotalTokens    int            `json:"total_tokens"`
	AverageTokens  float64        `json:"average_tokens"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	DurationSecs   float64        `json:"duration_secs"`
	FailuresByKind map[string]int `json:"failures_by_kind,omitempty"`
}

// AggregatedResult collects everything a run produced. Read-only after the
// run completes.
type AggregatedResult struct {
	Results []*GenerationResult `json:"results"`
	Summary RunSummary          `json:"summary"`
}

// SuccessfulCount returns the number of successful results.
func (a *AggregatedResult) SuccessfulCount() int {
	n := 0
	for _, r := range a.Results {
		if r.Success {
			n++
		}
	}
	return n
}

// FailedCount returns the number of failed results.
func (a *AggregatedResult) FailedCount() int {
	return len(a.Results) - a.SuccessfulCount()
}
