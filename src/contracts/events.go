package contracts

// Topic names for the generation event stream. In-process runs use the
// in-memory broker; distributed observers consume the same payloads from
// Redpanda.
const (
	// TopicGenerationEvents carries task lifecycle events for one run.
	TopicGenerationEvents = "testforge.generation.events"
)

// Event stages published during a run.
const (
	StageTasksPrepared = "tasks_prepared"
	StagePromptSaved   = "prompt_saved"
	StageTaskStarted   = "task_started"
	StageTaskFinished  = "task_finished"
	StageRunCompleted  = "run_completed"
)

// GenerationEvent is one progress notification for a run.
type GenerationEvent struct {
	RunID string `json:"run_id"`
	// One of the Stage* constants.
	Stage string `json:"stage"`
	// Function the event refers to; empty for run-level events.
	FunctionName string `json:"function_name,omitempty"`
	// True when Stage is task_finished and the task succeeded.
	Success bool `json:"success,omitempty"`
	// Completed task count so far.
	Completed int `json:"completed"`
	// Total tasks in the run.
	Total int `json:"total"`
	// Error text for failed tasks.
	Error string `json:"error,omitempty"`
	// RFC3339 timestamp.
	Timestamp string `json:"timestamp"`
}
