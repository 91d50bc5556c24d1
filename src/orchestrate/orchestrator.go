// Package orchestrate drives a full generation run: task preparation, prompt
// rendering, resilient execution, aggregation, and the run summary.
package orchestrate

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"testforge-agent/src/aggregate"
	"testforge-agent/src/artifacts"
	"testforge-agent/src/broker"
	"testforge-agent/src/compress"
	"testforge-agent/src/config"
	"testforge-agent/src/contracts"
	"testforge-agent/src/fixture"
	"testforge-agent/src/generate"
	"testforge-agent/src/llm"
	"testforge-agent/src/logger"
	"testforge-agent/src/schedule"
	"testforge-agent/src/tokens"
)

// failureKindChars caps the error prefix used to bucket failures in the run
// summary.
const failureKindChars = 50

// Orchestrator owns one run's pipeline components.
type Orchestrator struct {
	cfg        *config.Config
	provider   llm.Provider
	generator  *generate.Generator
	strategy   schedule.Strategy
	aggregator *aggregate.Aggregator
	scanner    *fixture.Scanner
	events     broker.Broker
	log        logger.Logger

	runID     string
	completed atomic.Int64
}

// New wires an orchestrator from configuration. events may be nil, in which
// case an in-memory broker is created.
func New(cfg *config.Config, events broker.Broker, log logger.Logger) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider, err := llm.NewProvider(cfg)
	if err != nil {
		return nil, err
	}

	counter := tokens.NewCounter(cfg.Provider, cfg.Model)
	compressor := compress.NewCompressor(counter, generate.BasePromptTokens)
	generator := generate.NewGenerator(provider, compressor, generate.Options{
		MaxAttempts:      cfg.MaxAttempts,
		FailureThreshold: cfg.FailureThreshold,
		RecoveryTimeout:  cfg.RecoveryTimeout,
	}, log)

	strategy, err := schedule.New(cfg.Strategy, schedule.Config{
		MaxWorkers: cfg.MaxWorkers,
		MinWorkers: cfg.MinWorkers,
		Delay:      cfg.DelayBetweenRequests,
	}, log)
	if err != nil {
		return nil, err
	}

	scanner, err := fixture.NewScanner(cfg.UnitTestDir, log)
	if err != nil {
		return nil, err
	}

	if events == nil {
		events = broker.NewInMemoryBroker()
	}

	return &Orchestrator{
		cfg:        cfg,
		provider:   provider,
		generator:  generator,
		strategy:   strategy,
		aggregator: aggregate.NewAggregator(log),
		scanner:    scanner,
		events:     events,
		log:        log,
		runID:      uuid.NewString(),
	}, nil
}

// RunID returns the run identifier assigned at construction.
func (o *Orchestrator) RunID() string { return o.runID }

// Run executes the full pipeline over the analyzed functions and returns the
// aggregated result. Individual task failures do not fail the run.
func (o *Orchestrator) Run(ctx context.Context, functions []contracts.AnalyzedFunction) (*contracts.AggregatedResult, error) {
	startedAt := time.Now()

	tasks := o.prepareTasks(functions)
	if len(tasks) == 0 {
		return nil, fmt.Errorf("no testable functions: all inputs were skipped")
	}
	o.publish(ctx, contracts.GenerationEvent{
		Stage: contracts.StageTasksPrepared,
		Total: len(tasks),
	})

	store, err := artifacts.NewStore(o.cfg.OutputDir, o.runID, o.cfg.SavePrompts, o.log)
	if err != nil {
		return nil, err
	}

	o.renderPrompts(ctx, tasks, store)

	o.log.Info("run %s: %d task(s) via %s strategy on %s/%s",
		o.runID, len(tasks), o.strategy.Name(), o.provider.Name(), o.cfg.Model)

	results := o.strategy.Execute(ctx, tasks, func(ctx context.Context, task *contracts.GenerationTask) *contracts.GenerationResult {
		return o.processTask(ctx, task, store)
	})

	aggregated := o.summarize(results, startedAt, time.Now())
	if path, err := store.SaveSummary(aggregated.Summary); err != nil {
		o.log.Error("failed to write run summary: %v", err)
	} else {
		o.log.Info("run summary: %s", path)
	}

	o.publish(ctx, contracts.GenerationEvent{
		Stage:     contracts.StageRunCompleted,
		Completed: len(results),
		Total:     len(tasks),
	})
	return aggregated, nil
}

// prepareTasks converts analyzed functions to tasks. Static functions are
// skipped: they have internal linkage and cannot be called from a separate
// test binary.
func (o *Orchestrator) prepareTasks(functions []contracts.AnalyzedFunction) []*contracts.GenerationTask {
	var tasks []*contracts.GenerationTask
	for _, fn := range functions {
		if fn.Function.IsStatic {
			o.log.Warn("skipping static function %s (%s): not linkable from tests",
				fn.Function.Name, fn.Function.File)
			continue
		}

		stem := fn.Function.SourceStem()
		suite := suiteName(stem)
		task := &contracts.GenerationTask{
			Index:      len(tasks),
			Function:   fn.Function,
			Context:    fn.Context,
			TargetPath: filepath.Join(o.cfg.OutputDir, "test_"+stem+".cpp"),
			SuiteName:  suite,
		}
		task.ExistingFixtureCode = o.scanner.Fixture(suite)
		if fn.Existing != nil {
			task.ExistingTests = fn.Existing
		} else {
			task.ExistingTests = o.scanner.ExistingTests(fn.Function)
		}
		tasks = append(tasks, task)
	}
	return tasks
}

// renderPrompts renders every prompt up front so failures surface before any
// backend call, and persists them when prompt saving is on.
func (o *Orchestrator) renderPrompts(ctx context.Context, tasks []*contracts.GenerationTask, store *artifacts.Store) {
	for _, task := range tasks {
		prompt := o.generator.Prompt(task)
		if path, err := store.SavePrompt(task.FunctionName(), prompt); err != nil {
			o.log.Warn("failed to save prompt for %s: %v", task.FunctionName(), err)
		} else if path != "" {
			o.publish(ctx, contracts.GenerationEvent{
				Stage:        contracts.StagePromptSaved,
				FunctionName: task.FunctionName(),
				Total:        len(tasks),
			})
		}
	}
}

// processTask is the per-task unit handed to the execution strategy.
func (o *Orchestrator) processTask(ctx context.Context, task *contracts.GenerationTask, store *artifacts.Store) *contracts.GenerationResult {
	o.publish(ctx, contracts.GenerationEvent{
		Stage:        contracts.StageTaskStarted,
		FunctionName: task.FunctionName(),
		Completed:    int(o.completed.Load()),
	})

	result := o.generator.Generate(ctx, task)

	if result.Success {
		if path, err := o.aggregator.Merge(task.TargetPath, result.TestCode); err != nil {
			result.Success = false
			result.Error = err.Error()
			o.log.Error("aggregation failed for %s: %v", task.FunctionName(), err)
		} else {
			result.OutputPath = path
		}
	}
	if err := store.SaveResult(result); err != nil {
		o.log.Warn("failed to save artifacts for %s: %v", task.FunctionName(), err)
	}

	completed := o.completed.Add(1)
	o.publish(ctx, contracts.GenerationEvent{
		Stage:        contracts.StageTaskFinished,
		FunctionName: task.FunctionName(),
		Success:      result.Success,
		Completed:    int(completed),
		Error:        result.Error,
	})
	return result
}

// summarize folds results into the run summary.
func (o *Orchestrator) summarize(results []*contracts.GenerationResult, startedAt, finishedAt time.Time) *contracts.AggregatedResult {
	summary := contracts.RunSummary{
		RunID:          o.runID,
		Provider:       o.provider.Name(),
		Model:          o.cfg.Model,
		Strategy:       o.strategy.Name(),
		TotalFunctions: len(results),
		StartedAt:      startedAt,
		FinishedAt:     finishedAt,
		DurationSecs:   finishedAt.Sub(startedAt).Seconds(),
		FailuresByKind: make(map[string]int),
	}

	for _, r := range results {
		if r.Success {
			summary.Successful++
			summary.TotalTokens += r.Usage.TotalTokens
		} else {
			summary.Failed++
			summary.FailuresByKind[failureKind(r.Error)]++
		}
	}
	if summary.TotalFunctions > 0 {
		summary.SuccessRate = float64(summary.Successful) / float64(summary.TotalFunctions)
	}
	if summary.Successful > 0 {
		summary.AverageTokens = float64(summary.TotalTokens) / float64(summary.Successful)
	}
	if len(summary.FailuresByKind) == 0 {
		summary.FailuresByKind = nil
	}

	return &contracts.AggregatedResult{Results: results, Summary: summary}
}

// publish sends a run event; delivery problems are logged, never fatal.
func (o *Orchestrator) publish(ctx context.Context, event contracts.GenerationEvent) {
	event.RunID = o.runID
	event.Timestamp = time.Now().Format(time.RFC3339)

	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := o.events.Publish(ctx, contracts.TopicGenerationEvents, o.runID, payload); err != nil {
		o.log.Debug("event publish failed: %v", err)
	}
}

// failureKind buckets an error message by its leading characters so the
// summary groups repeated failures without storing every message.
func failureKind(message string) string {
	if message == "" {
		return "unknown"
	}
	if len(message) > failureKindChars {
		return message[:failureKindChars]
	}
	return message
}

// suiteName converts a source stem like "math_utils" to a GTest suite name
// like "MathUtilsTest".
func suiteName(stem string) string {
	var b strings.Builder
	upper := true
	for _, r := range stem {
		switch {
		case r == '_' || r == '-' || r == '.':
			upper = true
		case upper:
			b.WriteRune(toUpper(r))
			upper = false
		default:
			b.WriteRune(r)
		}
	}
	b.WriteString("Test")
	return b.String()
}

func toUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}
