// Package schedule decides how prepared tasks are executed: one at a time,
// through a bounded worker pool, or adaptively sized between the two.
package schedule

import (
	"context"
	"fmt"
	"time"

	"testforge-agent/src/contracts"
	"testforge-agent/src/logger"
)

// Processor executes a single task. Implementations must tolerate concurrent
// invocation; the concurrent and adaptive strategies share one processor
// across workers.
type Processor func(ctx context.Context, task *contracts.GenerationTask) *contracts.GenerationResult

// Strategy runs a batch of tasks. The returned slice is in task input order
// regardless of completion order, with one result per task.
type Strategy interface {
	Execute(ctx context.Context, tasks []*contracts.GenerationTask, process Processor) []*contracts.GenerationResult
	Name() string
}

// Config carries the knobs shared by the strategies.
type Config struct {
	// MaxWorkers bounds concurrency for the concurrent and adaptive strategies.
	MaxWorkers int
	// MinWorkers is the floor the adaptive strategy never shrinks below.
	// Defaults to 1.
	MinWorkers int
	// InitialWorkers is the adaptive strategy's starting pool size.
	// Defaults to half of MaxWorkers.
	InitialWorkers int
	// Delay is the pause between consecutive sequential requests.
	Delay time.Duration
}

// New constructs the named strategy.
func New(name string, cfg Config, log logger.Logger) (Strategy, error) {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 3
	}
	if cfg.MinWorkers <= 0 {
		cfg.MinWorkers = 1
	}
	switch name {
	case "sequential":
		return &Sequential{delay: cfg.Delay, log: log}, nil
	case "concurrent":
		return &Concurrent{maxWorkers: cfg.MaxWorkers, log: log}, nil
	case "adaptive":
		return NewAdaptive(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown execution strategy %q", name)
	}
}

// Names lists the available strategies for help output.
func Names() []string {
	return []string{"sequential", "concurrent", "adaptive"}
}

// cancelledResult converts a context error into a failed result so a
// cancelled run still reports one result per task.
func cancelledResult(task *contracts.GenerationTask, err error) *contracts.GenerationResult {
	return &contracts.GenerationResult{
		Task:  task,
		Error: err.Error(),
	}
}
