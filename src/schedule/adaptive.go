package schedule

import (
	"context"
	"sync"

	"testforge-agent/src/contracts"
	"testforge-agent/src/logger"
)

// Small runs gain nothing from a pool; below this count adaptive degrades to
// sequential execution.
const smallRunThreshold = 5

// Success-rate bounds steering the worker count between batches.
const (
	shrinkBelow = 0.5
	growAbove   = 0.8
)

// Adaptive sizes its worker pool from observed results: each batch runs as a
// single pass at the current worker count, and the count shrinks after a bad
// batch or grows after a good one, taking effect on the next batch. The pool
// size never changes while a batch is in flight.
type Adaptive struct {
	maxWorkers int
	minWorkers int
	cfg        Config
	log        logger.Logger

	mu             sync.Mutex
	currentWorkers int
}

// NewAdaptive creates an adaptive strategy. Unless configured otherwise it
// starts at half the worker limit and never shrinks below one worker.
func NewAdaptive(cfg Config, log logger.Logger) *Adaptive {
	floor := cfg.MinWorkers
	if floor < 1 {
		floor = 1
	}
	start := cfg.InitialWorkers
	if start <= 0 {
		start = cfg.MaxWorkers / 2
	}
	if start < floor {
		start = floor
	}
	if start > cfg.MaxWorkers {
		start = cfg.MaxWorkers
	}
	return &Adaptive{
		maxWorkers:     cfg.MaxWorkers,
		minWorkers:     floor,
		cfg:            cfg,
		log:            log,
		currentWorkers: start,
	}
}

// Name implements Strategy.
func (a *Adaptive) Name() string { return "adaptive" }

// Execute implements Strategy.
func (a *Adaptive) Execute(ctx context.Context, tasks []*contracts.GenerationTask, process Processor) []*contracts.GenerationResult {
	if len(tasks) <= smallRunThreshold {
		a.log.Debug("small run (%d tasks), falling back to sequential", len(tasks))
		seq := &Sequential{delay: a.cfg.Delay, log: a.log}
		return seq.Execute(ctx, tasks, process)
	}

	results := runPool(ctx, tasks, process, a.Workers())
	a.adjust(successRate(results))
	return results
}

// Workers reports the current pool size.
func (a *Adaptive) Workers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentWorkers
}

// adjust moves the worker count one step based on the last batch, clamped to
// [minWorkers, maxWorkers].
func (a *Adaptive) adjust(rate float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	before := a.currentWorkers
	switch {
	case rate < shrinkBelow && a.currentWorkers > a.minWorkers:
		a.currentWorkers--
	case rate > growAbove && a.currentWorkers < a.maxWorkers:
		a.currentWorkers++
	}
	if a.currentWorkers != before {
		a.log.Debug("batch success rate %.2f, workers %d -> %d", rate, before, a.currentWorkers)
	}
}

func successRate(results []*contracts.GenerationResult) float64 {
	if len(results) == 0 {
		return 1
	}
	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
		}
	}
	return float64(ok) / float64(len(results))
}
