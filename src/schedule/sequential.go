package schedule

import (
	"context"
	"time"

	"testforge-agent/src/contracts"
	"testforge-agent/src/logger"
)

// Sequential processes tasks one at a time with a fixed pause between
// requests, the gentle option for rate-limited backends.
type Sequential struct {
	delay time.Duration
	log   logger.Logger
}

// Name implements Strategy.
func (s *Sequential) Name() string { return "sequential" }

// Execute implements Strategy. The pause is inserted between requests, not
// after the last one. Cancellation stops the walk; remaining tasks are
// reported as failed.
func (s *Sequential) Execute(ctx context.Context, tasks []*contracts.GenerationTask, process Processor) []*contracts.GenerationResult {
	results := make([]*contracts.GenerationResult, 0, len(tasks))

	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			for _, rest := range tasks[i:] {
				results = append(results, cancelledResult(rest, err))
			}
			break
		}

		s.log.Debug("processing %d/%d: %s", i+1, len(tasks), task.FunctionName())
		results = append(results, process(ctx, task))

		if s.delay > 0 && i < len(tasks)-1 {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
			}
		}
	}
	return results
}
