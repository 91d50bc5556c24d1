package schedule

import (
	"context"
	"sort"
	"sync"

	"testforge-agent/src/contracts"
	"testforge-agent/src/logger"
)

// Concurrent runs tasks through a bounded worker pool. Completion order is
// nondeterministic; results are re-sorted by task index before returning.
type Concurrent struct {
	maxWorkers int
	log        logger.Logger
}

// Name implements Strategy.
func (c *Concurrent) Name() string { return "concurrent" }

// Execute implements Strategy.
func (c *Concurrent) Execute(ctx context.Context, tasks []*contracts.GenerationTask, process Processor) []*contracts.GenerationResult {
	return runPool(ctx, tasks, process, c.maxWorkers)
}

// runPool fans tasks out to a fixed number of workers and collects results in
// input order. Shared by the concurrent strategy and adaptive batches.
func runPool(ctx context.Context, tasks []*contracts.GenerationTask, process Processor, workers int) []*contracts.GenerationResult {
	if workers > len(tasks) {
		workers = len(tasks)
	}
	if workers < 1 {
		workers = 1
	}

	taskCh := make(chan *contracts.GenerationTask)
	resultCh := make(chan *contracts.GenerationResult, len(tasks))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				if err := ctx.Err(); err != nil {
					resultCh <- cancelledResult(task, err)
					continue
				}
				resultCh <- process(ctx, task)
			}
		}()
	}

	for _, task := range tasks {
		taskCh <- task
	}
	close(taskCh)
	wg.Wait()
	close(resultCh)

	results := make([]*contracts.GenerationResult, 0, len(tasks))
	for result := range resultCh {
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Task.Index < results[j].Task.Index
	})
	return results
}
