package generate

import (
	"context"
	"fmt"
	"time"

	"testforge-agent/src/compress"
	"testforge-agent/src/contracts"
	"testforge-agent/src/llm"
	"testforge-agent/src/logger"
	"testforge-agent/src/resilience"
)

// Backend request parameters for test generation.
const (
	maxCompletionTokens = 2500
	temperature         = 0.3
)

// Generator turns one prepared task into test code. Every backend call goes
// through the shared circuit breaker and the retry policy.
type Generator struct {
	provider   llm.Provider
	compressor *compress.Compressor
	retry      resilience.RetryConfig
	breaker    *resilience.CircuitBreaker
	log        logger.Logger
}

// Options tunes the resilience wrapping around backend calls.
type Options struct {
	MaxAttempts      int
	FailureThreshold int
	RecoveryTimeout  time.Duration
}

// NewGenerator creates a generator. The compressor must be sized for the same
// provider+model the backend serves.
func NewGenerator(provider llm.Provider, compressor *compress.Compressor, opts Options, log logger.Logger) *Generator {
	retry := resilience.DefaultRetryConfig()
	if opts.MaxAttempts > 0 {
		retry.MaxAttempts = opts.MaxAttempts
	}
	threshold := opts.FailureThreshold
	if threshold <= 0 {
		threshold = 5
	}
	timeout := opts.RecoveryTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Generator{
		provider:   provider,
		compressor: compressor,
		retry:      retry,
		breaker:    resilience.NewCircuitBreaker(threshold, timeout),
		log:        log,
	}
}

// Prompt renders the task's prompt, compressing the raw context first. The
// rendered prompt is cached on the task so the render and execute phases
// agree on what was sent.
func (g *Generator) Prompt(task *contracts.GenerationTask) string {
	if task.Prompt != "" {
		return task.Prompt
	}
	compressed := g.compressor.Compress(task.Function, task.Context)
	if compressed.Level > 0 {
		g.log.Debug("context for %s compressed to level %d (%d tokens)",
			task.FunctionName(), compressed.Level, compressed.TokenCount)
	}
	task.Prompt = RenderPrompt(task, compressed)
	return task.Prompt
}

// Generate produces test code for one task. The returned result always
// carries the task and prompt; on failure Success is false and Error holds
// the classified message.
func (g *Generator) Generate(ctx context.Context, task *contracts.GenerationTask) *contracts.GenerationResult {
	result := &contracts.GenerationResult{Task: task}
	result.Prompt = g.Prompt(task)

	req := llm.GenerationRequest{
		Prompt:      result.Prompt,
		MaxTokens:   maxCompletionTokens,
		Temperature: temperature,
		Language:    task.Language(),
	}

	operation := fmt.Sprintf("generate tests for %s", task.FunctionName())
	var resp llm.GenerationResponse
	err := resilience.Retry(ctx, g.retry, g.log, operation, func() error {
		return g.breaker.Call(func() error {
			var callErr error
			resp, callErr = g.provider.Generate(ctx, req)
			return callErr
		})
	})
	if err != nil {
		result.Error = err.Error()
		return result
	}

	code := StripCodeFences(resp.Content)
	if warnings := ValidateTestCode(code); len(warnings) > 0 {
		// Suspicious output is still a success; the user decides what to keep.
		g.log.Warn("generated tests for %s look suspect, %s", task.FunctionName(), warningSummary(warnings))
	}

	result.Success = true
	result.RawResponse = resp.Content
	result.TestCode = code
	result.Usage = resp.Usage
	result.Model = resp.Model
	return result
}

// BreakerState exposes the breaker state for status reporting.
func (g *Generator) BreakerState() resilience.BreakerState {
	return g.breaker.State()
}
