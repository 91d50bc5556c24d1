// Package llm abstracts the text-generation backend behind a Provider
// interface with OpenAI-compatible, Dify, local, and mock implementations.
package llm

import (
	"context"
	"fmt"

	"testforge-agent/src/contracts"
)

// GenerationRequest is one backend invocation.
type GenerationRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
	// Language tags the request so providers can pick a system prompt.
	Language string
	// SystemPrompt overrides the language-derived system prompt when set.
	SystemPrompt string
}

// Validate rejects requests that would fail at the backend anyway.
func (r GenerationRequest) Validate() error {
	if r.Prompt == "" {
		return fmt.Errorf("prompt cannot be empty")
	}
	if r.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", r.MaxTokens)
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0, 2], got %v", r.Temperature)
	}
	return nil
}

// GenerationResponse is a successful backend reply. Failures are returned as
// errors so the resilience layer can classify them.
type GenerationResponse struct {
	Content string
	Usage   contracts.TokenUsage
	Model   string
}

// Provider is a generation backend. Implementations must be safe for
// concurrent use; the concurrent execution strategy shares one provider
// across workers.
type Provider interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResponse, error)
	Name() string
}

// systemPromptFor returns the language-specific system prompt.
func systemPromptFor(language string) string {
	switch language {
	case "cpp":
		return "You are a professional C++ unit-test engineer. You produce complete Google Test + MockCpp test files."
	case "c":
		return "You are a professional C unit-test engineer. You produce complete Google Test test files."
	default:
		return "You are a professional C/C++ unit-test engineer. You produce complete Google Test + MockCpp test files."
	}
}
