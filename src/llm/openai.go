package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"testforge-agent/src/contracts"
	"testforge-agent/src/resilience"
)

// OpenAICompatible drives any chat-completions backend that speaks the
// OpenAI API, including DeepSeek via a BaseURL override.
type OpenAICompatible struct {
	client *openai.Client
	model  string
	name   string
}

// NewOpenAICompatible creates a provider for the given endpoint. name is the
// configured provider identifier ("openai", "deepseek", ...); baseURL may be
// empty for the default OpenAI endpoint.
func NewOpenAICompatible(name, apiKey, baseURL, model string) *OpenAICompatible {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAICompatible{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		name:   name,
	}
}

// Name implements Provider.
func (p *OpenAICompatible) Name() string { return p.name }

// Generate implements Provider.
func (p *OpenAICompatible) Generate(ctx context.Context, req GenerationRequest) (GenerationResponse, error) {
	if err := req.Validate(); err != nil {
		return GenerationResponse{}, err
	}

	system := req.SystemPrompt
	if system == "" {
		system = systemPromptFor(req.Language)
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return GenerationResponse{}, translateOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return GenerationResponse{}, fmt.Errorf("backend returned no choices")
	}

	return GenerationResponse{
		Content: resp.Choices[0].Message.Content,
		Usage: contracts.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Model: resp.Model,
	}, nil
}

// translateOpenAIError surfaces the HTTP status as a typed error so the
// classifier does not depend on SDK message text.
func translateOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &resilience.HTTPStatusError{
			StatusCode: apiErr.HTTPStatusCode,
			Body:       apiErr.Message,
		}
	}
	return err
}
