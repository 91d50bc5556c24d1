package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"testforge-agent/src/contracts"
	"testforge-agent/src/resilience"
)

// Local drives a self-hosted OpenAI-style chat-completions server (llama.cpp,
// vLLM, LM Studio and the like). No authentication is sent unless an API key
// is configured.
type Local struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewLocal creates a provider for a local inference server. baseURL is the
// server root, e.g. "http://localhost:8080".
func NewLocal(apiKey, baseURL, model string) *Local {
	return &Local{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 600 * time.Second, // local models can be slow
		},
	}
}

// Name implements Provider.
func (p *Local) Name() string { return "local" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type localChatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type localChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate implements Provider.
func (p *Local) Generate(ctx context.Context, req GenerationRequest) (GenerationResponse, error) {
	if err := req.Validate(); err != nil {
		return GenerationResponse{}, err
	}

	system := req.SystemPrompt
	if system == "" {
		system = systemPromptFor(req.Language)
	}

	payload := localChatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return GenerationResponse{}, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return GenerationResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return GenerationResponse{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return GenerationResponse{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return GenerationResponse{}, &resilience.HTTPStatusError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	var parsed localChatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return GenerationResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return GenerationResponse{}, fmt.Errorf("backend returned no choices")
	}

	model := parsed.Model
	if model == "" {
		model = p.model
	}
	return GenerationResponse{
		Content: parsed.Choices[0].Message.Content,
		Usage: contracts.TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
		Model: model,
	}, nil
}
