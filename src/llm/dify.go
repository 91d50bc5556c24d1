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
	"testforge-agent/src/tokens"
)

// Dify drives a Dify completion-messages workflow endpoint.
type Dify struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewDify creates a Dify provider. baseURL is the instance root, e.g.
// "https://api.dify.ai".
func NewDify(apiKey, baseURL, model string) *Dify {
	return &Dify{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 300 * time.Second,
		},
	}
}

// Name implements Provider.
func (p *Dify) Name() string { return "dify" }

type difyRequest struct {
	Inputs       map[string]string `json:"inputs"`
	Query        string            `json:"query"`
	ResponseMode string            `json:"response_mode"`
	User         string            `json:"user"`
}

type difyResponse struct {
	Answer   string `json:"answer"`
	Metadata struct {
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	} `json:"metadata"`
}

// Generate implements Provider.
func (p *Dify) Generate(ctx context.Context, req GenerationRequest) (GenerationResponse, error) {
	if err := req.Validate(); err != nil {
		return GenerationResponse{}, err
	}

	payload := difyRequest{
		Inputs:       map[string]string{"language": req.Language},
		Query:        req.Prompt,
		ResponseMode: "blocking",
		User:         "testforge",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return GenerationResponse{}, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/completion-messages", bytes.NewReader(body))
	if err != nil {
		return GenerationResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

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

	var parsed difyResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return GenerationResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if parsed.Answer == "" {
		return GenerationResponse{}, fmt.Errorf("backend returned an empty answer")
	}

	usage := contracts.TokenUsage{
		PromptTokens:     parsed.Metadata.Usage.PromptTokens,
		CompletionTokens: parsed.Metadata.Usage.CompletionTokens,
		TotalTokens:      parsed.Metadata.Usage.TotalTokens,
	}
	// Dify workflows do not always report usage; estimate so summaries stay
	// populated.
	if usage.TotalTokens == 0 {
		usage.PromptTokens = tokens.Estimate(req.Prompt)
		usage.CompletionTokens = tokens.Estimate(parsed.Answer)
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}

	return GenerationResponse{
		Content: parsed.Answer,
		Usage:   usage,
		Model:   p.model,
	}, nil
}
