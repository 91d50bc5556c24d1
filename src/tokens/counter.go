// Package tokens estimates token costs so compressed contexts stay inside a
// model's request budget.
package tokens

import "encoding/json"

// charsPerToken is the estimation ratio: roughly four characters of
// source-heavy text per token.
const charsPerToken = 4

// minAvailable is the smallest context budget ever reported; below this the
// prompt cannot carry enough information to be worth sending.
const minAvailable = 500

// completionReserve is the fraction of the model limit kept back for the
// completion and safety margin.
const completionReserve = 0.8

// modelLimits maps provider -> model -> request token limit.
var modelLimits = map[string]map[string]int{
	"openai": {
		"gpt-3.5-turbo": 4096,
		"gpt-4":         8192,
		"gpt-4-turbo":   128000,
	},
	"deepseek": {
		"deepseek-chat":  128000,
		"deepseek-coder": 16384,
	},
	"mock": {
		"mock": 8000,
	},
}

// defaultLimit applies to unknown provider/model pairs.
const defaultLimit = 4000

// Counter estimates token counts for a fixed provider+model pair.
type Counter struct {
	provider string
	model    string
}

// NewCounter returns a counter for the given provider and model.
func NewCounter(provider, model string) *Counter {
	return &Counter{provider: provider, model: model}
}

// Count estimates the token cost of text.
func (c *Counter) Count(text string) int {
	return Estimate(text)
}

// CountJSON estimates the token cost of a value in its JSON encoding, which
// is how structured context travels inside the prompt.
func (c *Counter) CountJSON(v interface{}) int {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return Estimate(string(data))
}

// ModelLimit returns the request token limit for the counter's model.
func (c *Counter) ModelLimit() int {
	if models, ok := modelLimits[c.provider]; ok {
		if limit, ok := models[c.model]; ok {
			return limit
		}
	}
	return defaultLimit
}

// Available computes the context budget left after reserving completion space
// and subtracting the base prompt overhead. Never less than minAvailable.
func (c *Counter) Available(basePromptTokens int) int {
	available := int(float64(c.ModelLimit())*completionReserve) - basePromptTokens
	if available < minAvailable {
		return minAvailable
	}
	return available
}

// Estimate is the package-level character heuristic, usable without a Counter.
func Estimate(text string) int {
	return len(text) / charsPerToken
}
