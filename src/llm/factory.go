package llm

import (
	"fmt"

	"testforge-agent/src/config"
)

// NewProvider selects and constructs the configured backend. All provider
// dispatch happens here; call sites hold only the Provider interface.
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAICompatible("openai", cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "deepseek":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.deepseek.com/v1"
		}
		return NewOpenAICompatible("deepseek", cfg.APIKey, baseURL, cfg.Model), nil
	case "dify":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("dify provider requires TESTFORGE_BASE_URL")
		}
		return NewDify(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "local":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:8080"
		}
		return NewLocal(cfg.APIKey, baseURL, cfg.Model), nil
	case "mock":
		return NewMock(cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
