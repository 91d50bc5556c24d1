// Package config provides configuration for the testforge pipeline.
// Values come from TESTFORGE_* environment variables and may be overridden by
// CLI flags; the resulting Config value is passed explicitly through
// constructors.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the full run configuration.
type Config struct {
	// Provider selects the generation backend: openai, deepseek, dify,
	// local, or mock.
	Provider string
	// Model identifier for the selected provider.
	Model string
	// APIKey authenticates against the provider. Not required for mock/local.
	APIKey string
	// BaseURL overrides the provider endpoint (deepseek, local, self-hosted).
	BaseURL string

	// OutputDir is where aggregate test files, debug artifacts, and the run
	// summary are written.
	OutputDir string
	// UnitTestDir, when set, is scanned for existing fixtures and tests.
	UnitTestDir string

	// Strategy names the execution strategy: sequential, concurrent, adaptive.
	Strategy string
	// MaxWorkers bounds the concurrent worker pool.
	MaxWorkers int
	// MinWorkers is the floor the adaptive strategy never shrinks below.
	MinWorkers int
	// DelayBetweenRequests paces sequential execution.
	DelayBetweenRequests time.Duration

	// MaxAttempts bounds retries per backend call.
	MaxAttempts int
	// FailureThreshold is the consecutive-failure count that opens the
	// circuit breaker.
	FailureThreshold int
	// RecoveryTimeout is how long the breaker stays open before probing.
	RecoveryTimeout time.Duration

	// RedpandaBrokers, when non-empty, publishes generation events to
	// Redpanda instead of the in-memory broker.
	RedpandaBrokers []string

	// SavePrompts persists every rendered prompt before backend calls.
	SavePrompts bool
	// Verbose enables debug logging.
	Verbose bool
}

// Default values applied by LoadFromEnv when the variable is unset.
const (
	DefaultProvider         = "mock"
	DefaultStrategy         = "concurrent"
	DefaultMaxWorkers       = 3
	DefaultMinWorkers       = 1
	DefaultMaxAttempts      = 3
	DefaultFailureThreshold = 5
	DefaultRecoveryTimeout  = 60 * time.Second
	DefaultRequestDelay     = time.Second
)

// DefaultModelFor returns the provider's default model identifier.
func DefaultModelFor(provider string) string {
	switch provider {
	case "deepseek":
		return "deepseek-chat"
	case "dify":
		return "dify-workflow"
	case "local":
		return "local-model"
	case "mock":
		return "mock"
	default:
		return "gpt-3.5-turbo"
	}
}

// LoadFromEnv builds a Config from environment variables, applying defaults
// for anything unset.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Provider:             envOr("TESTFORGE_PROVIDER", DefaultProvider),
		Model:                os.Getenv("TESTFORGE_MODEL"),
		APIKey:               os.Getenv("TESTFORGE_API_KEY"),
		BaseURL:              os.Getenv("TESTFORGE_BASE_URL"),
		OutputDir:            envOr("TESTFORGE_OUTPUT_DIR", "./generated_tests"),
		UnitTestDir:          os.Getenv("TESTFORGE_UNIT_TEST_DIR"),
		Strategy:             envOr("TESTFORGE_STRATEGY", DefaultStrategy),
		MaxWorkers:           DefaultMaxWorkers,
		MinWorkers:           DefaultMinWorkers,
		DelayBetweenRequests: DefaultRequestDelay,
		MaxAttempts:          DefaultMaxAttempts,
		FailureThreshold:     DefaultFailureThreshold,
		RecoveryTimeout:      DefaultRecoveryTimeout,
		SavePrompts:          true,
	}

	if cfg.Model == "" {
		cfg.Model = DefaultModelFor(cfg.Provider)
	}

	var err error
	if cfg.MaxWorkers, err = envInt("TESTFORGE_MAX_WORKERS", cfg.MaxWorkers); err != nil {
		return nil, err
	}
	if cfg.MinWorkers, err = envInt("TESTFORGE_MIN_WORKERS", cfg.MinWorkers); err != nil {
		return nil, err
	}
	if cfg.MaxAttempts, err = envInt("TESTFORGE_MAX_ATTEMPTS", cfg.MaxAttempts); err != nil {
		return nil, err
	}
	if cfg.FailureThreshold, err = envInt("TESTFORGE_FAILURE_THRESHOLD", cfg.FailureThreshold); err != nil {
		return nil, err
	}

	if brokers := os.Getenv("REDPANDA_BROKERS"); brokers != "" {
		cfg.RedpandaBrokers = strings.Split(brokers, ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as confusing
// mid-run failures.
func (c *Config) Validate() error {
	switch c.Provider {
	case "openai", "deepseek", "dify", "local", "mock":
	default:
		return fmt.Errorf("unknown provider %q (want openai, deepseek, dify, local, or mock)", c.Provider)
	}
	switch c.Strategy {
	case "sequential", "concurrent", "adaptive":
	default:
		return fmt.Errorf("unknown execution strategy %q (want sequential, concurrent, or adaptive)", c.Strategy)
	}
	if c.Provider != "mock" && c.Provider != "local" && c.APIKey == "" {
		return fmt.Errorf("TESTFORGE_API_KEY is required for provider %q", c.Provider)
	}
	if c.MaxWorkers < 1 {
		return fmt.Errorf("max workers must be at least 1, got %d", c.MaxWorkers)
	}
	if c.MinWorkers < 1 || c.MinWorkers > c.MaxWorkers {
		return fmt.Errorf("min workers must be in [1, max workers], got %d", c.MinWorkers)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
