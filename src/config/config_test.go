package config

import (
	"testing"
	"time"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"TESTFORGE_PROVIDER", "TESTFORGE_MODEL", "TESTFORGE_STRATEGY", "TESTFORGE_MAX_WORKERS"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() unexpected error: %v", err)
	}

	if cfg.Provider != DefaultProvider {
		t.Errorf("Provider = %q, want %q", cfg.Provider, DefaultProvider)
	}
	if cfg.Model != "mock" {
		t.Errorf("Model = %q, want mock default for mock provider", cfg.Model)
	}
	if cfg.Strategy != DefaultStrategy {
		t.Errorf("Strategy = %q, want %q", cfg.Strategy, DefaultStrategy)
	}
	if cfg.MaxWorkers != DefaultMaxWorkers {
		t.Errorf("MaxWorkers = %d, want %d", cfg.MaxWorkers, DefaultMaxWorkers)
	}
	if cfg.MinWorkers != DefaultMinWorkers {
		t.Errorf("MinWorkers = %d, want %d", cfg.MinWorkers, DefaultMinWorkers)
	}
	if cfg.RecoveryTimeout != 60*time.Second {
		t.Errorf("RecoveryTimeout = %v, want 60s", cfg.RecoveryTimeout)
	}
	if !cfg.SavePrompts {
		t.Error("SavePrompts should default to true")
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("TESTFORGE_PROVIDER", "deepseek")
	t.Setenv("TESTFORGE_API_KEY", "key-123")
	t.Setenv("TESTFORGE_MAX_WORKERS", "8")
	t.Setenv("TESTFORGE_MIN_WORKERS", "2")
	t.Setenv("TESTFORGE_STRATEGY", "adaptive")
	t.Setenv("REDPANDA_BROKERS", "localhost:19092,localhost:29092")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() unexpected error: %v", err)
	}

	if cfg.Provider != "deepseek" {
		t.Errorf("Provider = %q, want deepseek", cfg.Provider)
	}
	if cfg.Model != "deepseek-chat" {
		t.Errorf("Model = %q, want provider default deepseek-chat", cfg.Model)
	}
	if cfg.MaxWorkers != 8 {
		t.Errorf("MaxWorkers = %d, want 8", cfg.MaxWorkers)
	}
	if cfg.MinWorkers != 2 {
		t.Errorf("MinWorkers = %d, want 2", cfg.MinWorkers)
	}
	if len(cfg.RedpandaBrokers) != 2 {
		t.Errorf("RedpandaBrokers = %v, want two addresses", cfg.RedpandaBrokers)
	}
}

func TestLoadFromEnvRejectsBadValues(t *testing.T) {
	t.Run("non-numeric workers", func(t *testing.T) {
		t.Setenv("TESTFORGE_MAX_WORKERS", "many")
		if _, err := LoadFromEnv(); err == nil {
			t.Error("expected error for non-numeric TESTFORGE_MAX_WORKERS")
		}
	})

	t.Run("missing api key", func(t *testing.T) {
		t.Setenv("TESTFORGE_PROVIDER", "openai")
		if _, err := LoadFromEnv(); err == nil {
			t.Error("expected error for openai without API key")
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{name: "mock needs no key", cfg: Config{Provider: "mock", Strategy: "sequential", MaxWorkers: 1, MinWorkers: 1, MaxAttempts: 1}, ok: true},
		{name: "unknown provider", cfg: Config{Provider: "oracle", Strategy: "sequential", MaxWorkers: 1, MinWorkers: 1, MaxAttempts: 1}, ok: false},
		{name: "unknown strategy", cfg: Config{Provider: "mock", Strategy: "psychic", MaxWorkers: 1, MinWorkers: 1, MaxAttempts: 1}, ok: false},
		{name: "zero workers", cfg: Config{Provider: "mock", Strategy: "adaptive", MaxWorkers: 0, MinWorkers: 1, MaxAttempts: 1}, ok: false},
		{name: "zero attempts", cfg: Config{Provider: "mock", Strategy: "adaptive", MaxWorkers: 1, MinWorkers: 1, MaxAttempts: 0}, ok: false},
		{name: "min above max", cfg: Config{Provider: "mock", Strategy: "adaptive", MaxWorkers: 2, MinWorkers: 3, MaxAttempts: 1}, ok: false},
		{name: "openai with key", cfg: Config{Provider: "openai", APIKey: "k", Strategy: "concurrent", MaxWorkers: 2, MinWorkers: 1, MaxAttempts: 3}, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() err = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}
