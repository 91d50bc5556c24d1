package orchestrate

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"testforge-agent/src/broker"
	"testforge-agent/src/config"
	"testforge-agent/src/contracts"
	"testforge-agent/src/logger"
)

func mockConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Provider:             "mock",
		Model:                "mock",
		OutputDir:            t.TempDir(),
		Strategy:             "sequential",
		MaxWorkers:           2,
		MinWorkers:           1,
		DelayBetweenRequests: 0,
		MaxAttempts:          2,
		FailureThreshold:     5,
		RecoveryTimeout:      time.Minute,
		SavePrompts:          true,
	}
}

func analyzed(name, file string, static bool) contracts.AnalyzedFunction {
	return contracts.AnalyzedFunction{
		Function: contracts.FunctionDescriptor{
			Name:       name,
			ReturnType: "int",
			Parameters: []contracts.Parameter{{Name: "a", Type: "int"}, {Name: "b", Type: "int"}},
			Body:       "int " + name + "(int a, int b) { return a + b; }",
			File:       file,
			Line:       1,
			Language:   "c",
			IsStatic:   static,
		},
	}
}

func TestRunEndToEnd(t *testing.T) {
	cfg := mockConfig(t)
	o, err := New(cfg, nil, logger.NewSilentLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	functions := []contracts.AnalyzedFunction{
		analyzed("add", "src/math_utils.c", false),
		analyzed("multiply", "src/math_utils.c", false),
	}
	result, err := o.Run(context.Background(), functions)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Summary.Successful != 2 || result.Summary.Failed != 0 {
		t.Fatalf("summary = %d ok / %d failed, want 2/0", result.Summary.Successful, result.Summary.Failed)
	}
	if result.Summary.SuccessRate != 1 {
		t.Errorf("success rate = %v, want 1", result.Summary.SuccessRate)
	}
	if result.Summary.TotalTokens == 0 {
		t.Error("token totals missing")
	}
	if result.Summary.RunID != o.RunID() {
		t.Error("summary run id mismatch")
	}

	// Both functions share a source file, so they merge into one aggregate.
	aggregatePath := filepath.Join(cfg.OutputDir, "test_math_utils.cpp")
	data, err := os.ReadFile(aggregatePath)
	if err != nil {
		t.Fatalf("aggregate file missing: %v", err)
	}
	content := string(data)
	for _, want := range []string{"AddNormalCases", "MultiplyWithZero"} {
		if !strings.Contains(content, want) {
			t.Errorf("aggregate missing %q", want)
		}
	}
	if n := strings.Count(content, "int main"); n != 1 {
		t.Errorf("aggregate has %d main blocks, want 1", n)
	}

	for _, r := range result.Results {
		if r.OutputPath != aggregatePath {
			t.Errorf("result output path = %s, want %s", r.OutputPath, aggregatePath)
		}
		if r.FileInfo == nil || r.FileInfo.PromptPath == "" {
			t.Error("prompt artifact not recorded")
		}
	}
}

func TestRunSkipsStaticFunctions(t *testing.T) {
	o, err := New(mockConfig(t), nil, logger.NewSilentLogger())
	if err != nil {
		t.Fatal(err)
	}

	functions := []contracts.AnalyzedFunction{
		analyzed("add", "src/math_utils.c", false),
		analyzed("helper", "src/math_utils.c", true),
	}
	result, err := o.Run(context.Background(), functions)
	if err != nil {
		t.Fatal(err)
	}
	if result.Summary.TotalFunctions != 1 {
		t.Errorf("total functions = %d, want 1 after skipping static", result.Summary.TotalFunctions)
	}
}

func TestRunAllStaticFails(t *testing.T) {
	o, err := New(mockConfig(t), nil, logger.NewSilentLogger())
	if err != nil {
		t.Fatal(err)
	}

	_, err = o.Run(context.Background(), []contracts.AnalyzedFunction{
		analyzed("helper", "src/math_utils.c", true),
	})
	if err == nil {
		t.Error("run with no testable functions should fail")
	}
}

func TestRunPublishesLifecycleEvents(t *testing.T) {
	events := broker.NewInMemoryBroker()
	defer events.Close()

	ctx := context.Background()
	ch, err := events.Subscribe(ctx, contracts.TopicGenerationEvents, "")
	if err != nil {
		t.Fatal(err)
	}

	o, err := New(mockConfig(t), events, logger.NewSilentLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.Run(ctx, []contracts.AnalyzedFunction{analyzed("add", "src/math_utils.c", false)}); err != nil {
		t.Fatal(err)
	}

	stages := make(map[string]int)
	deadline := time.After(2 * time.Second)
collect:
	for {
		select {
		case msg := <-ch:
			var event contracts.GenerationEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				t.Fatalf("event not JSON: %v", err)
			}
			if event.RunID != o.RunID() {
				t.Errorf("event run id %s, want %s", event.RunID, o.RunID())
			}
			stages[event.Stage]++
			if event.Stage == contracts.StageRunCompleted {
				break collect
			}
		case <-deadline:
			t.Fatal("run_completed event never arrived")
		}
	}

	for _, stage := range []string{
		contracts.StageTasksPrepared,
		contracts.StagePromptSaved,
		contracts.StageTaskStarted,
		contracts.StageTaskFinished,
		contracts.StageRunCompleted,
	} {
		if stages[stage] == 0 {
			t.Errorf("stage %s never published", stage)
		}
	}
}

func TestRunWritesSummaryFile(t *testing.T) {
	cfg := mockConfig(t)
	o, err := New(cfg, nil, logger.NewSilentLogger())
	if err != nil {
		t.Fatal(err)
	}

	result, err := o.Run(context.Background(), []contracts.AnalyzedFunction{
		analyzed("add", "src/math_utils.c", false),
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Summary.FailuresByKind != nil {
		t.Errorf("unexpected failure breakdown for a clean run: %v", result.Summary.FailuresByKind)
	}

	summaryPath := ""
	entries, err := os.ReadDir(cfg.OutputDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "run_") {
			summaryPath = filepath.Join(cfg.OutputDir, e.Name(), "run_summary.json")
		}
	}
	if summaryPath == "" {
		t.Fatal("run directory not created")
	}
	if _, err := os.Stat(summaryPath); err != nil {
		t.Errorf("run summary not written: %v", err)
	}
}

func TestSummarizeFailureBreakdown(t *testing.T) {
	o, err := New(mockConfig(t), nil, logger.NewSilentLogger())
	if err != nil {
		t.Fatal(err)
	}

	task := &contracts.GenerationTask{Function: contracts.FunctionDescriptor{Name: "add"}}
	longMessage := strings.Repeat("backend unavailable ", 10)
	results := []*contracts.GenerationResult{
		{Task: task, Success: true, Usage: contracts.TokenUsage{TotalTokens: 100}},
		{Task: task, Error: "rate limit exceeded"},
		{Task: task, Error: "rate limit exceeded"},
		{Task: task, Error: longMessage},
	}

	now := time.Now()
	agg := o.summarize(results, now.Add(-time.Second), now)

	if agg.Summary.Successful != 1 || agg.Summary.Failed != 3 {
		t.Fatalf("summary = %d ok / %d failed, want 1/3", agg.Summary.Successful, agg.Summary.Failed)
	}
	if agg.Summary.FailuresByKind["rate limit exceeded"] != 2 {
		t.Errorf("failure breakdown = %v, want rate limit bucket of 2", agg.Summary.FailuresByKind)
	}
	for kind := range agg.Summary.FailuresByKind {
		if len(kind) > 50 {
			t.Errorf("failure kind %q longer than 50 chars", kind)
		}
	}
	if agg.Summary.AverageTokens != 100 {
		t.Errorf("average tokens = %v, want 100", agg.Summary.AverageTokens)
	}
}

func TestSuiteName(t *testing.T) {
	tests := []struct {
		stem string
		want string
	}{
		{stem: "math_utils", want: "MathUtilsTest"},
		{stem: "parser", want: "ParserTest"},
		{stem: "string-buffer", want: "StringBufferTest"},
	}
	for _, tt := range tests {
		if got := suiteName(tt.stem); got != tt.want {
			t.Errorf("suiteName(%q) = %q, want %q", tt.stem, got, tt.want)
		}
	}
}
