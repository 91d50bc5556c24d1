package generate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"testforge-agent/src/compress"
	"testforge-agent/src/contracts"
	"testforge-agent/src/llm"
	"testforge-agent/src/logger"
	"testforge-agent/src/tokens"
)

func sampleTask(name string) *contracts.GenerationTask {
	return &contracts.GenerationTask{
		Index: 0,
		Function: contracts.FunctionDescriptor{
			Name:       name,
			ReturnType: "int",
			Parameters: []contracts.Parameter{
				{Name: "a", Type: "int"},
				{Name: "b", Type: "int"},
			},
			Body:     "int " + name + "(int a, int b) {\n    return a + b;\n}",
			File:     "src/math_utils.c",
			Line:     10,
			Language: "c",
		},
		Context: contracts.RawContext{
			CalledFunctions: []contracts.CalledFunction{
				{Name: "check_overflow", ReturnType: "int", IsStatic: true, Definition: "static int check_overflow(int a, int b) { return 0; }", Location: "src/math_utils.c"},
			},
			MacrosUsed:       []string{"MAX_VALUE"},
			MacroDefinitions: []contracts.MacroDefinition{{Name: "MAX_VALUE", Definition: "#define MAX_VALUE 2147483647"}},
			CallSites: []contracts.CallSite{
				{File: "src/main.c", Line: 42, Context: "int sum = " + name + "(x, y);"},
			},
			CompilationFlags: []string{"-Iinclude", "-Wall", "-std=c11"},
		},
		TargetPath: "out/test_math_utils.cpp",
		SuiteName:  "MathUtilsTest",
	}
}

func newTestGenerator(p llm.Provider) *Generator {
	counter := tokens.NewCounter("mock", "mock")
	compressor := compress.NewCompressor(counter, BasePromptTokens)
	return NewGenerator(p, compressor, Options{MaxAttempts: 3, FailureThreshold: 5, RecoveryTimeout: time.Minute}, logger.NewSilentLogger())
}

func TestRenderPromptSections(t *testing.T) {
	task := sampleTask("add")
	counter := tokens.NewCounter("mock", "mock")
	compressor := compress.NewCompressor(counter, BasePromptTokens)
	prompt := RenderPrompt(task, compressor.Compress(task.Function, task.Context))

	wantLines := []string{
		"# Target Function",
		"Name: add",
		"Signature: int add(int a, int b)",
		"# Implementation",
		"# Dependencies",
		"check_overflow",
		"static int check_overflow",
		"# Macro Definitions",
		"MAX_VALUE",
		"# Usage Examples",
		"src/main.c:42",
		"# Compilation",
		"-Iinclude -std=c11",
		"# Requirements",
		"suite MathUtilsTest",
	}
	for _, want := range wantLines {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if !strings.Contains(prompt, task.Function.Body) {
		t.Error("prompt missing full function body")
	}
	if strings.Contains(prompt, "-Wall") {
		t.Error("irrelevant compile flag leaked into prompt")
	}
}

func TestRenderPromptFixtureAndCoverage(t *testing.T) {
	task := sampleTask("add")
	task.ExistingFixtureCode = "class MathUtilsTest : public ::testing::Test {};"
	task.ExistingTests = &contracts.ExistingTestsContext{
		ExistingTestFunctions: []string{"AddNormalCases"},
		CoverageSummary:       "covers positive operands only",
	}

	counter := tokens.NewCounter("mock", "mock")
	compressor := compress.NewCompressor(counter, BasePromptTokens)
	prompt := RenderPrompt(task, compressor.Compress(task.Function, task.Context))

	if !strings.Contains(prompt, "# Existing Fixture") {
		t.Error("fixture section missing")
	}
	if !strings.Contains(prompt, "# Existing Coverage") {
		t.Error("coverage section missing")
	}
	if !strings.Contains(prompt, "AddNormalCases") {
		t.Error("existing test names missing")
	}
}

func TestGenerateSuccess(t *testing.T) {
	g := newTestGenerator(llm.NewMock("mock"))
	task := sampleTask("add")

	result := g.Generate(context.Background(), task)
	if !result.Success {
		t.Fatalf("Generate failed: %s", result.Error)
	}
	if !strings.Contains(result.TestCode, "AddCommutative") {
		t.Error("mock provider did not key on the prompt's Name line")
	}
	if result.Usage.TotalTokens == 0 {
		t.Error("usage not recorded")
	}
	if result.Prompt == "" || task.Prompt == "" {
		t.Error("prompt not cached on the task")
	}
}

// fencedProvider answers with the test wrapped in markdown fences, the way
// chat backends usually do.
type fencedProvider struct{}

func (fencedProvider) Name() string { return "fenced" }

func (fencedProvider) Generate(ctx context.Context, req llm.GenerationRequest) (llm.GenerationResponse, error) {
	return llm.GenerationResponse{
		Content: "```cpp\n#include <gtest/gtest.h>\nTEST(S, C) { EXPECT_EQ(1, 1); }\n```",
		Usage:   contracts.TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
		Model:   "fenced",
	}, nil
}

func TestGenerateKeepsRawResponse(t *testing.T) {
	g := newTestGenerator(fencedProvider{})

	result := g.Generate(context.Background(), sampleTask("add"))
	if !result.Success {
		t.Fatalf("Generate failed: %s", result.Error)
	}
	if !strings.HasPrefix(result.RawResponse, "```cpp") {
		t.Error("raw response lost the backend's original framing")
	}
	if strings.Contains(result.TestCode, "```") {
		t.Error("test code still carries fences")
	}
	if !strings.Contains(result.TestCode, "TEST(S, C)") {
		t.Error("extracted test body missing")
	}
}

func TestGenerateFailureProducesResult(t *testing.T) {
	p := llm.NewMock("mock")
	p.FailWith = errors.New("invalid api key")
	g := newTestGenerator(p)

	result := g.Generate(context.Background(), sampleTask("add"))
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Error == "" {
		t.Error("failure carries no error message")
	}
	if result.Task == nil {
		t.Error("failure lost its task")
	}
}

func TestPromptRenderedOnce(t *testing.T) {
	g := newTestGenerator(llm.NewMock("mock"))
	task := sampleTask("add")

	first := g.Prompt(task)
	task.Function.Name = "changed"
	if g.Prompt(task) != first {
		t.Error("cached prompt was re-rendered")
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "no fences", in: "#include <gtest/gtest.h>\n", want: "#include <gtest/gtest.h>\n"},
		{name: "plain fences", in: "```\ncode\n```", want: "code"},
		{name: "language tag", in: "```cpp\ncode\n```", want: "code"},
		{name: "missing closing fence", in: "```cpp\ncode", want: "code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFences(tt.in); got != tt.want {
				t.Errorf("StripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidateTestCode(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantWarnings int
	}{
		{name: "valid", content: "#include <gtest/gtest.h>\nTEST(S, C) { EXPECT_EQ(1, 1); }", wantWarnings: 0},
		{name: "empty", content: "  \n", wantWarnings: 1},
		{name: "leftover fences", content: "```\n#include <x>\nTEST(S, C) { EXPECT_EQ(1, 1); }\n```", wantWarnings: 1},
		{name: "no includes no tests no asserts", content: "int main() { return 0; }", wantWarnings: 3},
		{name: "tests without assertions", content: "#include <x>\nTEST(S, C) { run(); }", wantWarnings: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings := ValidateTestCode(tt.content)
			if len(warnings) != tt.wantWarnings {
				t.Errorf("got %d warnings %v, want %d", len(warnings), warnings, tt.wantWarnings)
			}
		})
	}
}
