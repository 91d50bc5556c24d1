// Package generate renders prompts from compressed contexts and drives the
// generation backend through the resilience layer.
package generate

import (
	"fmt"
	"strings"

	"testforge-agent/src/compress"
	"testforge-agent/src/contracts"
)

// RenderPrompt produces the backend prompt for one task from its compressed
// context. The layout is sectioned so debug artifacts stay readable.
func RenderPrompt(task *contracts.GenerationTask, ctx compress.Context) string {
	var b strings.Builder
	target := ctx.Target

	langDisplay := "C"
	if target.Language == "cpp" {
		langDisplay = "C++"
	}

	b.WriteString("# Target Function\n")
	fmt.Fprintf(&b, "Name: %s\n", target.Name)
	fmt.Fprintf(&b, "Signature: %s\n", target.Signature)
	fmt.Fprintf(&b, "Return type: %s\n", target.ReturnType)
	fmt.Fprintf(&b, "Language: %s\n", langDisplay)
	fmt.Fprintf(&b, "Location: %s\n", target.Location)
	fmt.Fprintf(&b, "Static: %s\n", yesNo(target.IsStatic))
	if target.AccessSpecifier != "" {
		fmt.Fprintf(&b, "Access: %s\n", target.AccessSpecifier)
	}

	b.WriteString("\n# Implementation\n")
	fmt.Fprintf(&b, "```%s\n%s\n```\n", target.Language, target.Body)

	b.WriteString("\n# Dependencies\n")
	if len(ctx.CalledFunctions) == 0 {
		b.WriteString("Called functions: none\n")
	} else {
		names := make([]string, 0, len(ctx.CalledFunctions))
		for _, fn := range ctx.CalledFunctions {
			names = append(names, fn.Name)
		}
		fmt.Fprintf(&b, "Called functions: %s\n", strings.Join(names, ", "))
		for _, fn := range ctx.CalledFunctions {
			if fn.Definition != "" {
				fmt.Fprintf(&b, "\nDefinition of %s (static, not linkable from tests):\n```%s\n%s\n```\n",
					fn.Name, target.Language, fn.Definition)
			}
		}
	}

	if len(ctx.Macros) > 0 {
		b.WriteString("\n# Macro Definitions\n")
		for _, m := range ctx.Macros {
			fmt.Fprintf(&b, "%s: %s\n", m.Name, m.Definition)
		}
	}

	if len(ctx.Structs) > 0 {
		b.WriteString("\n# Data Structures\n")
		for _, st := range ctx.Structs {
			fmt.Fprintf(&b, "```%s\n%s\n```\n", target.Language, st.Definition)
		}
	}

	if len(ctx.UsagePatterns) > 0 {
		b.WriteString("\n# Usage Examples\n")
		for i, p := range ctx.UsagePatterns {
			fmt.Fprintf(&b, "Example %d - %s:%d:\n```%s\n%s\n```\n", i+1, p.File, p.Line, target.Language, p.Preview)
		}
	}

	if len(ctx.CompileFlags) > 0 {
		b.WriteString("\n# Compilation\n")
		fmt.Fprintf(&b, "Key flags: %s\n", strings.Join(ctx.CompileFlags, " "))
	}

	if task.ExistingFixtureCode != "" {
		b.WriteString("\n# Existing Fixture\n")
		fmt.Fprintf(&b, "Reuse this fixture instead of defining a new one:\n```%s\n%s\n```\n",
			target.Language, task.ExistingFixtureCode)
	}

	if task.ExistingTests != nil && len(task.ExistingTests.ExistingTestFunctions) > 0 {
		b.WriteString("\n# Existing Coverage\n")
		fmt.Fprintf(&b, "Tests already covering this function: %s\n",
			strings.Join(task.ExistingTests.ExistingTestFunctions, ", "))
		if task.ExistingTests.CoverageSummary != "" {
			fmt.Fprintf(&b, "Coverage summary: %s\n", task.ExistingTests.CoverageSummary)
		}
		b.WriteString("Do not duplicate these cases; add what they miss.\n")
	}

	b.WriteString("\n# Requirements\n")
	fmt.Fprintf(&b, "Generate a complete %s Google Test file for %s in suite %s:\n", langDisplay, target.Name, task.SuiteName)
	b.WriteString("1. Include all necessary headers.\n")
	b.WriteString("2. Use Google Test assertions (EXPECT_*/ASSERT_*).\n")
	if len(ctx.CalledFunctions) > 0 {
		b.WriteString("3. Mock external dependencies with MockCpp.\n")
		b.WriteString("4. Cover the normal flow, boundary conditions, and error paths.\n")
	} else {
		b.WriteString("3. Cover the normal flow, boundary conditions, and error paths.\n")
	}
	if target.Language == "cpp" {
		b.WriteString("Pay attention to memory management and exception safety.\n")
	}
	b.WriteString("\nRespond with the test source only.\n")

	return b.String()
}

// BasePromptTokens is the approximate token overhead of the prompt skeleton
// around the compressed context, used when sizing the context budget.
const BasePromptTokens = 300

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
