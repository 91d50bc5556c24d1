// Package compress builds the bounded context that travels to the generation
// backend. It ranks the target function's dependencies, keeps the important
// ones, and degrades everything except the function body itself until the
// result fits the model's token budget.
package compress

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"testforge-agent/src/contracts"
	"testforge-agent/src/ranking"
	"testforge-agent/src/tokens"
)

// Selection limits at compression level 0.
const (
	maxFunctions    = 5
	maxStructs      = 3
	maxMacros       = 4
	maxUsageSites   = 2
	maxCompileFlags = 3
	previewChars    = 200
)

// Level 1 trims usage previews to this length.
const trimmedPreviewChars = 150

// Level 2 keeps a stricter cut of dependencies.
const (
	level2MaxFunctions = 3
	level2MaxMacros    = 2
	level2MaxStructs   = 1
)

// maxLevel is the last degradation step; past it the context is returned as
// is, over budget or not.
const maxLevel = 3

// relevantFlagPrefixes are the compiler flags worth showing to the backend.
var relevantFlagPrefixes = []string{"-I", "-D", "-std=", "-O"}

// TargetSummary describes the function under test inside a compressed
// context. Body is the complete original text; no compression level ever
// shortens it.
type TargetSummary struct {
	Name            string                `json:"name"`
	Signature       string                `json:"signature"`
	ReturnType      string                `json:"return_type"`
	Parameters      []contracts.Parameter `json:"parameters"`
	Body            string                `json:"body"`
	Location        string                `json:"location"`
	Language        string                `json:"language"`
	IsStatic        bool                  `json:"is_static"`
	AccessSpecifier string                `json:"access_specifier,omitempty"`
}

// UsagePattern is a trimmed call-site preview.
type UsagePattern struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Preview string `json:"preview"`
}

// Context is the compressed, prompt-ready view of one function and its
// surroundings.
type Context struct {
	Target          TargetSummary               `json:"target"`
	CalledFunctions []contracts.CalledFunction  `json:"called_functions"`
	Structs         []contracts.DataStructure   `json:"structs"`
	Macros          []contracts.MacroDefinition `json:"macros"`
	UsagePatterns   []UsagePattern              `json:"usage_patterns"`
	CompileFlags    []string                    `json:"compile_flags"`
	// Level records how far degradation went: 0 means everything fit.
	Level int `json:"level"`
	// TokenCount is the estimated cost after the final pass.
	TokenCount int `json:"token_count"`
}

// Compressor builds bounded contexts for one provider+model budget.
type Compressor struct {
	counter *tokens.Counter
	// basePromptTokens is the overhead of the prompt skeleton around the
	// context.
	basePromptTokens int
}

// NewCompressor creates a compressor using the given token counter.
func NewCompressor(counter *tokens.Counter, basePromptTokens int) *Compressor {
	return &Compressor{counter: counter, basePromptTokens: basePromptTokens}
}

// Compress builds the compressed context for fn. It never fails: if the
// context still exceeds the budget after the last degradation level, it is
// returned anyway as a best effort.
func (c *Compressor) Compress(fn contracts.FunctionDescriptor, raw contracts.RawContext) Context {
	ranker := ranking.NewRanker(fn)
	ctx := c.build(fn, raw, ranker, 0)
	return c.ensureOptimalSize(fn, raw, ranker, ctx)
}

// build assembles the context at a given degradation level.
func (c *Compressor) build(fn contracts.FunctionDescriptor, raw contracts.RawContext, ranker *ranking.Ranker, level int) Context {
	ctx := Context{
		Target: TargetSummary{
			Name:            fn.Name,
			Signature:       fn.Signature(),
			ReturnType:      fn.ReturnType,
			Parameters:      fn.Parameters,
			Body:            fn.Body,
			Location:        location(fn),
			Language:        fn.Language,
			IsStatic:        fn.IsStatic,
			AccessSpecifier: fn.AccessSpecifier,
		},
		Level: level,
	}

	fnMax, stMax, mcMax := maxFunctions, maxStructs, maxMacros
	minImportance := ranking.Low
	switch {
	case level >= 3:
		fnMax, stMax, mcMax = 1, 0, 0
	case level == 2:
		fnMax, stMax, mcMax = level2MaxFunctions, level2MaxStructs, level2MaxMacros
		minImportance = ranking.High
	}

	for _, dep := range ranking.SelectTop(ranker.RankFunctions(raw.CalledFunctions), fnMax, minImportance) {
		called := dep.Payload.(contracts.CalledFunction)
		// Only static callees keep their definition: their implementation is
		// otherwise invisible to the test.
		if !called.IsStatic {
			called.Definition = ""
		}
		ctx.CalledFunctions = append(ctx.CalledFunctions, called)
	}
	for _, dep := range ranking.SelectTop(ranker.RankStructs(raw.DataStructures), stMax, minImportance) {
		ctx.Structs = append(ctx.Structs, dep.Payload.(contracts.DataStructure))
	}
	for _, dep := range ranking.SelectTop(ranker.RankMacros(raw.MacrosUsed, raw.MacroDefinitions), mcMax, minImportance) {
		ctx.Macros = append(ctx.Macros, dep.Payload.(contracts.MacroDefinition))
	}

	preview := previewChars
	if level >= 1 {
		preview = trimmedPreviewChars
	}
	if level < 3 {
		ctx.UsagePatterns = selectUsagePatterns(raw.CallSites, preview)
	}

	ctx.CompileFlags = selectCompileFlags(raw.CompilationFlags)
	return ctx
}

// ensureOptimalSize applies up to maxLevel degradation passes until the
// context fits the available budget.
func (c *Compressor) ensureOptimalSize(fn contracts.FunctionDescriptor, raw contracts.RawContext, ranker *ranking.Ranker, ctx Context) Context {
	available := c.counter.Available(c.basePromptTokens)

	ctx.TokenCount = c.counter.CountJSON(ctx)
	for level := 1; ctx.TokenCount > available && level <= maxLevel; level++ {
		ctx = c.build(fn, raw, ranker, level)
		ctx.TokenCount = c.counter.CountJSON(ctx)
	}
	return ctx
}

// selectUsagePatterns keeps at most maxUsageSites previews from distinct
// source files, walking call sites in order and skipping files already seen.
// Diversity wins over recency.
func selectUsagePatterns(sites []contracts.CallSite, preview int) []UsagePattern {
	var patterns []UsagePattern
	seen := make(map[string]bool)

	for _, site := range sites {
		if len(patterns) >= maxUsageSites {
			break
		}
		if seen[site.File] {
			continue
		}
		seen[site.File] = true

		text := site.Context
		if len(text) > preview {
			// Back off to a rune boundary so the cut never splits UTF-8.
			cut := preview
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			text = text[:cut]
		}
		patterns = append(patterns, UsagePattern{
			File:    site.File,
			Line:    site.Line,
			Preview: text,
		})
	}
	return patterns
}

// selectCompileFlags keeps at most maxCompileFlags flags with a relevant
// prefix, preserving input order.
func selectCompileFlags(flags []string) []string {
	var selected []string
	for _, flag := range flags {
		if len(selected) >= maxCompileFlags {
			break
		}
		for _, prefix := range relevantFlagPrefixes {
			if strings.HasPrefix(flag, prefix) {
				selected = append(selected, flag)
				break
			}
		}
	}
	return selected
}

func location(fn contracts.FunctionDescriptor) string {
	if fn.File == "" {
		return "unknown"
	}
	return fn.File + ":" + strconv.Itoa(fn.Line)
}
