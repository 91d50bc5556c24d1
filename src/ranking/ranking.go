// Package ranking scores the dependencies of a target function so the
// context compressor can keep the important ones when the token budget is
// tight. Both the compressor and the prompt renderer consume this package to
// ensure consistent prioritization.
package ranking

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"testforge-agent/src/contracts"
)

// Kind identifies what a ranked dependency refers to.
type Kind int

const (
	KindFunction Kind = iota
	KindStruct
	KindMacro
)

func (k Kind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindStruct:
		return "struct"
	case KindMacro:
		return "macro"
	default:
		return "unknown"
	}
}

// Importance is the coarse tier derived from a numeric score.
type Importance int

const (
	Low Importance = iota + 1
	Medium
	High
	Critical
)

func (i Importance) String() string {
	switch i {
	case Critical:
		return "critical"
	case High:
		return "high"
	case Medium:
		return "medium"
	default:
		return "low"
	}
}

// Importance thresholds on the numeric score.
const (
	criticalThreshold = 3.0
	highThreshold     = 1.5
	mediumThreshold   = 0.5
)

// Score weights.
const (
	sameDirectoryBonus  = 2.0
	criticalFuncBonus   = 2.0
	criticalStructBonus = 1.5
	criticalMacroBonus  = 1.2
	paramWeight         = 0.2
	pointerReturnBonus  = 0.3
	structLineWeight    = 0.1
	macroComplexity     = 1.1
)

// criticalNamePattern matches identifiers that tend to matter for test setup
// and teardown regardless of their structural complexity.
var criticalNamePattern = regexp.MustCompile(`(?i)malloc|free|alloc|dealloc|create|destroy|init|cleanup|error|assert|check|validate`)

// Ranked is a dependency with its calculated importance.
type Ranked struct {
	Name       string
	Kind       Kind
	Importance Importance
	Score      float64
	// Payload holds the underlying record: contracts.CalledFunction,
	// contracts.DataStructure, or contracts.MacroDefinition.
	Payload interface{}
}

// Ranker scores dependencies relative to one target function.
type Ranker struct {
	target contracts.FunctionDescriptor
}

// NewRanker creates a ranker for the given target function.
func NewRanker(target contracts.FunctionDescriptor) *Ranker {
	return &Ranker{target: target}
}

// RankFunctions orders called functions by importance, descending.
func (r *Ranker) RankFunctions(called []contracts.CalledFunction) []Ranked {
	ranked := make([]Ranked, 0, len(called))
	for _, fn := range called {
		score := r.functionScore(fn)
		ranked = append(ranked, Ranked{
			Name:       fn.Name,
			Kind:       KindFunction,
			Importance: importanceFor(score),
			Score:      score,
			Payload:    fn,
		})
	}
	sortByScore(ranked)
	return ranked
}

// RankStructs orders data structures by importance, descending.
func (r *Ranker) RankStructs(structs []contracts.DataStructure) []Ranked {
	ranked := make([]Ranked, 0, len(structs))
	for _, st := range structs {
		score := structScore(st)
		ranked = append(ranked, Ranked{
			Name:       st.Name,
			Kind:       KindStruct,
			Importance: importanceFor(score),
			Score:      score,
			Payload:    st,
		})
	}
	sortByScore(ranked)
	return ranked
}

// RankMacros orders the used macros by importance, descending. Macros without
// a recorded definition are still ranked, on name alone.
func (r *Ranker) RankMacros(used []string, definitions []contracts.MacroDefinition) []Ranked {
	defs := make(map[string]contracts.MacroDefinition, len(definitions))
	for _, d := range definitions {
		defs[d.Name] = d
	}

	ranked := make([]Ranked, 0, len(used))
	for _, name := range used {
		def, ok := defs[name]
		if !ok {
			def = contracts.MacroDefinition{Name: name}
		}
		score := macroScore(name, def)
		ranked = append(ranked, Ranked{
			Name:       name,
			Kind:       KindMacro,
			Importance: importanceFor(score),
			Score:      score,
			Payload:    def,
		})
	}
	sortByScore(ranked)
	return ranked
}

// SelectTop returns at most max entries at or above minImportance, preserving
// rank order.
func SelectTop(ranked []Ranked, max int, minImportance Importance) []Ranked {
	selected := make([]Ranked, 0, max)
	for _, dep := range ranked {
		if len(selected) >= max {
			break
		}
		if dep.Importance >= minImportance {
			selected = append(selected, dep)
		}
	}
	return selected
}

func (r *Ranker) functionScore(fn contracts.CalledFunction) float64 {
	score := 0.0

	if r.target.File != "" && fn.Location != "" && sameDirectory(r.target.File, fn.Location) {
		score += sameDirectoryBonus
	}
	if criticalNamePattern.MatchString(fn.Name) {
		score += criticalFuncBonus
	}

	// Complexity term: parameters plus pointer/struct return types.
	complexity := float64(len(fn.Parameters)) * paramWeight
	ret := strings.ToLower(fn.ReturnType)
	if strings.Contains(fn.ReturnType, "*") || strings.Contains(ret, "struct") {
		complexity += pointerReturnBonus
	}
	score += complexity

	if score < 0.1 {
		score = 0.1
	}
	return score
}

func structScore(st contracts.DataStructure) float64 {
	score := 0.0

	def := strings.ToLower(st.Definition)
	if strings.Contains(def, "struct") || strings.Contains(def, "class") {
		lines := strings.Count(st.Definition, "\n") + 1
		score += float64(lines) * structLineWeight
	}
	if criticalNamePattern.MatchString(st.Name) {
		score += criticalStructBonus
	}

	if score < 0.1 {
		score = 0.1
	}
	return score
}

func macroScore(name string, def contracts.MacroDefinition) float64 {
	score := 0.0

	// Function-like macros carry behavior and deserve a place in the prompt.
	if strings.Contains(def.Definition, "(") && strings.Contains(def.Definition, ")") {
		score += macroComplexity * 2
	}
	if criticalNamePattern.MatchString(name) {
		score += criticalMacroBonus
	}
	if len(strings.Fields(def.Definition)) <= 3 {
		score *= 0.5
	}

	if score < 0.05 {
		score = 0.05
	}
	return score
}

func importanceFor(score float64) Importance {
	switch {
	case score >= criticalThreshold:
		return Critical
	case score >= highThreshold:
		return High
	case score >= mediumThreshold:
		return Medium
	default:
		return Low
	}
}

// sortByScore is a stable descending sort so identical inputs always produce
// identical order.
func sortByScore(ranked []Ranked) {
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
}

func sameDirectory(file1, file2 string) bool {
	return filepath.Dir(file1) == filepath.Dir(file2)
}
