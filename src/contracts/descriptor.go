// Package contracts defines the data structures exchanged between the code
// analyzer, the generation pipeline, and its observers.
package contracts

import "path/filepath"

// Parameter is a single function parameter as reported by the analyzer.
type Parameter struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// FunctionDescriptor describes one extracted function. It is produced by the
// code analyzer and is read-only to the pipeline.
type FunctionDescriptor struct {
	// Function identifier.
	Name string `json:"name"`
	// Declared return type, e.g. "int" or "struct node *".
	ReturnType string `json:"return_type"`
	// Ordered parameter list.
	Parameters []Parameter `json:"parameters"`
	// Full body text. The pipeline never shortens this.
	Body string `json:"body"`
	// Source file the function was extracted from.
	File string `json:"file"`
	// 1-based line of the definition.
	Line int `json:"line"`
	// Language tag: "c" or "cpp".
	Language string `json:"language"`
	// True for functions with internal linkage.
	IsStatic bool `json:"is_static"`
	// Access specifier for C++ methods ("public", "private", ...).
	AccessSpecifier string `json:"access_specifier,omitempty"`
}

// Signature renders the canonical "ret name(type name, ...)" form.
func (f FunctionDescriptor) Signature() string {
	sig := f.ReturnType + " " + f.Name + "("
	for i, p := range f.Parameters {
		if i > 0 {
			sig += ", "
		}
		sig += p.Type
		if p.Name != "" {
			sig += " " + p.Name
		}
	}
	return sig + ")"
}

// SourceStem returns the source file name without directory or extension,
// with dots flattened so it can be embedded in identifiers.
func (f FunctionDescriptor) SourceStem() string {
	base := filepath.Base(f.File)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}

// CalledFunction is a callee record inside a RawContext.
type CalledFunction struct {
	Name       string      `json:"name"`
	ReturnType string      `json:"return_type,omitempty"`
	Parameters []Parameter `json:"parameters,omitempty"`
	// File the callee is defined in, when known.
	Location string `json:"location,omitempty"`
	// Definition text; attached to the prompt only for selected static callees.
	Definition string `json:"definition,omitempty"`
	IsStatic   bool   `json:"is_static,omitempty"`
}

// MacroDefinition is a preprocessor definition visible to the target function.
type MacroDefinition struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
	Location   string `json:"location,omitempty"`
}

// DataStructure is a struct/class/typedef used by the target function.
type DataStructure struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
	Location   string `json:"location,omitempty"`
}

// CallSite is one place the target function is invoked from.
type CallSite struct {
	File string `json:"file"`
	Line int    `json:"line"`
	// Surrounding source text.
	Context string `json:"context"`
}

// RawContext is everything the analyzer extracted around one target function.
// It is immutable input to the pipeline.
type RawContext struct {
	CalledFunctions  []CalledFunction  `json:"called_functions"`
	MacrosUsed       []string          `json:"macros_used"`
	MacroDefinitions []MacroDefinition `json:"macro_definitions"`
	DataStructures   []DataStructure   `json:"data_structures"`
	CallSites        []CallSite        `json:"call_sites"`
	CompilationFlags []string          `json:"compilation_flags"`
}

// ExistingTestsContext summarizes pre-existing tests that already cover the
// target function, as reported by the test matcher.
type ExistingTestsContext struct {
	MatchedFiles          []string `json:"matched_files"`
	ExistingTestFunctions []string `json:"existing_test_functions"`
	ExistingTestClasses   []string `json:"existing_test_classes"`
	CoverageSummary       string   `json:"coverage_summary,omitempty"`
}

// AnalyzedFunction pairs a descriptor with its extraction context. This is the
// unit the analyzer hands to the pipeline.
type AnalyzedFunction struct {
	Function FunctionDescriptor    `json:"function"`
	Context  RawContext            `json:"context"`
	Existing *ExistingTestsContext `json:"existing_tests_context,omitempty"`
}
