package mcp

import (
	"sync"

	"testforge-agent/src/contracts"
)

// RunStore holds completed runs for drill-down queries.
type RunStore interface {
	// Store saves a run's aggregated result.
	Store(runID string, result *contracts.AggregatedResult)
	// Summary retrieves a run's summary.
	Summary(runID string) (contracts.RunSummary, bool)
	// Result retrieves one function's result within a run.
	Result(runID, functionName string) (*contracts.GenerationResult, bool)
	// RunIDs lists stored runs, newest last.
	RunIDs() []string
}

// InMemoryStore is a thread-safe in-memory RunStore. Runs live for the
// lifetime of the server process.
type InMemoryStore struct {
	mu      sync.RWMutex
	order   []string
	runs    map[string]*contracts.AggregatedResult
	results map[string]map[string]*contracts.GenerationResult
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		runs:    make(map[string]*contracts.AggregatedResult),
		results: make(map[string]map[string]*contracts.GenerationResult),
	}
}

// Store implements RunStore, indexing results by function name.
func (s *InMemoryStore) Store(runID string, result *contracts.AggregatedResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[runID]; !exists {
		s.order = append(s.order, runID)
	}
	s.runs[runID] = result

	byFunction := make(map[string]*contracts.GenerationResult)
	for _, r := range result.Results {
		byFunction[r.FunctionName()] = r
	}
	s.results[runID] = byFunction
}

// Summary implements RunStore.
func (s *InMemoryStore) Summary(runID string) (contracts.RunSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return contracts.RunSummary{}, false
	}
	return run.Summary, true
}

// Result implements RunStore.
func (s *InMemoryStore) Result(runID, functionName string) (*contracts.GenerationResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if byFunction, ok := s.results[runID]; ok {
		r, found := byFunction[functionName]
		return r, found
	}
	return nil, false
}

// RunIDs implements RunStore.
func (s *InMemoryStore) RunIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}
