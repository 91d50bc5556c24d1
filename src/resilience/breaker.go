package resilience

import (
	"errors"
	"sync"
	"time"
)

// BreakerState is the circuit breaker's current disposition.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// ErrCircuitOpen is returned when the breaker rejects a call without
// invoking the wrapped function.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker stops invoking a failing backend for a cool-down period
// after repeated consecutive failures. One breaker is created per resilient
// call-site and lives for the whole run; workers report outcomes
// concurrently, so all state transitions happen under the mutex.
type CircuitBreaker struct {
	failureThreshold int
	recoveryTimeout  time.Duration

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(failureThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            StateClosed,
		now:              time.Now,
	}
}

// Call runs fn under the breaker. While open, calls fail fast with
// ErrCircuitOpen (classified as a retryable provider error) until the
// recovery timeout elapses; exactly one call then tests the backend in
// half-open state while everything else keeps failing fast.
func (b *CircuitBreaker) Call(fn func() error) error {
	if err := b.beforeCall(); err != nil {
		return err
	}

	err := fn()
	b.afterCall(err == nil)
	return err
}

// State reports the current state without side effects.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *CircuitBreaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailure) < b.recoveryTimeout {
			return b.rejection()
		}
		// The caller that observes the elapsed timeout becomes the sole
		// half-open test call.
		b.state = StateHalfOpen
	case StateHalfOpen:
		// A test call is already in flight.
		return b.rejection()
	}
	return nil
}

func (b *CircuitBreaker) rejection() error {
	return &Error{
		Category:  CategoryProvider,
		Retryable: true,
		Message:   "call rejected",
		Cause:     ErrCircuitOpen,
	}
}

func (b *CircuitBreaker) afterCall(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		// A half-open success closes the circuit; any success resets the
		// consecutive-failure count.
		b.state = StateClosed
		b.failures = 0
		return
	}

	b.failures++
	b.lastFailure = b.now()

	if b.state == StateHalfOpen || b.failures >= b.failureThreshold {
		b.state = StateOpen
	}
}
