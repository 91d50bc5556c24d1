package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var errBackend = errors.New("backend down")

// fakeClock lets tests advance breaker time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testBreaker(threshold int, timeout time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := NewCircuitBreaker(threshold, timeout)
	b.now = clock.Now
	return b, clock
}

func failNTimes(b *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		b.Call(func() error { return errBackend })
	}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b, _ := testBreaker(3, time.Minute)

	failNTimes(b, 2)
	if b.State() != StateClosed {
		t.Fatalf("state after 2 failures = %s, want closed", b.State())
	}

	failNTimes(b, 1)
	if b.State() != StateOpen {
		t.Fatalf("state after 3 failures = %s, want open", b.State())
	}
}

func TestBreakerRejectsWithoutInvoking(t *testing.T) {
	b, _ := testBreaker(2, time.Minute)
	failNTimes(b, 2)

	invoked := false
	err := b.Call(func() error {
		invoked = true
		return nil
	})

	if invoked {
		t.Error("wrapped function invoked while breaker open")
	}
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	var rerr *Error
	if !errors.As(err, &rerr) || !rerr.Retryable {
		t.Error("open-circuit rejection should classify as retryable")
	}
}

func TestBreakerHalfOpenAfterTimeout(t *testing.T) {
	b, clock := testBreaker(2, time.Minute)
	failNTimes(b, 2)

	clock.Advance(59 * time.Second)
	if err := b.Call(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatal("breaker should still reject before recovery timeout")
	}

	clock.Advance(2 * time.Second)
	invoked := false
	err := b.Call(func() error {
		invoked = true
		return nil
	})
	if !invoked || err != nil {
		t.Fatalf("test call after timeout: invoked=%v err=%v", invoked, err)
	}
	if b.State() != StateClosed {
		t.Errorf("state after half-open success = %s, want closed", b.State())
	}
}

func TestBreakerHalfOpenAdmitsSingleCall(t *testing.T) {
	b, clock := testBreaker(2, time.Minute)
	failNTimes(b, 2)
	clock.Advance(2 * time.Minute)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Call(func() error {
			close(entered)
			<-release
			return nil
		})
	}()

	// While the half-open test call is in flight, everyone else fails fast.
	<-entered
	invoked := false
	err := b.Call(func() error {
		invoked = true
		return nil
	})
	if invoked {
		t.Error("second caller invoked the backend during the half-open window")
	}
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second caller got %v, want ErrCircuitOpen", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("half-open call failed: %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("state = %s, want closed after the half-open success", b.State())
	}
	if err := b.Call(func() error { return nil }); err != nil {
		t.Errorf("call after recovery rejected: %v", err)
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b, clock := testBreaker(2, time.Minute)
	failNTimes(b, 2)
	clock.Advance(2 * time.Minute)

	if err := b.Call(func() error { return errBackend }); !errors.Is(err, errBackend) {
		t.Fatalf("half-open call should invoke and surface the failure, got %v", err)
	}
	if b.State() != StateOpen {
		t.Errorf("state after half-open failure = %s, want open", b.State())
	}
	// And it keeps rejecting until the timeout elapses again.
	if err := b.Call(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Error("breaker should reject immediately after reopening")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b, _ := testBreaker(3, time.Minute)

	failNTimes(b, 2)
	b.Call(func() error { return nil })
	failNTimes(b, 2)

	if b.State() != StateClosed {
		t.Errorf("state = %s, want closed: failures are not consecutive", b.State())
	}
}

func TestBreakerConcurrentCallers(t *testing.T) {
	b, _ := testBreaker(50, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b.Call(func() error {
				if i%2 == 0 {
					return errBackend
				}
				return nil
			})
		}(i)
	}
	wg.Wait()

	// No assertion on final state (interleaving-dependent); the test exists
	// to fail under the race detector if transitions are unsynchronized.
	_ = b.State()
}
