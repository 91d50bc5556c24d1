package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"testforge-agent/src/logger"
)

// BackoffStrategy selects how the retry delay grows across attempts.
type BackoffStrategy string

const (
	BackoffFixed             BackoffStrategy = "fixed"
	BackoffLinear            BackoffStrategy = "linear"
	BackoffExponential       BackoffStrategy = "exponential"
	BackoffExponentialJitter BackoffStrategy = "exponential_jitter"
)

// jitterFraction is the +/- randomization applied by BackoffExponentialJitter.
const jitterFraction = 0.25

// backoffMultiplier is the exponential growth factor.
const backoffMultiplier = 2.0

// RetryConfig is a stateless retry policy shared across calls.
type RetryConfig struct {
	// MaxAttempts is the total number of invocations, including the first.
	MaxAttempts int
	// BaseDelay seeds the backoff calculation.
	BaseDelay time.Duration
	// MaxDelay caps any single sleep.
	MaxDelay time.Duration
	Strategy BackoffStrategy
}

// DefaultRetryConfig mirrors the defaults used for backend calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Strategy:    BackoffExponentialJitter,
	}
}

// NewBackOff builds the delay schedule for this policy. Each call returns a
// fresh stateful backoff, so one config can serve concurrent retries.
func (c RetryConfig) NewBackOff() backoff.BackOff {
	switch c.Strategy {
	case BackoffFixed:
		interval := c.BaseDelay
		if interval > c.MaxDelay {
			interval = c.MaxDelay
		}
		return backoff.NewConstantBackOff(interval)
	case BackoffLinear:
		return &linearBackOff{base: c.BaseDelay, max: c.MaxDelay}
	case BackoffExponential:
		return c.exponential(0)
	default:
		return c.exponential(jitterFraction)
	}
}

func (c RetryConfig) exponential(randomization float64) backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     c.BaseDelay,
		RandomizationFactor: randomization,
		Multiplier:          backoffMultiplier,
		MaxInterval:         c.MaxDelay,
	}
	b.Reset()
	return b
}

// linearBackOff grows the delay by BaseDelay per attempt, capped at max.
type linearBackOff struct {
	base    time.Duration
	max     time.Duration
	attempt int
}

func (l *linearBackOff) NextBackOff() time.Duration {
	l.attempt++
	d := l.base * time.Duration(l.attempt)
	if d > l.max {
		d = l.max
	}
	return d
}

func (l *linearBackOff) Reset() { l.attempt = 0 }

// Retry invokes fn until it succeeds, fails with a non-retryable error, or
// MaxAttempts is exhausted. The returned error, when non-nil, is always a
// *Error carrying the classification and the last underlying cause.
func Retry(ctx context.Context, cfg RetryConfig, log logger.Logger, operation string, fn func() error) error {
	var last *Error

	attempt := func() (struct{}, error) {
		err := fn()
		if err == nil {
			return struct{}{}, nil
		}
		last = Classify(err)
		if !last.Retryable {
			log.Error("%s failed with non-retryable %s error: %v", operation, last.Category, last.Cause)
			return struct{}{}, backoff.Permanent(last)
		}
		return struct{}{}, last
	}

	notify := func(err error, delay time.Duration) {
		log.Warn("%s failed (%s), retrying in %s", operation, last.Category, delay)
	}

	_, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(cfg.NewBackOff()),
		backoff.WithMaxTries(uint(cfg.MaxAttempts)),
		backoff.WithNotify(notify),
	)
	if err == nil {
		return nil
	}

	var terminal *Error
	if !errors.As(err, &terminal) {
		// Context cancellation surfaces as the raw cause.
		return Classify(err)
	}
	if terminal.Retryable {
		log.Error("%s failed after %d attempts: %v", operation, cfg.MaxAttempts, terminal.Cause)
	}
	return terminal
}
