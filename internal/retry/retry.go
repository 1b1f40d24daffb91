package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

const (
	defaultMaxAttempts  = 3
	defaultBaseDelay    = 20 * time.Millisecond
	defaultJitterFactor = 0.3
)

var (
	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")
)

// Func is an operation that may be retried
type Func func(ctx context.Context) error

type config struct {
	maxAttempts int
	baseDelay   time.Duration
	retryable   func(error) bool
}

// Option configures retry behavior
type Option func(*config) error

// WithMaxAttempts sets the total number of attempts
func WithMaxAttempts(attempts int) Option {
	return func(c *config) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		c.maxAttempts = attempts
		return nil
	}
}

// WithBaseDelay sets the first backoff delay; later delays double
func WithBaseDelay(delay time.Duration) Option {
	return func(c *config) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}
		c.baseDelay = delay
		return nil
	}
}

// WithRetryable restricts retries to errors accepted by fn
func WithRetryable(fn func(error) bool) Option {
	return func(c *config) error {
		c.retryable = fn
		return nil
	}
}

// Do runs fn with exponential backoff until it succeeds, returns a
// non-retryable error, runs out of attempts or ctx is done.
// Context errors are never retried.
func Do(ctx context.Context, fn Func, options ...Option) error {
	c := &config{
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		retryable:   func(error) bool { return true },
	}
	for _, option := range options {
		if err := option(c); err != nil {
			return err
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * defaultJitterFactor //nolint:gosec // jitter only

			select {
			case <-time.After(delay + time.Duration(jitter)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		if !c.retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
