package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDo(t *testing.T) {
	errTransient := errors.New("transient")
	errPermanent := errors.New("permanent")

	testCases := []struct {
		name          string
		failures      []error
		options       []Option
		expectedErr   error
		expectedCalls int
	}{
		{
			name:          "first attempt succeeds",
			expectedCalls: 1,
		},
		{
			name:          "succeeds after transient failures",
			failures:      []error{errTransient, errTransient},
			expectedCalls: 3,
		},
		{
			name:          "gives up after max attempts",
			failures:      []error{errTransient, errTransient, errTransient, errTransient},
			options:       []Option{WithMaxAttempts(2)},
			expectedErr:   errTransient,
			expectedCalls: 2,
		},
		{
			name:          "non retryable fails fast",
			failures:      []error{errPermanent},
			options:       []Option{WithRetryable(func(err error) bool { return errors.Is(err, errTransient) })},
			expectedErr:   errPermanent,
			expectedCalls: 1,
		},
		{
			name:          "context error is not retried",
			failures:      []error{context.DeadlineExceeded},
			expectedErr:   context.DeadlineExceeded,
			expectedCalls: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			fn := func(ctx context.Context) error {
				calls++
				if calls <= len(tc.failures) {
					return tc.failures[calls-1]
				}
				return nil
			}

			options := append([]Option{WithBaseDelay(time.Millisecond)}, tc.options...)
			err := Do(context.Background(), fn, options...)

			if tc.expectedErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.expectedErr)
			}
			assert.Equal(t, tc.expectedCalls, calls)
		})
	}
}

func TestDo_InvalidOptions(t *testing.T) {
	noop := func(ctx context.Context) error { return nil }

	assert.ErrorIs(t, Do(context.Background(), noop, WithMaxAttempts(0)), ErrInvalidMaxAttempts)
	assert.ErrorIs(t, Do(context.Background(), noop, WithBaseDelay(-time.Second)), ErrNegativeBaseDelay)
}

func TestDo_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("fail")
	}, WithBaseDelay(time.Hour))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
