package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindAndCode(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		kind Kind
		code Code
	}{
		{name: "sentinel", err: ErrBookNotFound, kind: NotFound, code: CodeBookNotFound},
		{name: "wrapped sentinel", err: fmt.Errorf("issue B1: %w", ErrAlreadyIssued), kind: Conflict, code: CodeAlreadyIssued},
		{name: "withf", err: Withf(ErrStudentNotFound, "id %q", "S9"), kind: NotFound, code: CodeStudentNotFound},
		{name: "store", err: Store("put book", errors.New("connection reset")), kind: StoreFailure, code: CodeStoreFailure},
		{name: "delivery", err: Delivery("smtp timeout"), kind: DeliveryFailure, code: CodeDeliveryFailed},
		{name: "uncoded", err: errors.New("boom"), kind: StoreFailure, code: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, KindOf(tc.err))
			assert.Equal(t, tc.code, CodeOf(tc.err))
		})
	}
}

func TestStoreKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Store("put issue", cause)

	assert.ErrorIs(t, err, ErrStoreFailure)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failed to put issue: disk full")
	assert.NoError(t, Store("noop", nil))
}

func TestIs(t *testing.T) {
	assert.True(t, Is(ErrMissingEmail, Invalid))
	assert.False(t, Is(ErrMissingEmail, NotFound))
	assert.False(t, Is(nil, NotFound))
}
