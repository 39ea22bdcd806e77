package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Kinds(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		notFound   bool
		conflict   bool
		validation bool
	}{
		{"item not found", ErrItemNotFound, true, false, false},
		{"checked out", ErrItemCheckedOut, false, true, false},
		{"period index", ErrInvalidPeriodIndex, false, false, true},
		{"item id", ErrInvalidItemID, false, false, true},
		{"wrapped", fmt.Errorf("checkout: %w", ErrRentalAlreadyOpen), false, true, false},
		{"plain", errors.New("boom"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
			assert.Equal(t, tt.conflict, IsConflict(tt.err))
			assert.Equal(t, tt.validation, IsValidation(tt.err))
		})
	}
}

func TestWrapError(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapError("rental", "Return", ErrConflict, "close record", cause)

	assert.EqualError(t, err, "rental.Return: close record: connection reset")
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestDomainError_IsByIdentity(t *testing.T) {
	same := NewDomainError("item", "Find", ErrNotFound, "item not found")

	assert.ErrorIs(t, same, ErrItemNotFound)
	assert.NotErrorIs(t, ErrRentalNotFound, ErrItemNotFound)
	assert.ErrorIs(t, ErrItemNameTooLong, ErrValueOutOfRange)
}
