package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	err := WithMetadata(CodeInsufficientStock, "not enough Biogesic", map[string]string{"medicine_id": "7"})

	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.False(t, errors.Is(err, ErrEmptyCart))

	wrapped := fmt.Errorf("checkout: %w", err)
	assert.True(t, errors.Is(wrapped, ErrInsufficientStock))
	assert.Equal(t, CodeInsufficientStock, CodeOf(wrapped))
	assert.Equal(t, "7", MetadataOf(wrapped)["medicine_id"])
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("boom")))
	assert.Nil(t, MetadataOf(errors.New("boom")))
}

func TestWrapUnwrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(CodeInvariantViolation, "store invoice", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "store invoice", err.Error())
}
