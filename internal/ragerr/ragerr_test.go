package ragerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	err := Validation("empty query")

	assert.Equal(t, CodeValidation, err.Code)
	assert.Equal(t, CategoryValidation, err.Category)
	assert.False(t, err.Retryable)
	assert.Equal(t, "[ERR_VALIDATION] empty query", err.Error())
	assert.True(t, IsValidation(err))
	assert.False(t, IsProvider(err))
}

func TestValidationf(t *testing.T) {
	err := Validationf("topK must be > 0, got %d", -1)
	assert.Contains(t, err.Error(), "topK must be > 0, got -1")
}

func TestProviderErrorWrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Provider("embed query", cause)

	assert.True(t, err.Retryable)
	assert.True(t, IsProvider(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIndexUnavailable(t *testing.T) {
	err := IndexUnavailable("index not built")
	assert.True(t, IsIndexUnavailable(err))
	assert.False(t, err.Retryable)
}

func TestCodeCheckersUnwrapChains(t *testing.T) {
	wrapped := fmt.Errorf("retrieval: %w", Provider("vector query", errors.New("offline")))
	assert.True(t, IsProvider(wrapped))
	assert.False(t, IsValidation(wrapped))
}

func TestCodeCheckersOnPlainErrors(t *testing.T) {
	plain := errors.New("plain")
	assert.False(t, IsValidation(plain))
	assert.False(t, IsProvider(plain))
	assert.False(t, IsIndexUnavailable(plain))
	assert.False(t, IsValidation(nil))
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	a := Validation("one")
	b := Validation("two")
	require.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, Provider("x", nil)))
}
