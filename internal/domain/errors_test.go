package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByType(t *testing.T) {
	err := GenerationError(errors.New("model unavailable"))

	assert.True(t, errors.Is(err, ErrGeneration))
	assert.False(t, errors.Is(err, ErrTemplate))
	assert.Equal(t, ErrorTypeGeneration, TypeOf(err))
}

func TestErrorUnwrapKeepsCause(t *testing.T) {
	err := Cancelled(context.Canceled)

	assert.True(t, errors.Is(err, ErrCancelled))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestErrorWrappedByFmt(t *testing.T) {
	err := fmt.Errorf("retriever: %w", MissingMetadata("match 0 has no title"))

	assert.True(t, errors.Is(err, ErrMissingMetadata))
	assert.Equal(t, ErrorTypeMissingMetadata, TypeOf(err))
	assert.Equal(t, ErrorType(""), TypeOf(errors.New("plain")))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "invalid_argument: k must be positive", InvalidArgument("k must be positive").Error())
	assert.Equal(t, "generation: language model call failed (boom)", GenerationError(errors.New("boom")).Error())
}
