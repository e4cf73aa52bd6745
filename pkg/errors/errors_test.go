package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("fetch window: %w", Clone(ErrDataUnavailable, "records unavailable"))
	appErr := FromError(wrapped)
	require.NotNil(t, appErr)
	assert.Equal(t, "DATA_UNAVAILABLE", appErr.Code)
	assert.Equal(t, http.StatusServiceUnavailable, appErr.Status)
	assert.Equal(t, "records unavailable", appErr.Message)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, "internal server error: boom", appErr.Error())
	assert.Nil(t, FromError(nil))
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrNotFound, "student not found")
	assert.Equal(t, "student not found", clone.Message)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
	assert.Equal(t, ErrNotFound.Message, Clone(ErrNotFound, "").Message)
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("db down")
	err := Wrap(cause, ErrInternal.Code, ErrInternal.Status, "failed to load")
	assert.True(t, errors.Is(err, cause))
}

func TestClonesMatchOriginal(t *testing.T) {
	err := fmt.Errorf("load window: %w", Clone(ErrDataUnavailable, "postgres timeout"))
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.True(t, HasCode(err, "DATA_UNAVAILABLE"))
	assert.False(t, HasCode(errors.New("plain"), "DATA_UNAVAILABLE"))
}
