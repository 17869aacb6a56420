package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedError(t *testing.T) {
	wrapped := fmt.Errorf("confirm: %w", Clone(ErrInvalidTransition, "enrollment is CONFIRMED"))
	appErr := FromError(wrapped)
	assert.Equal(t, "INVALID_TRANSITION", appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Equal(t, "enrollment is CONFIRMED", appErr.Message)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	cause := errors.New("boom")
	appErr := FromError(cause)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.ErrorIs(t, appErr, cause)
	assert.Nil(t, FromError(nil))
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrInvalidFormula, "unknown component code: XYZ")
	assert.Equal(t, "invalid formula", ErrInvalidFormula.Message)
	assert.Equal(t, "unknown component code: XYZ", clone.Error())
	assert.Equal(t, http.StatusUnprocessableEntity, clone.Status)
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("batch: %w", Clone(ErrNotFound, "matricula not found"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(errors.New("plain"), ErrNotFound))
}
