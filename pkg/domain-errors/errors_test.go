package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndIs(t *testing.T) {
	err := New(CodeNotFound, "session not found")

	require.ErrorIs(t, err, New(CodeNotFound, "session not found"))
	assert.NotErrorIs(t, err, New(CodeNotFound, "event not found"))
	assert.NotErrorIs(t, err, New(CodeConflict, "session not found"))
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")

	t.Run("keeps cause in chain", func(t *testing.T) {
		err := Wrap(cause, CodeInternal, "failed to fetch recipients")
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "failed to fetch recipients: connection refused", err.Error())
	})

	t.Run("nil error stays nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "unused"))
	})
}

func TestHasCodeAndCodeOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeValidation, "notice type is required"))

	assert.True(t, HasCode(err, CodeValidation))
	assert.False(t, HasCode(err, CodeNotFound))
	assert.Equal(t, CodeValidation, CodeOf(err))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}
