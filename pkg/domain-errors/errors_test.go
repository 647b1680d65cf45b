package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct code", func(t *testing.T) {
		err := New(CodeUnauthorized, "not owner")
		assert.True(t, HasCode(err, CodeUnauthorized))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("matches inner code through wrapping", func(t *testing.T) {
		inner := New(CodeInsufficientFunds, "balance too low")
		outer := Wrap(fmt.Errorf("settle: %w", inner), CodeInternal, "register failed")
		assert.True(t, HasCode(outer, CodeInternal))
		assert.True(t, HasCode(outer, CodeInsufficientFunds))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("row locked")
	err := Wrap(cause, CodeTimeout, "transaction aborted")
	require.ErrorIs(t, err, cause)
	assert.Equal(t, "transaction aborted: row locked", err.Error())
	assert.Nil(t, Wrap(nil, CodeInternal, "ignored"))
}
