package common

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRandByteArray(t *testing.T) {
	a := GenerateRandByteArray(32)
	b := GenerateRandByteArray(32)

	require.Len(t, a, 32)
	require.Len(t, b, 32)
	assert.NotEqual(t, a, b)
	assert.Empty(t, GenerateRandByteArray(0))
}

func TestWipeByteArray(t *testing.T) {
	buf := []byte("master password")
	WipeByteArray(buf)
	assert.Equal(t, make([]byte, len("master password")), buf)

	assert.NotPanics(t, func() { WipeByteArray(nil) })
}

func TestLockedOutError(t *testing.T) {
	var err error = &LockedOutError{Remaining: 299600 * time.Millisecond}

	assert.ErrorIs(t, err, ErrLockedOut)
	assert.NotErrorIs(t, err, ErrVerificationFailed)
	assert.Equal(t, "too many failed attempts, try again in 300 seconds", err.Error())

	wrapped := fmt.Errorf("unlock: %w", err)
	var locked *LockedOutError
	require.True(t, errors.As(wrapped, &locked))
	assert.Equal(t, 299600*time.Millisecond, locked.Remaining)
}
