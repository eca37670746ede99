package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	err := New(CodeMissingConsent, "consent not granted for required purpose")
	assert.Equal(t, "consent not granted for required purpose", err.Error())

	bare := &Error{Code: CodeTampered}
	assert.Equal(t, "tampered", bare.Error())
}

func TestWrapPreservesOriginalCode(t *testing.T) {
	inner := New(CodePersistence, "append failed")
	wrapped := Wrap(inner, CodeInternal, "could not record audit entry")

	assert.True(t, HasCode(wrapped, CodePersistence), "wrapping must not mask the original code")
	assert.False(t, HasCode(wrapped, CodeInternal))
}

func TestWrapPlainError(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	wrapped := Wrap(inner, CodeTimeout, "store unavailable")

	require.True(t, HasCode(wrapped, CodeTimeout))
	assert.True(t, errors.Is(wrapped, inner))
}

func TestIsMatchesByCode(t *testing.T) {
	a := New(CodeRotationConflict, "rotation in progress")
	b := New(CodeRotationConflict, "different message")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, New(CodeTampered, "x")))
}

func TestHasCodeOnNonDomainError(t *testing.T) {
	assert.False(t, HasCode(errors.New("plain"), CodeNotFound))
	assert.False(t, HasCode(nil, CodeNotFound))
}
