package oautherr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithCause_KeepsSentinelsIntact(t *testing.T) {
	cause := errors.New("db down")
	err := WithCause(ErrInvalidGrant, cause)

	require.ErrorIs(t, err, ErrInvalidGrant)
	require.ErrorIs(t, err, cause)
	require.Nil(t, ErrInvalidGrant.Err, "sentinel must not be mutated")
	require.False(t, errors.Is(err, ErrInvalidClient))
}

func TestFrom(t *testing.T) {
	require.Nil(t, From(nil))

	wrapped := fmt.Errorf("grant: %w", WithDescription(ErrInvalidScope, "scope admin not allowed"))
	e := From(wrapped)
	require.Equal(t, "invalid_scope", e.Code)
	require.Equal(t, "scope admin not allowed", e.Description)

	e = From(errors.New("boom"))
	require.Equal(t, ErrServerError.Code, e.Code)
	require.Equal(t, ErrServerError.Description, e.Description)
}
