package apierror_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/eudiwallet/core/pkg/apierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProblemErrorAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	p := apierror.Wrap(apierror.KindStorage, "write failed", cause)

	assert.ErrorIs(t, p, cause)
	assert.Contains(t, p.Error(), "write failed")
	assert.Contains(t, p.Error(), "boom")
}

func TestIs(t *testing.T) {
	p := apierror.New(apierror.KindIncorrectNonce, "nonce mismatch")
	wrapped := fmt.Errorf("processing token request: %w", p)

	assert.True(t, apierror.Is(wrapped, apierror.KindIncorrectNonce))
	assert.False(t, apierror.Is(wrapped, apierror.KindMissingNonce))
}

func TestTransitionsSession(t *testing.T) {
	require.True(t, apierror.TransitionsSession(apierror.New(apierror.KindPoaVerification, "x")))
	require.False(t, apierror.TransitionsSession(apierror.New(apierror.KindStorage, "x")))
	require.True(t, apierror.TransitionsSession(errors.New("unstructured")))
}

func TestToProblem(t *testing.T) {
	p := apierror.New(apierror.KindUnauthorized, "token mismatch")
	pr := apierror.ToProblem(p)

	assert.Equal(t, 401, pr.Status)
	assert.Equal(t, string(apierror.KindUnauthorized), pr.Type)

	generic := apierror.ToProblem(errors.New("whatever"))
	assert.Equal(t, 500, generic.Status)
}
