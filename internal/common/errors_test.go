package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitError_UnwrapsToSentinel(t *testing.T) {
	err := fmt.Errorf("initiate: %w", &LimitError{Kind: LimitPhotos, Message: "You've reached your image limit"})

	assert.True(t, errors.Is(err, ErrorLimitExceeded))

	var le *LimitError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, LimitPhotos, le.Kind)
	assert.Equal(t, "You've reached your image limit", le.Error())
}

func TestVerificationError(t *testing.T) {
	err := &VerificationError{Reason: "File size mismatch"}

	assert.True(t, errors.Is(err, ErrorVerificationFailed))
	assert.Equal(t, "upload verification failed: File size mismatch", err.Error())
}

func TestValidationAndNotFound(t *testing.T) {
	v := NewValidationError("Maximum %d tags allowed", 3)
	assert.True(t, errors.Is(v, ErrorValidation))
	assert.Equal(t, "Maximum 3 tags allowed", v.Error())

	nf := NewNotFoundError("Photo not available")
	assert.True(t, errors.Is(nf, ErrorNotFound))
	assert.False(t, errors.Is(nf, ErrorValidation))
}
