package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := Wrap(ErrorTypeNavigation, "page load failed", fmt.Errorf("timeout")).WithURL("https://example.com/feed/")
	assert.Equal(t, "navigation error: page load failed (url: https://example.com/feed/): timeout", err.Error())
}

func TestIsSentinel(t *testing.T) {
	err := fmt.Errorf("establish session: %w", New(ErrorTypeChallenge, "verification page"))

	assert.True(t, stderrors.Is(err, ErrChallenge))
	assert.False(t, stderrors.Is(err, ErrAuthentication))
	assert.True(t, IsType(err, ErrorTypeChallenge))
	assert.Equal(t, ErrorTypeChallenge, TypeOf(err))
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(ErrorTypePersistence, "create record", cause)
	assert.True(t, stderrors.Is(err, cause))
}

func TestTypeOfPlainError(t *testing.T) {
	assert.Equal(t, ErrorTypeUnknown, TypeOf(fmt.Errorf("plain")))
	assert.False(t, IsType(nil, ErrorTypeFormat))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		want      bool
	}{
		{ErrorTypeNavigation, true},
		{ErrorTypePersistence, true},
		{ErrorTypeFormat, false},
		{ErrorTypeAuthentication, false},
		{ErrorTypeChallenge, false},
		{ErrorTypeExtractionGap, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errorType), func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.errorType))
		})
	}
}

func TestIsRunFatal(t *testing.T) {
	assert.True(t, IsRunFatal(ErrorTypeAuthentication))
	assert.True(t, IsRunFatal(ErrorTypeChallenge))
	assert.False(t, IsRunFatal(ErrorTypeNavigation))
	assert.False(t, IsRunFatal(ErrorTypePersistence))
}

func TestIsSuccessStatus(t *testing.T) {
	assert.True(t, IsSuccessStatus(200))
	assert.True(t, IsSuccessStatus(204))
	assert.False(t, IsSuccessStatus(0))
	assert.False(t, IsSuccessStatus(302))
	assert.False(t, IsSuccessStatus(500))
}
