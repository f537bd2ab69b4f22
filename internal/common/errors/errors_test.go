// internal/common/errors/errors_test.go
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name     string
		err      *StandardError
		validate func(t *testing.T, b *BPMNError)
	}{
		{
			name: "retryable code keeps its budget",
			err:  NewPlacesSearchFailedError(fmt.Errorf("overpass 504")),
			validate: func(t *testing.T, b *BPMNError) {
				assert.Equal(t, "PLACES_SEARCH_FAILED", b.Code)
				assert.Equal(t, 3, b.Retries)
				assert.Equal(t, "overpass 504", b.Details)
			},
		},
		{
			name: "validation errors are thrown without retries",
			err:  NewValidationError("restaurant is required"),
			validate: func(t *testing.T, b *BPMNError) {
				assert.Equal(t, "VALIDATION_FAILED", b.Code)
				assert.Zero(t, b.Retries)
				assert.False(t, b.Retryable)
			},
		},
		{
			name: "metadata is copied into the variables",
			err:  NewBookingRecordFailedError(fmt.Errorf("conn reset")).WithMetadata("bookingId", "b-1"),
			validate: func(t *testing.T, b *BPMNError) {
				vars := b.ToErrorVariables()
				assert.Equal(t, "b-1", vars["bookingId"])
				assert.Equal(t, "BOOKING_RECORD_FAILED", vars["originalErrorCode"])
				assert.Equal(t, true, vars["retryable"])
			},
		},
		{
			name: "retryable flag off clears retries",
			err:  &StandardError{Code: ErrCodeLLMSynthesisFailed, Message: "x"},
			validate: func(t *testing.T, b *BPMNError) {
				assert.Zero(t, b.Retries)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, ConvertToBPMNError(tt.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrCodeValidationFailed:    http.StatusBadRequest,
		ErrCodeUnsupportedFormat:   http.StatusBadRequest,
		ErrCodeLLMTimeout:          http.StatusGatewayTimeout,
		ErrCodeWebSearchTimeout:    http.StatusGatewayTimeout,
		ErrCodeLLMRateLimited:      http.StatusTooManyRequests,
		ErrCodeNewsFetchFailed:     http.StatusBadGateway,
		ErrCodeBookingRecordFailed: http.StatusInternalServerError,
		ErrCodeZeebeUnavailable:    http.StatusServiceUnavailable,
	}
	for code, want := range cases {
		assert.Equal(t, want, HTTPStatus(code), string(code))
	}
}

func TestAsAndNormalize(t *testing.T) {
	wrapped := fmt.Errorf("sync: %w", NewNewsSyncFailedError(stderrors.New("timeout")))

	stdErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrCodeNewsSyncFailed, stdErr.Code)
	assert.Equal(t, "NEWS", GetErrorCategory(stdErr.Code))

	plain := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "boom", plain.Details)
	assert.False(t, plain.Retryable)
}
