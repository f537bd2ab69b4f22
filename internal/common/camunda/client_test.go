// internal/common/camunda/client_test.go
package camunda

import (
	"context"
	"testing"
	"time"

	"energy-ai-agent/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func testClient(maxRetries int) *Client {
	return &Client{config: &ClientConfig{RetryConfig: &RetryConfig{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   2 * time.Millisecond,
	}}}
}

func TestMapZeebeError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		validate func(t *testing.T, e *errors.StandardError)
	}{
		{
			name: "broker unavailable",
			err:  status.Error(codes.Unavailable, "connection refused"),
			validate: func(t *testing.T, e *errors.StandardError) {
				assert.Equal(t, errors.ErrCodeZeebeUnavailable, e.Code)
				assert.True(t, e.Retryable)
				assert.Equal(t, "zeebe", e.Metadata["service"])
				assert.Equal(t, 3, errors.GetRetryCount(e.Code))
			},
		},
		{
			name: "gateway deadline",
			err:  status.Error(codes.DeadlineExceeded, "deadline exceeded"),
			validate: func(t *testing.T, e *errors.StandardError) {
				assert.Equal(t, errors.ErrCodeZeebeUnavailable, e.Code)
				assert.Equal(t, true, e.Metadata["timeout"])
			},
		},
		{
			name: "local context deadline",
			err:  context.DeadlineExceeded,
			validate: func(t *testing.T, e *errors.StandardError) {
				assert.Equal(t, errors.ErrCodeZeebeUnavailable, e.Code)
				assert.Equal(t, true, e.Metadata["timeout"])
			},
		},
		{
			name: "process not found is rejected, not a validation failure",
			err:  status.Error(codes.NotFound, "process definition with key 'reservation' not found"),
			validate: func(t *testing.T, e *errors.StandardError) {
				assert.Equal(t, errors.ErrCodeZeebeCommandRejected, e.Code)
				assert.False(t, e.Retryable)
				assert.Equal(t, "NotFound", e.Metadata["grpcCode"])
				assert.Equal(t, "WORKFLOW", errors.GetErrorCategory(e.Code))
			},
		},
		{
			name: "permission denied is rejected",
			err:  status.Error(codes.PermissionDenied, "not allowed"),
			validate: func(t *testing.T, e *errors.StandardError) {
				assert.Equal(t, errors.ErrCodeZeebeCommandRejected, e.Code)
				assert.Zero(t, errors.ConvertToBPMNError(e).Retries)
			},
		},
		{
			name: "bad variables are a validation failure",
			err:  status.Error(codes.InvalidArgument, "variables must be a JSON object"),
			validate: func(t *testing.T, e *errors.StandardError) {
				assert.Equal(t, errors.ErrCodeValidationFailed, e.Code)
				assert.Contains(t, e.Details, "complete-job (attempt 1)")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, mapZeebeError(tt.err, "complete-job", 1))
		})
	}
}

func TestExecuteWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantCode  errors.ErrorCode
	}{
		{
			name:      "recovers after an unavailable broker",
			errs:      []error{status.Error(codes.Unavailable, "down"), nil},
			wantCalls: 2,
		},
		{
			name: "gives up after max retries",
			errs: []error{
				status.Error(codes.Unavailable, "down"),
				status.Error(codes.Unavailable, "down"),
				status.Error(codes.Unavailable, "down"),
			},
			wantCalls: 3,
			wantCode:  errors.ErrCodeZeebeUnavailable,
		},
		{
			name:      "rejected commands are not retried",
			errs:      []error{status.Error(codes.NotFound, "job not found")},
			wantCalls: 1,
			wantCode:  errors.ErrCodeZeebeCommandRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			result, err := testClient(2).ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
				e := tt.errs[calls]
				calls++
				if e != nil {
					return nil, e
				}
				return "ok", nil
			}, "complete-job")

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, "ok", result)
				return
			}
			stdErr, ok := errors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, stdErr.Code)
		})
	}
}

func TestExecuteWithRetry_CancelledWhileWaiting(t *testing.T) {
	c := testClient(5)
	c.config.RetryConfig.BaseDelay = time.Hour
	c.config.RetryConfig.MaxDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	_, err := c.ExecuteWithRetry(ctx, func(context.Context) (interface{}, error) {
		cancel()
		return nil, status.Error(codes.Unavailable, "down")
	}, "topology")

	stdErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeZeebeUnavailable, stdErr.Code)
	assert.Contains(t, stdErr.Details, context.Canceled.Error())
}
