// internal/common/camunda/client.go
package camunda

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	appconfig "energy-ai-agent/internal/common/config"
	"energy-ai-agent/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client owns the gateway connection shared by the reservation workers and the /healthz probe
// of the worker manager.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RetryConfig            *RetryConfig
}

// RetryConfig bounds the backoff between gateway attempts: BaseDelay doubles per attempt up to
// MaxDelay.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  time.Second,
	MaxDelay:   10 * time.Second,
}

// NewClient dials cfg.BrokerAddress and waits for a topology answer before returning.
func NewClient(cfg appconfig.CamundaConfig) (*Client, error) {
	timeout := appconfig.GetDuration(cfg.RequestTimeout)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return NewClientWithConfig(&ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      timeout,
		RetryConfig:            DefaultRetryConfig,
	})
}

func NewClientWithConfig(config *ClientConfig) (*Client, error) {
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig
	}

	zc, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("create zeebe client: %w", err)
	}
	c := &Client{client: zc, config: config}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectionTimeout)
	defer cancel()
	if err := c.HealthCheck(ctx); err != nil {
		zc.Close()
		return nil, fmt.Errorf("zeebe gateway %s: %w", config.GatewayAddress, err)
	}
	return c, nil
}

// GetClient exposes the raw client for job workers.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// HealthCheck asks the gateway for its topology, retrying while the broker is unavailable.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		return c.client.NewTopologyCommand().Send(ctx)
	}, "topology")
	return err
}

// ExecuteWithRetry runs command until it succeeds, fails permanently or runs out of attempts.
// Failures come back as *errors.StandardError.
func (c *Client) ExecuteWithRetry(
	ctx context.Context,
	command func(context.Context) (interface{}, error),
	operation string,
) (interface{}, error) {
	retry := c.config.RetryConfig
	delay := retry.BaseDelay

	for attempt := 1; ; attempt++ {
		result, err := command(ctx)
		if err == nil {
			return result, nil
		}
		if !isTransient(err) || attempt > retry.MaxRetries {
			return nil, mapZeebeError(err, operation, attempt)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, mapZeebeError(ctx.Err(), operation, attempt)
		}
		delay = min(delay*2, retry.MaxDelay)
	}
}

func isTransient(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return false
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}

// mapZeebeError classifies a gateway failure by its gRPC status. Broker outages and timeouts
// become ZEEBE_UNAVAILABLE, malformed commands VALIDATION_FAILED and everything the broker
// refuses ZEEBE_COMMAND_REJECTED.
func mapZeebeError(err error, operation string, attempts int) *errors.StandardError {
	cause := fmt.Errorf("%s (attempt %d): %w", operation, attempts, err)

	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return errors.NewZeebeUnavailableError(cause).WithMetadata("timeout", true)
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted:
		return errors.NewZeebeUnavailableError(cause)
	case codes.DeadlineExceeded:
		return errors.NewZeebeUnavailableError(cause).WithMetadata("timeout", true)
	case codes.InvalidArgument, codes.AlreadyExists:
		return errors.NewValidationError(cause.Error())
	default:
		return errors.NewZeebeCommandRejectedError(cause).WithMetadata("grpcCode", status.Code(err).String())
	}
}
