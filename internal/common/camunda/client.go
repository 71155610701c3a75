// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"render-workers/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Client wraps the Zeebe gRPC client.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

// ClientConfig holds configuration for the Camunda/Zeebe client.
type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
}

// NewClient creates a plaintext client, suitable for local brokers.
func NewClient(address string) (*Client, error) {
	return NewClientWithConfig(&ClientConfig{
		GatewayAddress:         address,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
	})
}

// NewClientWithConfig creates the client and checks the broker topology once.
func NewClientWithConfig(config *ClientConfig) (*Client, error) {
	if config.ConnectionTimeout <= 0 {
		config.ConnectionTimeout = 10 * time.Second
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	c := &Client{client: zeebeClient, config: config}
	if err := c.HealthCheck(context.Background()); err != nil {
		zeebeClient.Close()
		return nil, err
	}
	return c, nil
}

// GetClient returns the raw Zeebe client for job workers.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// HealthCheck asks the broker for its topology.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return mapZeebeError(err, "topology")
	}
	return nil
}

// mapZeebeError converts Zeebe errors into standardized application errors.
func mapZeebeError(err error, operation string) error {
	msg := err.Error()
	lowerMsg := strings.ToLower(msg)
	wrapped := fmt.Errorf("zeebe operation '%s' failed: %s", operation, msg)

	switch {
	case strings.Contains(lowerMsg, "timeout") ||
		strings.Contains(lowerMsg, "deadline exceeded"):
		return errors.NewTimeoutError("zeebe", wrapped)

	case strings.Contains(lowerMsg, "permission denied") ||
		strings.Contains(lowerMsg, "unauthenticated") ||
		strings.Contains(lowerMsg, "unauthorized"):
		return errors.NewInvalidInputError(wrapped.Error())

	default:
		return errors.NewExternalServiceError("zeebe", wrapped)
	}
}
