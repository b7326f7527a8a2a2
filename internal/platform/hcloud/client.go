package hcloud

import (
	"context"
	"fmt"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/exposer/internal/util/retry"
)

// Client wraps the Hetzner Cloud API for load balancer lookups.
type Client struct {
	client            *hcloud.Client
	retryMaxAttempts  int
	retryInitialDelay time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHCloudClient sets a custom hcloud client (useful for testing).
func WithHCloudClient(hc *hcloud.Client) ClientOption {
	return func(c *Client) {
		c.client = hc
	}
}

// WithRetry sets the retry budget for rate-limited or locked calls.
func WithRetry(maxAttempts int, initialDelay time.Duration) ClientOption {
	return func(c *Client) {
		c.retryMaxAttempts = maxAttempts
		c.retryInitialDelay = initialDelay
	}
}

// NewClient creates a Client for token.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		client:            hcloud.NewClient(hcloud.WithToken(token), hcloud.WithApplication("exposer", "")),
		retryMaxAttempts:  5,
		retryInitialDelay: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetLoadBalancer returns the load balancer with the given name.
// Rate-limited and locked responses are retried; other errors are not.
func (c *Client) GetLoadBalancer(ctx context.Context, name string) (*hcloud.LoadBalancer, error) {
	var lb *hcloud.LoadBalancer
	err := retry.WithExponentialBackoff(ctx, func() error {
		var err error
		lb, _, err = c.client.LoadBalancer.Get(ctx, name)
		if err != nil {
			if IsRateLimited(err) || isResourceLocked(err) {
				return err
			}
			return retry.Fatal(err)
		}
		return nil
	}, retry.WithMaxRetries(c.retryMaxAttempts), retry.WithInitialDelay(c.retryInitialDelay))
	if err != nil {
		return nil, fmt.Errorf("failed to get load balancer %s: %w", name, err)
	}
	if lb == nil {
		return nil, fmt.Errorf("load balancer %s not found", name)
	}
	return lb, nil
}
