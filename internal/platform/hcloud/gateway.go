package hcloud

import (
	"context"
	"fmt"
	"strings"
)

// GatewayLookup resolves the gateway hostname from a load balancer's reverse DNS.
type GatewayLookup struct {
	client       *Client
	loadBalancer string
}

// NewGatewayLookup creates a lookup for the named load balancer.
func NewGatewayLookup(c *Client, loadBalancer string) *GatewayLookup {
	return &GatewayLookup{client: c, loadBalancer: loadBalancer}
}

// GatewayHostname returns the PTR name of the load balancer's public IPv4.
// A load balancer without a public IPv4 PTR is an error: a DNS record
// cannot point at a bare address.
func (g *GatewayLookup) GatewayHostname(ctx context.Context) (string, error) {
	lb, err := g.client.GetLoadBalancer(ctx, g.loadBalancer)
	if err != nil {
		return "", err
	}
	if !lb.PublicNet.Enabled || lb.PublicNet.IPv4.IP == nil {
		return "", fmt.Errorf("load balancer %s has no public IPv4 address", g.loadBalancer)
	}
	ptr := strings.TrimSuffix(lb.PublicNet.IPv4.DNSPtr, ".")
	if ptr == "" {
		return "", fmt.Errorf("load balancer %s has no reverse DNS name for %s", g.loadBalancer, lb.PublicNet.IPv4.IP)
	}
	return ptr, nil
}
