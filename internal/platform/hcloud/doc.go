// Package hcloud looks up the public hostname of a Hetzner Cloud load
// balancer fronting the shared gateway.
package hcloud
