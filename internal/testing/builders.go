package testing

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/imamik/exposer/internal/config"
	"github.com/imamik/exposer/internal/credentials"
	"github.com/imamik/exposer/internal/workload"
)

// FleetBuilder provides a fluent interface for constructing test fleets.
// Each method returns a new builder (immutable) for chaining.
type FleetBuilder struct {
	fleet config.Fleet
}

// NewFleetBuilder creates a builder for fleet "lab" under example.com with an
// issuer, a zone with a known ID and a gateway with a known hostname.
func NewFleetBuilder() *FleetBuilder {
	return &FleetBuilder{
		fleet: config.Fleet{
			Name:       "lab",
			BaseDomain: "example.com",
			Issuer:     &config.Issuer{Name: "letsencrypt-production"},
			Zone:       &config.Zone{Domain: "example.com", ID: "zone-1", TTL: 300},
			Gateway: &config.Gateway{
				Name:        "traefik",
				Namespace:   "traefik",
				SectionName: "websecure",
				Hostname:    "lb.example.net",
			},
		},
	}
}

// WithName sets the fleet name.
func (b *FleetBuilder) WithName(name string) *FleetBuilder {
	nb := b.clone()
	nb.fleet.Name = name
	return nb
}

// WithoutZone drops DNS publication.
func (b *FleetBuilder) WithoutZone() *FleetBuilder {
	nb := b.clone()
	nb.fleet.Zone = nil
	return nb
}

// WithSecretStore configures a ClusterSecretStore.
func (b *FleetBuilder) WithSecretStore(name string) *FleetBuilder {
	nb := b.clone()
	nb.fleet.SecretStore = &config.SecretStore{Name: name, Kind: "ClusterSecretStore"}
	return nb
}

// WithCredential adds a credential provider.
func (b *FleetBuilder) WithCredential(p credentials.Provider) *FleetBuilder {
	nb := b.clone()
	nb.fleet.Credentials = append(nb.fleet.Credentials, p)
	return nb
}

// WithAuthBackend configures the forward-auth backend.
func (b *FleetBuilder) WithAuthBackend(address string) *FleetBuilder {
	nb := b.clone()
	nb.fleet.AuthBackend = &config.AuthBackend{Address: address}
	return nb
}

// WithWorkload appends an inline workload.
func (b *FleetBuilder) WithWorkload(d workload.Descriptor) *FleetBuilder {
	nb := b.clone()
	nb.fleet.Workloads = append(nb.fleet.Workloads, d)
	return nb
}

// Build returns the constructed fleet.
func (b *FleetBuilder) Build() *config.Fleet {
	f := b.clone().fleet
	return &f
}

// WriteFile writes the fleet as exposer.yaml in dir and returns its path.
func (b *FleetBuilder) WriteFile(t *testing.T, dir string) string {
	t.Helper()
	data, err := yaml.Marshal(b.Build())
	if err != nil {
		t.Fatalf("failed to marshal fleet: %v", err)
	}
	path := filepath.Join(dir, config.DefaultConfigFilename)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write fleet: %v", err)
	}
	return path
}

func (b *FleetBuilder) clone() *FleetBuilder {
	f := b.fleet
	if b.fleet.Issuer != nil {
		v := *b.fleet.Issuer
		f.Issuer = &v
	}
	if b.fleet.Zone != nil {
		v := *b.fleet.Zone
		f.Zone = &v
	}
	if b.fleet.Gateway != nil {
		v := *b.fleet.Gateway
		f.Gateway = &v
	}
	if b.fleet.SecretStore != nil {
		v := *b.fleet.SecretStore
		f.SecretStore = &v
	}
	if b.fleet.AuthBackend != nil {
		v := *b.fleet.AuthBackend
		f.AuthBackend = &v
	}
	f.Credentials = append([]credentials.Provider(nil), b.fleet.Credentials...)
	f.Workloads = make([]workload.Descriptor, 0, len(b.fleet.Workloads))
	for _, w := range b.fleet.Workloads {
		f.Workloads = append(f.Workloads, w.Clone())
	}
	return &FleetBuilder{fleet: f}
}

// DescriptorBuilder provides a fluent interface for workload descriptors.
type DescriptorBuilder struct {
	d workload.Descriptor
}

// NewDescriptor creates a descriptor running nginx on port 8080.
func NewDescriptor(name string) *DescriptorBuilder {
	return &DescriptorBuilder{d: workload.Descriptor{Name: name, Image: "nginx:1.25", Port: 8080}}
}

// WithDomain sets the domain.
func (b *DescriptorBuilder) WithDomain(domain string) *DescriptorBuilder {
	d := b.d.Clone()
	d.Domain = domain
	return &DescriptorBuilder{d: d}
}

// WithForwardAuth selects FORWARD authentication.
func (b *DescriptorBuilder) WithForwardAuth(emails ...string) *DescriptorBuilder {
	d := b.d.Clone()
	d.AuthMode = workload.AuthForward
	d.AllowedEmails = emails
	return &DescriptorBuilder{d: d}
}

// WithStorage requests a volume.
func (b *DescriptorBuilder) WithStorage(size, mountPath string) *DescriptorBuilder {
	d := b.d.Clone()
	d.Storage = &workload.Storage{Size: size, MountPath: mountPath}
	return &DescriptorBuilder{d: d}
}

// WithPullSecrets sets the pull credential IDs.
func (b *DescriptorBuilder) WithPullSecrets(ids ...string) *DescriptorBuilder {
	d := b.d.Clone()
	d.PullSecrets = ids
	return &DescriptorBuilder{d: d}
}

// Build returns the constructed descriptor.
func (b *DescriptorBuilder) Build() workload.Descriptor {
	return b.d.Clone()
}
