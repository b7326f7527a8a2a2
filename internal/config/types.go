package config

import (
	"github.com/imamik/exposer/internal/compose"
	"github.com/imamik/exposer/internal/credentials"
	"github.com/imamik/exposer/internal/exposure"
	"github.com/imamik/exposer/internal/readiness"
	"github.com/imamik/exposer/internal/workload"
)

// Fleet is the parsed fleet file.
type Fleet struct {
	// Name labels every namespace the fleet creates.
	Name string `yaml:"name"`

	// BaseDomain completes workloads without a domain.
	BaseDomain string `yaml:"baseDomain,omitempty"`

	Issuer      *Issuer      `yaml:"issuer,omitempty"`
	Zone        *Zone        `yaml:"zone,omitempty"`
	Gateway     *Gateway     `yaml:"gateway,omitempty"`
	SecretStore *SecretStore `yaml:"secretStore,omitempty"`
	AuthBackend *AuthBackend `yaml:"authBackend,omitempty"`

	// Subsystems overrides the default subsystem declarations by name.
	Subsystems []readiness.Subsystem `yaml:"subsystems,omitempty"`

	Credentials []credentials.Provider `yaml:"credentials,omitempty"`

	Workloads []workload.Descriptor `yaml:"workloads,omitempty"`

	// WorkloadsDir holds one descriptor per *.yaml file. Relative paths are
	// resolved against the fleet file's directory.
	WorkloadsDir string `yaml:"workloadsDir,omitempty"`
}

// Issuer references a cert-manager issuer.
type Issuer struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind,omitempty"`
	Subsystem string `yaml:"subsystem,omitempty"`
}

// Zone references the DNS zone.
type Zone struct {
	Domain    string `yaml:"domain"`
	ID        string `yaml:"id,omitempty"`
	TTL       int64  `yaml:"ttl,omitempty"`
	Proxied   *bool  `yaml:"proxied,omitempty"`
	Subsystem string `yaml:"subsystem,omitempty"`
}

// Gateway references the shared gateway.
type Gateway struct {
	Name        string `yaml:"name"`
	Namespace   string `yaml:"namespace"`
	SectionName string `yaml:"sectionName,omitempty"`
	Hostname    string `yaml:"hostname,omitempty"`
	// LoadBalancer names the Hetzner load balancer in front of the gateway.
	// Used to discover Hostname when it is empty.
	LoadBalancer string `yaml:"loadBalancer,omitempty"`
	Subsystem    string `yaml:"subsystem,omitempty"`
}

// SecretStore references the external secret store.
type SecretStore struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind,omitempty"`
	Subsystem string `yaml:"subsystem,omitempty"`
}

// AuthBackend references the shared forward-auth service.
type AuthBackend struct {
	Address         string   `yaml:"address"`
	ResponseHeaders []string `yaml:"responseHeaders,omitempty"`
	RequestHeaders  []string `yaml:"requestHeaders,omitempty"`
}

// Refs converts the shared fields into context references. References
// without a subsystem are gated on the well-known one for their kind.
func (f *Fleet) Refs() exposure.Refs {
	infra := compose.Infrastructure{Fleet: f.Name}
	if f.Issuer != nil {
		infra.Issuer = &compose.Issuer{
			Name:      f.Issuer.Name,
			Kind:      f.Issuer.Kind,
			Subsystem: orDefault(f.Issuer.Subsystem, readiness.CertManager),
		}
	}
	if f.Zone != nil {
		infra.Zone = &compose.Zone{
			Domain:    f.Zone.Domain,
			ID:        f.Zone.ID,
			TTL:       f.Zone.TTL,
			Proxied:   f.Zone.Proxied,
			Subsystem: orDefault(f.Zone.Subsystem, readiness.ExternalDNS),
		}
	}
	if f.Gateway != nil {
		infra.Gateway = &compose.Gateway{
			Name:        f.Gateway.Name,
			Namespace:   f.Gateway.Namespace,
			SectionName: f.Gateway.SectionName,
			Hostname:    f.Gateway.Hostname,
			Subsystem:   orDefault(f.Gateway.Subsystem, readiness.Gateway),
		}
	}
	if f.SecretStore != nil {
		infra.SecretStore = &compose.SecretStore{
			Name:      f.SecretStore.Name,
			Kind:      f.SecretStore.Kind,
			Subsystem: orDefault(f.SecretStore.Subsystem, readiness.SecretStore),
		}
	}
	if f.AuthBackend != nil {
		infra.AuthBackend = &compose.AuthBackend{
			Address:         f.AuthBackend.Address,
			ResponseHeaders: append([]string(nil), f.AuthBackend.ResponseHeaders...),
			RequestHeaders:  append([]string(nil), f.AuthBackend.RequestHeaders...),
		}
	}
	return exposure.Refs{Infrastructure: infra, BaseDomain: f.BaseDomain}
}

// SubsystemDeclarations returns the default declarations with the fleet
// file's entries replacing or extending them by name.
func (f *Fleet) SubsystemDeclarations() []readiness.Subsystem {
	out := readiness.DefaultSubsystems()
	for _, s := range f.Subsystems {
		replaced := false
		for i := range out {
			if out[i].Name == s.Name {
				out[i] = s
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, s)
		}
	}
	return out
}

// Store returns the credential store reference, if a secret store is configured.
func (f *Fleet) Store() (credentials.Store, bool) {
	if f.SecretStore == nil {
		return credentials.Store{}, false
	}
	kind := f.SecretStore.Kind
	if kind == "" {
		kind = "ClusterSecretStore"
	}
	return credentials.Store{Name: f.SecretStore.Name, Kind: kind}, true
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
