package credentials

import (
	"errors"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/validation"
)

// ProviderType selects the shape of the materialized secret.
type ProviderType string

const (
	// TypeRegistry materializes an image pull secret.
	TypeRegistry ProviderType = "registry"
	// TypeOpaque materializes a generic secret with one key per source key.
	TypeOpaque ProviderType = "opaque"
)

// DefaultRefreshInterval is used when neither provider nor request sets one.
const DefaultRefreshInterval = time.Hour

// Provider declares one named credential available from the secret store.
type Provider struct {
	// ID is the credential identifier referenced by workloads.
	ID string `yaml:"id"`

	Type ProviderType `yaml:"type"`

	// SecretName is the name of the materialized secret. Defaults to ID.
	SecretName string `yaml:"secretName,omitempty"`

	// RemoteKey is the key in the external store. Defaults to ID.
	RemoteKey string `yaml:"remoteKey,omitempty"`

	// SourceKeys lists remote properties to copy. Registry credentials
	// default to a single ".dockerconfigjson" property.
	SourceKeys []string `yaml:"sourceKeys,omitempty"`

	RefreshInterval time.Duration `yaml:"refreshInterval,omitempty"`

	// FleetWide distributes the credential to every fleet namespace plus the
	// default namespace, whether or not a workload references it.
	FleetWide bool `yaml:"fleetWide,omitempty"`
}

// WithDefaults returns a copy with defaults applied.
func (p Provider) WithDefaults() Provider {
	if p.Type == "" {
		p.Type = TypeOpaque
	}
	if p.SecretName == "" {
		p.SecretName = p.ID
	}
	if p.RemoteKey == "" {
		p.RemoteKey = p.ID
	}
	if len(p.SourceKeys) == 0 && p.Type == TypeRegistry {
		p.SourceKeys = []string{corev1.DockerConfigJsonKey}
	}
	if p.RefreshInterval == 0 {
		p.RefreshInterval = DefaultRefreshInterval
	}
	return p
}

// Validate checks a provider declaration after defaults are applied.
func (p Provider) Validate() error {
	var errs []error
	if p.ID == "" {
		errs = append(errs, errors.New("credential id is required"))
	}
	switch p.Type {
	case TypeRegistry, TypeOpaque:
	default:
		errs = append(errs, fmt.Errorf("credential %q: type must be %q or %q", p.ID, TypeRegistry, TypeOpaque))
	}
	if msgs := validation.IsDNS1123Subdomain(p.SecretName); len(msgs) > 0 {
		errs = append(errs, fmt.Errorf("credential %q: invalid secretName %q", p.ID, p.SecretName))
	}
	if len(p.SourceKeys) == 0 {
		errs = append(errs, fmt.Errorf("credential %q: at least one source key is required", p.ID))
	}
	if p.Type == TypeRegistry && len(p.SourceKeys) != 1 {
		errs = append(errs, fmt.Errorf("credential %q: registry credentials take exactly one source key", p.ID))
	}
	if p.RefreshInterval < 0 {
		errs = append(errs, fmt.Errorf("credential %q: refreshInterval must not be negative", p.ID))
	}
	return errors.Join(errs...)
}
