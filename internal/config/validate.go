package config

import (
	"errors"
	"fmt"

	"k8s.io/apimachinery/pkg/util/validation"
)

// Validate checks the fleet-level fields. Workload descriptors are not
// checked here: each one is validated on its own during the run so a bad
// descriptor fails only itself.
func (f *Fleet) Validate() error {
	var errs []error

	if f.Name == "" {
		errs = append(errs, errors.New("name is required"))
	} else if msgs := validation.IsDNS1123Label(f.Name); len(msgs) > 0 {
		errs = append(errs, fmt.Errorf("name %q is not a valid DNS label: %v", f.Name, msgs))
	}
	if f.BaseDomain != "" {
		if msgs := validation.IsDNS1123Subdomain(f.BaseDomain); len(msgs) > 0 {
			errs = append(errs, fmt.Errorf("baseDomain %q is invalid: %v", f.BaseDomain, msgs))
		}
	}

	if f.Issuer != nil && f.Issuer.Name == "" {
		errs = append(errs, errors.New("issuer.name is required"))
	}
	if f.Issuer != nil && f.Issuer.Kind != "" && f.Issuer.Kind != "ClusterIssuer" && f.Issuer.Kind != "Issuer" {
		errs = append(errs, fmt.Errorf("issuer.kind must be ClusterIssuer or Issuer, got %q", f.Issuer.Kind))
	}
	if f.Zone != nil && f.Zone.Domain == "" {
		errs = append(errs, errors.New("zone.domain is required"))
	}
	if f.Gateway != nil && (f.Gateway.Name == "" || f.Gateway.Namespace == "") {
		errs = append(errs, errors.New("gateway.name and gateway.namespace are required"))
	}
	if f.SecretStore != nil && f.SecretStore.Name == "" {
		errs = append(errs, errors.New("secretStore.name is required"))
	}
	if f.AuthBackend != nil && f.AuthBackend.Address == "" {
		errs = append(errs, errors.New("authBackend.address is required"))
	}

	seen := make(map[string]bool)
	for _, s := range f.Subsystems {
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("subsystem %q is declared twice", s.Name))
		}
		seen[s.Name] = true
	}

	ids := make(map[string]bool)
	for _, c := range f.Credentials {
		c = c.WithDefaults()
		if err := c.Validate(); err != nil {
			errs = append(errs, err)
		}
		if ids[c.ID] {
			errs = append(errs, fmt.Errorf("credential %q is declared twice", c.ID))
		}
		ids[c.ID] = true
	}
	if len(f.Credentials) > 0 && f.SecretStore == nil {
		errs = append(errs, errors.New("credentials require a secretStore"))
	}

	return errors.Join(errs...)
}
