package compose

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/imamik/exposer/internal/graph"
)

// Issuer references a cert-manager issuer.
type Issuer struct {
	Name string
	// Kind is ClusterIssuer (default) or Issuer.
	Kind      string
	Subsystem string
}

// AnnotationKey returns the route annotation naming the issuer.
func (i Issuer) AnnotationKey() string {
	if i.Kind == "Issuer" {
		return "cert-manager.io/issuer"
	}
	return "cert-manager.io/cluster-issuer"
}

// Zone references the DNS zone records are published in.
type Zone struct {
	// Domain is the zone apex. Workload domains must fall inside it.
	Domain string
	// ID is the provider's zone identifier, if known.
	ID        string
	TTL       int64
	Proxied   *bool
	Subsystem string
}

// Contains reports whether host lies inside the zone.
func (z Zone) Contains(host string) bool {
	if z.Domain == "" {
		return true
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	apex := strings.ToLower(strings.TrimSuffix(z.Domain, "."))
	return host == apex || strings.HasSuffix(host, "."+apex)
}

// Gateway references the shared ingress gateway routes attach to.
type Gateway struct {
	Name        string
	Namespace   string
	SectionName string
	// Hostname is the shared public hostname of the gateway or tunnel.
	// DNS records always point here.
	Hostname  string
	Subsystem string
}

// SecretStore references the store credentials are synchronized from.
type SecretStore struct {
	Name      string
	Kind      string
	Subsystem string
}

// AuthBackend references the shared forward-auth service.
type AuthBackend struct {
	// Address is the URL the filter delegates authorization to.
	Address string
	// ResponseHeaders are copied from the auth response to the upstream request.
	ResponseHeaders []string
	// RequestHeaders are forwarded to the auth backend. Empty forwards all.
	RequestHeaders []string
}

// Infrastructure bundles the shared references. Nil members are not configured.
type Infrastructure struct {
	Fleet       string
	Issuer      *Issuer
	Zone        *Zone
	Gateway     *Gateway
	SecretStore *SecretStore
	AuthBackend *AuthBackend
}

// Validate checks that configured references are complete.
func (i Infrastructure) Validate() error {
	var errs []error
	if i.Issuer != nil && i.Issuer.Name == "" {
		errs = append(errs, errors.New("issuer name is required"))
	}
	if i.Issuer != nil && i.Issuer.Kind != "" && i.Issuer.Kind != "ClusterIssuer" && i.Issuer.Kind != "Issuer" {
		errs = append(errs, errors.New("issuer kind must be ClusterIssuer or Issuer"))
	}
	if i.Gateway != nil && (i.Gateway.Name == "" || i.Gateway.Namespace == "") {
		errs = append(errs, errors.New("gateway name and namespace are required"))
	}
	if i.SecretStore != nil && (i.SecretStore.Name == "" || i.SecretStore.Subsystem == "") {
		errs = append(errs, errors.New("secret store name and subsystem are required"))
	}
	if i.AuthBackend != nil {
		if u, err := url.ParseRequestURI(i.AuthBackend.Address); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("auth backend address %q must be an http(s) URL", i.AuthBackend.Address))
		}
	}
	if i.Zone != nil && i.Zone.TTL < 0 {
		errs = append(errs, errors.New("zone TTL must not be negative"))
	}
	return errors.Join(errs...)
}

// TokenSource resolves readiness tokens.
type TokenSource interface {
	Await(ctx context.Context, subsystem string) (graph.Token, error)
}
