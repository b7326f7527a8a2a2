// Package exposure is the injection layer: a Context built once per run that
// closes over the shared infrastructure references, so each call site only
// supplies the fields specific to one workload.
package exposure

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/exposer/internal/compose"
	"github.com/imamik/exposer/internal/credentials"
	"github.com/imamik/exposer/internal/graph"
	"github.com/imamik/exposer/internal/metrics"
	"github.com/imamik/exposer/internal/namespace"
	"github.com/imamik/exposer/internal/workload"
)

// Gate resolves readiness tokens for declared subsystems.
type Gate interface {
	compose.TokenSource
	Declared(subsystem string) bool
}

// ZoneLookup finds a DNS zone's provider ID by apex domain.
type ZoneLookup interface {
	GetZoneID(ctx context.Context, domain string) (string, error)
}

// HostnameLookup finds the public hostname of the shared gateway.
type HostnameLookup interface {
	GatewayHostname(ctx context.Context) (string, error)
}

// Refs are the shared references a Context is built from.
type Refs struct {
	compose.Infrastructure

	// BaseDomain completes workloads that omit their domain: <name>.<BaseDomain>.
	BaseDomain string
}

// Deps are the collaborators a Context forwards to.
type Deps struct {
	Gate        Gate
	Resolver    *namespace.Resolver
	Distributor *credentials.Distributor
	Metrics     *metrics.Recorder
}

// Option configures context construction.
type Option func(*builder)

type builder struct {
	zones     ZoneLookup
	hostnames HostnameLookup
}

// WithZoneLookup fills an empty zone ID.
func WithZoneLookup(l ZoneLookup) Option {
	return func(b *builder) {
		b.zones = l
	}
}

// WithHostnameLookup fills an empty gateway hostname.
func WithHostnameLookup(l HostnameLookup) Option {
	return func(b *builder) {
		b.hostnames = l
	}
}

// Context is the immutable bundle of shared references.
type Context struct {
	infra      compose.Infrastructure
	baseDomain string

	composer    *compose.Composer
	gate        Gate
	resolver    *namespace.Resolver
	distributor *credentials.Distributor
}

// BuildContext validates the references, runs discovery for the fields left
// empty, and wires a composer over the result. Discovery runs here only.
func BuildContext(ctx context.Context, refs Refs, deps Deps, opts ...Option) (*Context, error) {
	if deps.Gate == nil || deps.Resolver == nil {
		return nil, errors.New("a readiness gate and a namespace resolver are required")
	}

	b := &builder{}
	for _, opt := range opts {
		opt(b)
	}

	infra := cloneInfra(refs.Infrastructure)
	if err := b.discover(ctx, &infra); err != nil {
		return nil, err
	}

	if err := infra.Validate(); err != nil {
		return nil, fmt.Errorf("invalid infrastructure references: %w", err)
	}
	for _, s := range referencedSubsystems(infra) {
		if !deps.Gate.Declared(s) {
			return nil, fmt.Errorf("subsystem %q is referenced but not declared", s)
		}
	}
	if infra.SecretStore != nil && deps.Distributor == nil {
		return nil, errors.New("a secret store is configured without a credential distributor")
	}

	return &Context{
		infra:       infra,
		baseDomain:  strings.TrimSuffix(refs.BaseDomain, "."),
		composer:    compose.New(infra, deps.Gate, compose.WithMetrics(deps.Metrics)),
		gate:        deps.Gate,
		resolver:    deps.Resolver,
		distributor: deps.Distributor,
	}, nil
}

func (b *builder) discover(ctx context.Context, infra *compose.Infrastructure) error {
	logger := log.FromContext(ctx)

	if infra.Zone != nil && infra.Zone.ID == "" && infra.Zone.Domain != "" && b.zones != nil {
		id, err := b.zones.GetZoneID(ctx, infra.Zone.Domain)
		if err != nil {
			return fmt.Errorf("failed to discover zone ID for %s: %w", infra.Zone.Domain, err)
		}
		infra.Zone.ID = id
		logger.V(1).Info("discovered DNS zone", "domain", infra.Zone.Domain, "zoneID", id)
	}

	if infra.Gateway != nil && infra.Gateway.Hostname == "" && b.hostnames != nil {
		host, err := b.hostnames.GatewayHostname(ctx)
		if err != nil {
			return fmt.Errorf("failed to discover gateway hostname: %w", err)
		}
		infra.Gateway.Hostname = host
		logger.V(1).Info("discovered gateway hostname", "hostname", host)
	}
	return nil
}

// Infrastructure returns a copy of the shared references.
func (c *Context) Infrastructure() compose.Infrastructure {
	return cloneInfra(c.infra)
}

// BaseDomain returns the domain workloads default under.
func (c *Context) BaseDomain() string {
	return c.baseDomain
}

// Exposure is a composed workload and the pull-secret credentials its graph
// depends on. Credentials not yet distributed are staged; the caller commits
// them once it accepts the graph.
type Exposure struct {
	Graph       *graph.Graph
	Credentials []credentials.Credential
}

// ExposeWorkload merges the shared fields into spec and composes the
// workload's graph. References a feature needs are checked here, per call.
// Nothing is recorded in the distributor.
func (c *Context) ExposeWorkload(ctx context.Context, name string, spec workload.Descriptor) (*Exposure, error) {
	d, err := c.merge(name, spec)
	if err != nil {
		return nil, err
	}

	ns, err := c.resolver.Resolve(d.Name, d.Namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve namespace for %s: %w", d.Name, err)
	}

	creds, err := c.pullCredentials(ctx, d, ns)
	if err != nil {
		return nil, err
	}

	g, err := c.composer.Compose(ctx, d, ns, creds)
	if err != nil {
		return nil, err
	}
	return &Exposure{Graph: g, Credentials: creds}, nil
}

// Prepare merges the shared fields into spec and validates the result
// without composing anything.
func (c *Context) Prepare(name string, spec workload.Descriptor) (workload.Descriptor, error) {
	d, err := c.merge(name, spec)
	if err != nil {
		return d, err
	}
	d = d.WithDefaults()
	if err := d.Validate(); err != nil {
		return d, graph.Malformed(name, err)
	}
	return d, nil
}

// Subsystems returns the subsystems the shared references are gated on.
func (c *Context) Subsystems() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range referencedSubsystems(c.infra) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// HasSecretStore reports whether credentials can be distributed.
func (c *Context) HasSecretStore() bool {
	return c.infra.SecretStore != nil && c.distributor != nil
}

func (c *Context) merge(name string, spec workload.Descriptor) (workload.Descriptor, error) {
	d := spec.Clone()
	if d.Name != "" && d.Name != name {
		return d, graph.Malformed(name, fmt.Errorf("descriptor name %q does not match %q", d.Name, name))
	}
	d.Name = name

	if d.Domain == "" {
		if c.baseDomain == "" {
			return d, graph.Conflicting(name, "no domain given and no base domain configured")
		}
		d.Domain = name + "." + c.baseDomain
	}
	return d, nil
}

func (c *Context) pullCredentials(ctx context.Context, d workload.Descriptor, ns namespace.Handle) ([]credentials.Credential, error) {
	if !d.HasPullSecrets() {
		return nil, nil
	}
	if c.infra.SecretStore == nil {
		return nil, graph.Conflicting(d.Name, "pull-secrets requires a configured secret store")
	}

	token, err := c.secretStoreToken(ctx)
	if err != nil {
		return nil, graph.ForWorkload(d.Name, err)
	}

	creds, err := c.distributor.ForWorkload(ns.Name, d.PullSecrets, token)
	if err != nil {
		if _, classified := graph.KindOf(err); classified {
			return nil, graph.ForWorkload(d.Name, err)
		}
		return nil, graph.Malformed(d.Name, err)
	}
	return creds, nil
}

func (c *Context) secretStoreToken(ctx context.Context) (graph.Token, error) {
	return c.gate.Await(ctx, c.infra.SecretStore.Subsystem)
}

// SecretStoreToken resolves the secret store's readiness token.
func (c *Context) SecretStoreToken(ctx context.Context) (graph.Token, error) {
	if c.infra.SecretStore == nil {
		return graph.Token{}, errors.New("no secret store configured")
	}
	return c.secretStoreToken(ctx)
}

func referencedSubsystems(i compose.Infrastructure) []string {
	var out []string
	if i.Issuer != nil && i.Issuer.Subsystem != "" {
		out = append(out, i.Issuer.Subsystem)
	}
	if i.Zone != nil && i.Zone.Subsystem != "" {
		out = append(out, i.Zone.Subsystem)
	}
	if i.Gateway != nil && i.Gateway.Subsystem != "" {
		out = append(out, i.Gateway.Subsystem)
	}
	if i.SecretStore != nil && i.SecretStore.Subsystem != "" {
		out = append(out, i.SecretStore.Subsystem)
	}
	return out
}

func cloneInfra(i compose.Infrastructure) compose.Infrastructure {
	out := i
	if i.Issuer != nil {
		v := *i.Issuer
		out.Issuer = &v
	}
	if i.Zone != nil {
		v := *i.Zone
		if i.Zone.Proxied != nil {
			v.Proxied = ptr.To(*i.Zone.Proxied)
		}
		out.Zone = &v
	}
	if i.Gateway != nil {
		v := *i.Gateway
		out.Gateway = &v
	}
	if i.SecretStore != nil {
		v := *i.SecretStore
		out.SecretStore = &v
	}
	if i.AuthBackend != nil {
		v := *i.AuthBackend
		v.ResponseHeaders = append([]string(nil), i.AuthBackend.ResponseHeaders...)
		v.RequestHeaders = append([]string(nil), i.AuthBackend.RequestHeaders...)
		out.AuthBackend = &v
	}
	return out
}
